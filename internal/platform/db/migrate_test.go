package db

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"003_meds.sql":  {Data: []byte("CREATE TABLE meds (id SERIAL);")},
		"001_core.sql":  {Data: []byte("CREATE TABLE users (id SERIAL PRIMARY KEY);")},
		"002_notes.sql": {Data: []byte("CREATE TABLE notes (id SERIAL);")},
		"README.md":     {Data: []byte("not a migration")},
		"seed.sql":      {Data: []byte("no version prefix")},
		"abc_bad.sql":   {Data: []byte("non-numeric prefix")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []string{"001_core.sql", "002_notes.sql", "003_meds.sql"} {
		if migrations[i].Name != want {
			t.Errorf("migration %d: expected %s, got %s", i, want, migrations[i].Name)
		}
		if migrations[i].Version != i+1 {
			t.Errorf("migration %d: expected version %d, got %d", i, i+1, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "CREATE TABLE users (id SERIAL PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migrations[0].Name != "001_kv_store.sql" {
		t.Errorf("expected first migration 001_kv_store.sql, got %s", migrations[0].Name)
	}
}

func TestPendingAndStatuses(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_core.sql"},
		{Version: 2, Name: "002_notes.sql"},
		{Version: 3, Name: "003_meds.sql"},
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	applied := map[int]time.Time{1: at}

	p := pending(migrations, applied)
	if len(p) != 2 || p[0].Version != 2 || p[1].Version != 3 {
		t.Errorf("unexpected pending set %+v", p)
	}

	st := statuses(migrations, applied)
	if len(st) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(st))
	}
	if !st[0].Applied || st[0].AppliedAt == nil || !st[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 1 applied at %s, got %+v", at, st[0])
	}
	if st[1].Applied || st[1].AppliedAt != nil {
		t.Errorf("expected migration 2 pending, got %+v", st[1])
	}
}
