package keystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, KeyPatients); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Put(ctx, KeyPatients, []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, KeyPatients)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `[{"id":"1"}]` {
		t.Errorf("unexpected value %s", got)
	}

	if err := s.Put(ctx, KeyPatients, []byte(`[]`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _ = s.Get(ctx, KeyPatients)
	if string(got) != `[]` {
		t.Errorf("expected overwrite, got %s", got)
	}

	if err := s.Delete(ctx, KeyPatients); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, KeyPatients); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, KeyPatients); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	_ = m.Put(ctx, "k", v)
	v[0] = 'x'
	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("store should not alias caller buffers, got %s", got)
	}
}

func TestFile(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseStore(t, f)
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f1, _ := NewFile(dir)
	if err := f1.Put(ctx, KeyUsers, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	f2, _ := NewFile(dir)
	got, err := f2.Get(ctx, KeyUsers)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("unexpected value %s", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "users.json" {
		t.Errorf("expected only users.json in data dir, got %v", entries)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"patients", false},
		{"token", false},
		{"", true},
		{"../etc/passwd", true},
		{"a/b", true},
		{`a\b`, true},
	}
	for _, tt := range tests {
		err := validateKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestFile_RejectsInvalidKey(t *testing.T) {
	f, _ := NewFile(t.TempDir())
	if err := f.Put(context.Background(), "../escape", []byte("x")); err == nil {
		t.Error("expected error for path traversal key")
	}
}
