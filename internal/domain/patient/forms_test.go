package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicboard/clinicboard/internal/platform/form"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

func TestCreateForm_RequiresName(t *testing.T) {
	kv := newCountingKV()
	store := NewStore(kv)
	f := NewCreateForm(store)

	_ = f.Set("email", "ada@example.com")
	_, err := f.Submit(context.Background())
	var verr *form.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0] != "name" {
		t.Errorf("expected [name], got %v", verr.Fields)
	}
	if kv.puts != 0 {
		t.Errorf("store written on invalid submit")
	}

	// draft survives the failed submit
	if f.Draft().Email != "ada@example.com" {
		t.Errorf("draft lost after validation failure")
	}

	_ = f.Set("name", "  Ada  ")
	p, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.Name != "Ada" || p.Email != "ada@example.com" {
		t.Errorf("unexpected record %+v", p)
	}
}

func TestCreateForm_BlankNameIsMissing(t *testing.T) {
	f := NewCreateForm(NewStore(keystore.NewMemory()))
	_ = f.Set("name", "   ")
	if _, err := f.Submit(context.Background()); err == nil {
		t.Fatal("expected whitespace-only name to be rejected")
	}
}

func TestEditForm_SeedsAndUpdates(t *testing.T) {
	store := NewStore(keystore.NewMemory())
	ctx := context.Background()
	p, _ := store.Create(ctx, PatientFields{Name: "Ada", Phone: "555-0100"})

	f := NewEditForm(store, p)
	if f.Mode() != form.ModeEdit {
		t.Fatalf("expected edit mode")
	}
	if f.Draft().Phone != "555-0100" {
		t.Errorf("draft not seeded: %+v", f.Draft())
	}

	_ = f.Set("phone", "555-0199")
	updated, err := f.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if updated.ID != p.ID || updated.Phone != "555-0199" {
		t.Errorf("unexpected update %+v", updated)
	}
}

func TestEditForm_UnknownField(t *testing.T) {
	f := NewCreateForm(NewStore(keystore.NewMemory()))
	if err := f.Set("ssn", "123"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestConsultationForm_DerivesDuration(t *testing.T) {
	store := NewStore(keystore.NewMemory())
	svc := NewService(store, nil, testLogger())
	ctx := context.Background()
	p, _ := store.Create(ctx, PatientFields{Name: "Ada"})

	f := NewConsultationForm(svc, p.ID, nil)
	_ = f.Set("start_time", "23:30")
	_ = f.Set("end_time", "00:15")
	if got := f.Draft().DurationMinutes; got != 45 {
		t.Errorf("expected 45 minutes, got %d", got)
	}

	_, err := f.Submit(ctx)
	var verr *form.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected date and signer_name missing, got %v", err)
	}

	_ = f.Set("date", "2024-03-01")
	_ = f.Set("signer_name", "Dr. Smith")
	_ = f.Set("diagnosis_codes", "M54.5, R52")
	c, err := f.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.DurationMinutes != 45 || len(c.DiagnosisCodes) != 2 {
		t.Errorf("unexpected consultation %+v", c)
	}

	edit := NewConsultationForm(svc, p.ID, c)
	_ = edit.Set("end_time", "01:30")
	updated, err := edit.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit edit: %v", err)
	}
	if updated.ID != c.ID || updated.DurationMinutes != 120 {
		t.Errorf("unexpected edit result %+v", updated)
	}
}
