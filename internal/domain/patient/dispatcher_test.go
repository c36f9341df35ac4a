package patient

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

type dispatcherFixture struct {
	store   *Store
	confirm *stubConfirmer
	nav     *recordingNavigator
	sink    *recordingSink
	d       *Dispatcher
}

func newDispatcherFixture(kv keystore.Store) *dispatcherFixture {
	f := &dispatcherFixture{
		store:   NewStore(kv),
		confirm: &stubConfirmer{answer: true},
		nav:     &recordingNavigator{},
		sink:    &recordingSink{},
	}
	f.d = NewDispatcher(f.store, f.confirm, f.nav, f.sink, testLogger())
	return f
}

func TestDispatcher_OnCreate(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())
	ctx := context.Background()

	p, err := f.d.OnCreate(ctx, PatientFields{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("OnCreate: %v", err)
	}
	if p.ID == "" {
		t.Error("expected generated id")
	}
	if n, _ := f.sink.last(); n.Message != MsgPatientAdded || n.Severity != feedback.SeveritySuccess {
		t.Errorf("unexpected notice %+v", n)
	}
	if f.nav.current() != RouteList {
		t.Errorf("expected navigation to list, got %q", f.nav.current())
	}
}

func TestDispatcher_OnCreateMissingName(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())

	_, err := f.d.OnCreate(context.Background(), PatientFields{Email: "x@example.com"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	n, _ := f.sink.last()
	if n.Message != RequiredFieldsMessage || n.Severity != feedback.SeverityWarning {
		t.Errorf("unexpected notice %+v", n)
	}
	if len(f.nav.routes) != 0 {
		t.Errorf("expected no navigation, got %v", f.nav.routes)
	}
	list, _ := f.store.List(context.Background())
	if len(list) != 0 {
		t.Errorf("expected empty store, got %d", len(list))
	}
}

func TestDispatcher_ViewAndEdit(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())
	ctx := context.Background()
	p, _ := f.store.Create(ctx, PatientFields{Name: "Ada"})

	got, err := f.d.OnView(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("OnView: %v %v", got, err)
	}
	if f.d.Selected() != p.ID || f.nav.current() != ViewRoute(p.ID) {
		t.Errorf("unexpected selection %q route %q", f.d.Selected(), f.nav.current())
	}

	form, err := f.d.OnEdit(ctx, p.ID)
	if err != nil {
		t.Fatalf("OnEdit: %v", err)
	}
	if f.nav.current() != EditRoute(p.ID) {
		t.Errorf("expected edit route, got %q", f.nav.current())
	}
	_ = form.Set("name", "Ada Lovelace")
	updated, err := f.d.OnSave(ctx, form)
	if err != nil {
		t.Fatalf("OnSave: %v", err)
	}
	if updated.Name != "Ada Lovelace" {
		t.Errorf("unexpected name %q", updated.Name)
	}
	if n, _ := f.sink.last(); n.Message != MsgPatientUpdated {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestDispatcher_ViewMissing(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())
	_, err := f.d.OnView(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if n, _ := f.sink.last(); n.Severity != feedback.SeverityInfo {
		t.Errorf("expected info notice, got %+v", n)
	}
}

func TestDispatcher_OnDelete(t *testing.T) {
	tests := []struct {
		name        string
		answer      bool
		selectFirst bool
		wantDeleted bool
		wantRoute   string
	}{
		{"confirmed while viewing", true, true, true, RouteList},
		{"confirmed from list", true, false, true, ""},
		{"declined", false, true, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(keystore.NewMemory())
			ctx := context.Background()
			p, _ := f.store.Create(ctx, PatientFields{Name: "Ada"})
			f.confirm.answer = tt.answer
			if tt.selectFirst {
				_, _ = f.d.OnView(ctx, p.ID)
			}
			f.nav.routes = nil

			deleted, err := f.d.OnDelete(ctx, p.ID)
			if err != nil {
				t.Fatalf("OnDelete: %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %v, want %v", deleted, tt.wantDeleted)
			}
			if len(f.confirm.prompts) != 1 || !strings.Contains(f.confirm.prompts[0], "Ada") {
				t.Errorf("unexpected prompts %v", f.confirm.prompts)
			}
			if f.nav.current() != tt.wantRoute {
				t.Errorf("route = %q, want %q", f.nav.current(), tt.wantRoute)
			}

			_, getErr := f.store.Get(ctx, p.ID)
			if tt.wantDeleted && !errors.Is(getErr, ErrNotFound) {
				t.Errorf("record still present")
			}
			if !tt.wantDeleted && getErr != nil {
				t.Errorf("record removed on decline: %v", getErr)
			}
			if tt.wantDeleted && f.d.Selected() != "" {
				t.Errorf("selection not cleared")
			}
		})
	}
}

func TestDispatcher_OnDeleteMissingIsNoop(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())
	deleted, err := f.d.OnDelete(context.Background(), "gone")
	if err != nil || deleted {
		t.Fatalf("expected quiet no-op, got %v %v", deleted, err)
	}
	if len(f.confirm.prompts) != 0 {
		t.Errorf("prompted for a missing record")
	}
	if n, _ := f.sink.last(); n.Message != MsgPatientMissing {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestDispatcher_OnDeleteRemovedWhilePrompting(t *testing.T) {
	store := NewStore(keystore.NewMemory())
	ctx := context.Background()
	p, _ := store.Create(ctx, PatientFields{Name: "Ada"})

	nav := &recordingNavigator{}
	sink := &recordingSink{}
	confirm := &hookConfirmer{before: func(ctx context.Context) {
		if err := store.Delete(ctx, p.ID); err != nil {
			t.Fatalf("delete from another session: %v", err)
		}
	}}
	d := NewDispatcher(store, confirm, nav, sink, testLogger())
	if _, err := d.OnView(ctx, p.ID); err != nil {
		t.Fatalf("OnView: %v", err)
	}

	deleted, err := d.OnDelete(ctx, p.ID)
	if err != nil || deleted {
		t.Fatalf("expected quiet no-op, got %v %v", deleted, err)
	}
	if d.Selected() != "" {
		t.Errorf("selection not cleared: %q", d.Selected())
	}
	if nav.current() != RouteList {
		t.Errorf("route = %q, want %q", nav.current(), RouteList)
	}
	n, ok := sink.last()
	if !ok || n.Message != MsgPatientMissing || n.Severity != feedback.SeverityInfo {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestDispatcher_PersistenceFailure(t *testing.T) {
	kv := newCountingKV()
	f := newDispatcherFixture(kv)
	kv.failPut = errors.New("quota exceeded")

	_, err := f.d.OnCreate(context.Background(), PatientFields{Name: "Ada"})
	if !IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	n, _ := f.sink.last()
	if n.Message != MsgPersistenceFail || n.Severity != feedback.SeverityError {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestDispatcher_ConfirmError(t *testing.T) {
	f := newDispatcherFixture(keystore.NewMemory())
	ctx := context.Background()
	p, _ := f.store.Create(ctx, PatientFields{Name: "Ada"})
	f.confirm.err = context.Canceled

	if _, err := f.d.OnDelete(ctx, p.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := f.store.Get(ctx, p.ID); err != nil {
		t.Errorf("record removed after confirm error")
	}
}
