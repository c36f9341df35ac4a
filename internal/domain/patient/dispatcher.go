package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/form"
)

// Confirmer asks the user a yes/no question and waits for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Navigator moves the dashboard to another route.
type Navigator interface {
	Navigate(route string)
}

// Notice texts.
const (
	MsgPatientAdded    = "Patient added successfully"
	MsgPatientUpdated  = "Patient updated successfully"
	MsgPatientDeleted  = "Patient deleted successfully"
	MsgPatientMissing  = "Patient no longer exists"
	MsgPersistenceFail = "Could not save changes, please try again"
)

// Dispatcher turns view/edit/create/save/delete actions into store calls,
// navigation and a feedback notice.
type Dispatcher struct {
	repo    Repository
	confirm Confirmer
	nav     Navigator
	notify  feedback.Sink
	logger  zerolog.Logger

	mu       sync.Mutex
	selected string
}

func NewDispatcher(repo Repository, confirm Confirmer, nav Navigator, notify feedback.Sink, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, confirm: confirm, nav: nav, notify: notify, logger: logger}
}

// Selected is the id shown in the detail view, or "".
func (d *Dispatcher) Selected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

func (d *Dispatcher) OnView(ctx context.Context, id string) (*Patient, error) {
	p, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, d.fail(err)
	}
	d.mu.Lock()
	d.selected = id
	d.mu.Unlock()
	d.nav.Navigate(ViewRoute(id))
	return p, nil
}

// OnEdit returns a form seeded from the stored record.
func (d *Dispatcher) OnEdit(ctx context.Context, id string) (*PatientForm, error) {
	p, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, d.fail(err)
	}
	d.nav.Navigate(EditRoute(id))
	return NewEditForm(d.repo, p), nil
}

// OnCreate submits a new patient built from fields.
func (d *Dispatcher) OnCreate(ctx context.Context, fields PatientFields) (*Patient, error) {
	f := NewCreateForm(d.repo)
	for name, value := range fieldValues(fields) {
		if err := f.Set(name, value); err != nil {
			return nil, err
		}
	}
	return d.OnSave(ctx, f)
}

// OnSave submits f. On success the list view is shown again; on a
// validation failure the form stays open.
func (d *Dispatcher) OnSave(ctx context.Context, f *PatientForm) (*Patient, error) {
	p, err := f.Submit(ctx)
	if err != nil {
		return nil, d.fail(err)
	}
	msg := MsgPatientAdded
	if f.Mode() == form.ModeEdit {
		msg = MsgPatientUpdated
	}
	d.notify.Notify(msg, feedback.SeveritySuccess)
	d.nav.Navigate(RouteList)
	return p, nil
}

// OnDelete asks for confirmation and deletes. It reports whether a record
// was removed; a declined prompt or an already-deleted record is not an
// error.
func (d *Dispatcher) OnDelete(ctx context.Context, id string) (bool, error) {
	p, err := d.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		d.gone(id)
		return false, nil
	}
	if err != nil {
		return false, d.fail(err)
	}

	ok, err := d.confirm.Confirm(ctx, fmt.Sprintf("Are you sure you want to delete %s?", p.Name))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	err = d.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		d.gone(id)
		return false, nil
	}
	if err != nil {
		return false, d.fail(err)
	}

	if d.clearSelection(id) {
		d.nav.Navigate(RouteList)
	}
	d.notify.Notify(MsgPatientDeleted, feedback.SeveritySuccess)
	return true, nil
}

// gone handles a record that disappeared under a stale list.
func (d *Dispatcher) gone(id string) {
	if d.clearSelection(id) {
		d.nav.Navigate(RouteList)
	}
	d.notify.Notify(MsgPatientMissing, feedback.SeverityInfo)
}

func (d *Dispatcher) clearSelection(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected != id {
		return false
	}
	d.selected = ""
	return true
}

// fail raises the notice that matches err and returns err unchanged.
func (d *Dispatcher) fail(err error) error {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		d.notify.Notify(RequiredFieldsMessage, feedback.SeverityWarning)
	case errors.Is(err, ErrNotFound):
		d.notify.Notify(MsgPatientMissing, feedback.SeverityInfo)
	case errors.Is(err, form.ErrSubmitting):
	default:
		d.logger.Error().Err(err).Msg("patient action failed")
		d.notify.Notify(MsgPersistenceFail, feedback.SeverityError)
	}
	return err
}

func fieldValues(f PatientFields) map[string]string {
	return map[string]string{
		"name":             f.Name,
		"email":            f.Email,
		"phone":            f.Phone,
		"date_of_birth":    f.DateOfBirth,
		"address":          f.Address,
		"medical_history":  f.MedicalHistory,
		"last_visit":       f.LastVisit,
		"next_appointment": f.NextAppointment,
	}
}
