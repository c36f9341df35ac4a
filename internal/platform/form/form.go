// Package form holds an editable draft of an entity, checks required fields
// on submit and hands the draft to a commit function.
package form

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrSubmitting is returned while a submit for the same form is in flight.
var ErrSubmitting = errors.New("form: submit in progress")

// ValidationError lists the required fields that were empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Setter parses a raw value into one field of the draft.
type Setter[T any] func(draft *T, value string) error

// CommitFunc persists a validated draft.
type CommitFunc[T, R any] func(ctx context.Context, draft T) (R, error)

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// Form is a draft of T plus the rules for editing and committing it.
// Required fields are declared with `validate:"required"` tags on T.
type Form[T, R any] struct {
	mu         sync.Mutex
	mode       Mode
	draft      T
	setters    map[string]Setter[T]
	derive     func(*T)
	commit     CommitFunc[T, R]
	submitting bool
}

type Option[T, R any] func(*Form[T, R])

// WithDerive registers a hook run after every successful Set.
func WithDerive[T, R any](fn func(*T)) Option[T, R] {
	return func(f *Form[T, R]) { f.derive = fn }
}

func New[T, R any](mode Mode, draft T, setters map[string]Setter[T], commit func(ctx context.Context, draft T) (R, error), opts ...Option[T, R]) *Form[T, R] {
	f := &Form[T, R]{
		mode:    mode,
		draft:   draft,
		setters: setters,
		commit:  commit,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.derive != nil {
		f.derive(&f.draft)
	}
	return f
}

func (f *Form[T, R]) Mode() Mode { return f.mode }

// Draft returns a copy of the current draft.
func (f *Form[T, R]) Draft() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Fields lists the settable field names in sorted order.
func (f *Form[T, R]) Fields() []string {
	names := make([]string, 0, len(f.setters))
	for name := range f.setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set updates one field of the draft.
func (f *Form[T, R]) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmitting
	}
	set, ok := f.setters[field]
	if !ok {
		return fmt.Errorf("form: unknown field %q", field)
	}
	if err := set(&f.draft, value); err != nil {
		return fmt.Errorf("form: %s: %w", field, err)
	}
	if f.derive != nil {
		f.derive(&f.draft)
	}
	return nil
}

// Submit validates the draft and, when every required field is present,
// commits it. A *ValidationError means commit was never called.
func (f *Form[T, R]) Submit(ctx context.Context) (R, error) {
	var zero R

	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return zero, ErrSubmitting
	}
	draft := f.draft
	if err := Check(draft); err != nil {
		f.mu.Unlock()
		return zero, err
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()
	return f.commit(ctx, draft)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Check runs the presence checks declared on v. Failures come back as a
// *ValidationError keyed by JSON field name.
func Check(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}
