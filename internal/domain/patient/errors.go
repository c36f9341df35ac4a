package patient

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(id string) error {
	return &NotFoundError{Entity: "patient", ID: id}
}

// PersistenceError is a failed read or write of the backing store. It is
// reported, never retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
