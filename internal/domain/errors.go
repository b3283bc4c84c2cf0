package domain

import (
	"errors"
	"fmt"
)

// Failure classes. Every error returned by Service matches exactly one of
// these through errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalid          = errors.New("invalid input")
	ErrStore            = errors.New("store error")
)

var (
	// ErrUserNotFound is returned when no user has the requested email.
	ErrUserNotFound = classified(ErrNotFound, "User not found")
	// ErrActivityNotFound is returned when no activity has the requested name.
	ErrActivityNotFound = classified(ErrNotFound, "Activity not found")
	// ErrAlreadyEnrolled is returned when the user already holds a seat in the activity.
	ErrAlreadyEnrolled = classified(ErrConflict, "Student is already signed up")
	// ErrNotEnrolled is returned when unregistering a user that holds no seat.
	ErrNotEnrolled = classified(ErrConflict, "Student is not signed up for this activity")
	// ErrActivityFull is returned when the activity has no free seats.
	ErrActivityFull = classified(ErrCapacityExceeded, "Activity is full")
	// ErrActivityExists is returned when creating an activity whose name is taken.
	ErrActivityExists = classified(ErrAlreadyExists, "Activity already exists")
	// ErrUserExists is returned by stores when a concurrent caller created the user first.
	ErrUserExists = classified(ErrAlreadyExists, "User already exists")
)

type classifiedError struct {
	class error
	msg   string
}

func classified(class error, msg string) error {
	return &classifiedError{class: class, msg: msg}
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Unwrap() error { return e.class }

func invalid(format string, args ...any) error {
	return classified(ErrInvalid, fmt.Sprintf(format, args...))
}

// storeErr passes domain sentinels through and wraps anything else as ErrStore.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{ErrNotFound, ErrConflict, ErrCapacityExceeded, ErrAlreadyExists, ErrInvalid, ErrStore} {
		if errors.Is(err, class) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// Message returns the user-facing text of a domain error. For wrapped store
// failures it returns a generic message instead of driver internals.
func Message(err error) string {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.msg
	}
	if errors.Is(err, ErrStore) {
		return "internal storage error"
	}
	return err.Error()
}
