package directory

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a profile id does not exist in the directory.
var ErrNotFound = errors.New("profile not found")

// ValidationError names the first field that made a profile invalid.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile: %s %s", e.Field, e.Reason)
}

// NotFoundError carries the id that was looked up. It matches ErrNotFound
// under errors.Is.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
