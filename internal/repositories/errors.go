package repositories

import "errors"

// ErrNotFound is returned when a record does not exist. Callers check it with
// errors.Is instead of matching error strings.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")
