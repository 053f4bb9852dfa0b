package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-record lookups when no record exists for
// the requested (user_id, media_id, media_type) tuple. List queries return
// empty results instead.
var ErrNotFound = errors.New("progress record not found")

// StorageError wraps a backend failure. It is surfaced to callers unchanged;
// stores never retry on the caller's behalf.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("progress store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
