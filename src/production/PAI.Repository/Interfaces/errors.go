package interfaces

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested record does not exist,
// including Latest on a log that has never been written
var ErrNotFound = errors.New("not found")

// StorageError reports a failure of the backing medium
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, or returns nil when err is nil
func NewStorageError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}
