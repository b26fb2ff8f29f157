package database

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every StorageError via errors.Is.
	ErrStorage  = errors.New("storage error")
	ErrNotFound = errors.New("scan not found")
)

// StorageError reports a failure of the durable store itself, as opposed to bad input.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
