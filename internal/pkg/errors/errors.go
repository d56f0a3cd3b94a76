package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalid          = errors.New("invalid")
	ErrTooMany          = errors.New("too many requests")
	ErrInternal         = errors.New("internal")
	ErrUploadTooLarge   = errors.New("upload too large")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrStorage          = errors.New("storage failure")
	ErrCorruptSnapshot  = errors.New("corrupt snapshot")
	ErrRecoveryRequired = errors.New("index requires recovery")
	ErrEmbedderMismatch = errors.New("snapshot embedder mismatch")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// Validation marks a caller mistake, e.g. chunk overlap >= chunk size.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// Storage wraps a persistence failure so callers can match ErrStorage while
// keeping the underlying cause in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
