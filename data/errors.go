package data

import (
	"errors"
	"fmt"
	"sync"
)

// Standard errors that backends and the field access layer must use.
// Every public operation returns one of these (possibly wrapped) or nil.
var (
	// Handle lifecycle errors
	ErrInvalidHandle   = errors.New("vds: invalid or closed dataset handle")
	ErrAlreadyExists   = errors.New("vds: dataset already exists")
	ErrNotFound        = errors.New("vds: not found")
	ErrReadOnlyDataset = errors.New("vds: dataset opened read-only")

	// Field policy errors
	ErrReadOnlyViolation = errors.New("vds: write-once field already written")
	ErrMissingDimension  = errors.New("vds: dimensioning field not written")
	ErrDimensionMismatch = errors.New("vds: array length does not match dimensions")
	ErrBufferTooSmall    = errors.New("vds: buffer too small")
	ErrTypeMismatch      = errors.New("vds: type mismatch")
	ErrUnknownField      = errors.New("vds: unknown field")
	ErrInvalidArgument   = errors.New("vds: invalid argument")

	// Backend errors
	ErrBackendIO          = errors.New("vds: backend i/o error")
	ErrUnsupportedBackend = errors.New("vds: unsupported backend")
)

// IOError wraps a low-level failure so that it matches both ErrBackendIO
// and the original cause.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendIO) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrBackendIO, op, err)
}

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
