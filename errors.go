package vds

import (
	"errors"

	"github.com/mwantia/vds/data"
)

// Errors returned by datasets. Callers test with errors.Is; every error
// returned by this package matches one of them or is a plain context error.
var (
	// Lifecycle errors
	ErrInvalidHandle   = data.ErrInvalidHandle
	ErrAlreadyExists   = data.ErrAlreadyExists
	ErrNotFound        = data.ErrNotFound
	ErrReadOnlyDataset = data.ErrReadOnlyDataset

	// Field access errors
	ErrReadOnlyViolation = data.ErrReadOnlyViolation
	ErrMissingDimension  = data.ErrMissingDimension
	ErrDimensionMismatch = data.ErrDimensionMismatch
	ErrBufferTooSmall    = data.ErrBufferTooSmall
	ErrTypeMismatch      = data.ErrTypeMismatch
	ErrUnknownField      = data.ErrUnknownField
	ErrInvalidArgument   = data.ErrInvalidArgument

	// Backend errors
	ErrBackendIO          = data.ErrBackendIO
	ErrUnsupportedBackend = data.ErrUnsupportedBackend
)

// ExitCode is a stable numeric status for an operation's outcome.
type ExitCode int

const (
	Success ExitCode = iota
	// Failure covers errors outside the dataset error taxonomy, such as a
	// cancelled context.
	Failure
	InvalidHandle
	AlreadyExists
	NotFound
	ReadOnlyViolation
	MissingDimension
	DimensionMismatch
	BufferTooSmall
	BackendIOError
	TypeMismatch
	UnknownField
	ReadOnlyDataset
	InvalidArgument
	UnsupportedBackend
)

var exitCodeNames = map[ExitCode]string{
	Success:            "success",
	Failure:            "failure",
	InvalidHandle:      "invalid handle",
	AlreadyExists:      "already exists",
	NotFound:           "not found",
	ReadOnlyViolation:  "read-only violation",
	MissingDimension:   "missing dimension",
	DimensionMismatch:  "dimension mismatch",
	BufferTooSmall:     "buffer too small",
	BackendIOError:     "backend i/o error",
	TypeMismatch:       "type mismatch",
	UnknownField:       "unknown field",
	ReadOnlyDataset:    "read-only dataset",
	InvalidArgument:    "invalid argument",
	UnsupportedBackend: "unsupported backend",
}

func (c ExitCode) String() string {
	if name, ok := exitCodeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Backend failures are matched first: a corrupted record may wrap a domain
// error, but the caller has to treat it as an I/O problem.
var exitCodeErrors = []struct {
	err  error
	code ExitCode
}{
	{ErrBackendIO, BackendIOError},
	{ErrInvalidHandle, InvalidHandle},
	{ErrAlreadyExists, AlreadyExists},
	{ErrNotFound, NotFound},
	{ErrReadOnlyDataset, ReadOnlyDataset},
	{ErrReadOnlyViolation, ReadOnlyViolation},
	{ErrMissingDimension, MissingDimension},
	{ErrDimensionMismatch, DimensionMismatch},
	{ErrBufferTooSmall, BufferTooSmall},
	{ErrTypeMismatch, TypeMismatch},
	{ErrUnknownField, UnknownField},
	{ErrInvalidArgument, InvalidArgument},
	{ErrUnsupportedBackend, UnsupportedBackend},
}

// Code maps err to its ExitCode. A nil error is Success.
func Code(err error) ExitCode {
	if err == nil {
		return Success
	}
	for _, e := range exitCodeErrors {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return Failure
}
