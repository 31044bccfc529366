package vds

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mwantia/vds/data"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{"nil", nil, Success},
		{"plain", errors.New("boom"), Failure},
		{"context", context.Canceled, Failure},
		{"invalid handle", ErrInvalidHandle, InvalidHandle},
		{"wrapped not found", fmt.Errorf("%w: nucleus.num", ErrNotFound), NotFound},
		{"read-only violation", fmt.Errorf("outer: %w", fmt.Errorf("%w: x", ErrReadOnlyViolation)), ReadOnlyViolation},
		{"missing dimension", ErrMissingDimension, MissingDimension},
		{"dimension mismatch", ErrDimensionMismatch, DimensionMismatch},
		{"buffer too small", ErrBufferTooSmall, BufferTooSmall},
		{"backend io", data.IOError("write", errors.New("disk full")), BackendIOError},
		{"backend io over domain", data.IOError("decode", data.ErrTypeMismatch), BackendIOError},
		{"type mismatch", ErrTypeMismatch, TypeMismatch},
		{"unknown field", ErrUnknownField, UnknownField},
		{"read-only dataset", ErrReadOnlyDataset, ReadOnlyDataset},
		{"invalid argument", ErrInvalidArgument, InvalidArgument},
		{"unsupported backend", ErrUnsupportedBackend, UnsupportedBackend},
		{"already exists", ErrAlreadyExists, AlreadyExists},
		{"joined", errors.Join(ErrNotFound, errors.New("close failed")), NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			if got := Code(tt.err); got != tt.want {
				tst.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExitCode_String(t *testing.T) {
	for code := Success; code <= UnsupportedBackend; code++ {
		if code.String() == "unknown" {
			t.Errorf("Expected a name for exit code %d", int(code))
		}
	}
	if ExitCode(99).String() != "unknown" {
		t.Errorf("Expected unknown for an undefined exit code")
	}
}
