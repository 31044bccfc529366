package backend

import (
	"context"

	"github.com/mwantia/vds/data"
)

// Backend is the contract every physical storage implementation satisfies.
// An instance is bound to one location at construction time and serves a
// single dataset handle; it is not meant to be shared.
type Backend interface {
	// Name returns the identifier name defined for this backend
	Name() string
	// Open is part of the lifecycle behaviour and binds the backend to its
	// location according to mode.
	Open(ctx context.Context, mode Mode) error
	// Close is part of the lifecycle behaviour and releases all resources.
	// A second call returns data.ErrInvalidHandle.
	Close(ctx context.Context) error

	// GetCapabilities returns a list of capabilities supported by this backend.
	GetCapabilities() *Capabilities

	// HasScalar reports whether a scalar value is stored under key.
	HasScalar(ctx context.Context, key data.FieldKey) (bool, error)
	// HasArray reports whether an array value is stored under key.
	HasArray(ctx context.Context, key data.FieldKey) (bool, error)

	// ReadScalar returns the scalar stored under key; data.ErrNotFound if absent
	// and data.ErrTypeMismatch if it was stored with a different type.
	ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error)
	// WriteScalar stores value under key, replacing any previous value.
	WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error

	// ReadArray returns the array stored under key. The stored element count
	// must equal length, otherwise data.ErrDimensionMismatch is returned.
	ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error)
	// WriteArray stores value under key, replacing (and resizing) any previous value.
	WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error
	// ArrayLen returns the stored element count of an array field.
	ArrayLen(ctx context.Context, key data.FieldKey) (int, error)

	// Keys lists every stored field.
	Keys(ctx context.Context) ([]data.FieldKey, error)
}

// Remover is implemented by backends that can delete the dataset stored at
// their location. It is only called on a closed backend and leaves the
// location absent.
type Remover interface {
	Remove(ctx context.Context) error
}
