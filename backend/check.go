package backend

import (
	"fmt"

	"github.com/mwantia/vds/data"
)

// Scalar is passed as length to CheckRead when a scalar is requested.
const Scalar = -1

// CheckRead compares a stored field against the requested type and length.
func CheckRead(key data.FieldKey, stored data.DataType, shape []uint64, typ data.DataType, length int) error {
	if stored != typ {
		return fmt.Errorf("%w: %s stored as %s, requested %s", data.ErrTypeMismatch, key, stored, typ)
	}

	switch {
	case length < 0 && len(shape) > 0:
		return fmt.Errorf("%w: %s is an array", data.ErrTypeMismatch, key)
	case length >= 0 && len(shape) == 0:
		return fmt.Errorf("%w: %s is a scalar", data.ErrTypeMismatch, key)
	case length >= 0 && data.ShapeLen(shape) != length:
		return fmt.Errorf("%w: %s stores %d elements, %d requested", data.ErrDimensionMismatch, key, data.ShapeLen(shape), length)
	}
	return nil
}

// CheckWrite validates a value before it is handed to storage.
func CheckWrite(key data.FieldKey, value *data.Value, array bool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := value.Validate(); err != nil {
		return err
	}
	if array && value.IsScalar() {
		return fmt.Errorf("%w: %s expects an array", data.ErrInvalidArgument, key)
	}
	if !array && !value.IsScalar() {
		return fmt.Errorf("%w: %s expects a scalar", data.ErrInvalidArgument, key)
	}
	return nil
}
