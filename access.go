package vds

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/schema"
)

// Write stores value in the field named "group.field".
//
// Array values may be passed flat: they are reshaped to the shape the
// field's dimensions resolve to, and must hold exactly that many elements.
func (ds *Dataset) Write(ctx context.Context, name string, value *data.Value) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkWritable(); err != nil {
		return err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return err
	}

	return ds.write(ctx, f, value)
}

func (ds *Dataset) write(ctx context.Context, f *schema.Field, value *data.Value) error {
	if value == nil {
		return fmt.Errorf("%w: nil value for %s", data.ErrInvalidArgument, f.Key)
	}
	if value.Type != f.Type {
		ds.logger.Debug("Rejected write of %s to %s", value.Type, f)
		return fmt.Errorf("%w: %s expects %s, got %s", data.ErrTypeMismatch, f.Key, f.Type, value.Type)
	}

	if f.Policy == schema.WriteOnce {
		present, err := ds.has(ctx, f)
		if err != nil {
			return err
		}
		if present {
			ds.logger.Debug("Rejected rewrite of write-once field %s", f.Key)
			return fmt.Errorf("%w: %s", data.ErrReadOnlyViolation, f.Key)
		}
	}

	if !f.IsArray() {
		return ds.writeScalar(ctx, f, value)
	}
	return ds.writeArray(ctx, f, value)
}

func (ds *Dataset) writeScalar(ctx context.Context, f *schema.Field, value *data.Value) error {
	if !value.IsScalar() || value.Len() != 1 {
		return fmt.Errorf("%w: %s is a scalar, got %d elements", data.ErrDimensionMismatch, f.Key, value.Len())
	}
	if f.Type == data.TypeDim && value.Dims[0] == 0 {
		return fmt.Errorf("%w: dimension %s must be positive", data.ErrInvalidArgument, f.Key)
	}

	if err := ds.backend.WriteScalar(ctx, f.Key, value); err != nil {
		return err
	}

	if f.Type == data.TypeDim {
		ds.dims[f.Key] = value.Dims[0]
	}
	return nil
}

func (ds *Dataset) writeArray(ctx context.Context, f *schema.Field, value *data.Value) error {
	shape, err := f.Shape(ds.lookupDim)
	if err != nil {
		ds.logger.Debug("Rejected write of %s: %v", f.Key, err)
		return err
	}

	if value.IsScalar() || value.Len() != data.ShapeLen(shape) {
		ds.logger.Debug("Rejected write of %d elements to %s%v", value.Len(), f.Key, shape)
		return fmt.Errorf("%w: %s requires %d elements (shape %v), got %d",
			data.ErrDimensionMismatch, f.Key, data.ShapeLen(shape), shape, value.Len())
	}

	reshaped, err := value.Reshape(shape)
	if err != nil {
		return err
	}
	return ds.backend.WriteArray(ctx, f.Key, reshaped)
}

// Read returns the value of the field named "group.field". Arrays carry the
// shape resolved from their dimensions.
func (ds *Dataset) Read(ctx context.Context, name string) (*data.Value, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return nil, err
	}

	return ds.read(ctx, f)
}

func (ds *Dataset) read(ctx context.Context, f *schema.Field) (*data.Value, error) {
	present, err := ds.has(ctx, f)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, f.Key)
	}

	if !f.IsArray() {
		return ds.backend.ReadScalar(ctx, f.Key, f.Type)
	}

	shape, err := f.Shape(ds.lookupDim)
	if err != nil {
		return nil, err
	}

	n := data.ShapeLen(shape)
	stored, err := ds.backend.ArrayLen(ctx, f.Key)
	if err != nil {
		return nil, err
	}
	if stored != n {
		ds.logger.Debug("Field %s holds %d elements, dimensions resolve to %d", f.Key, stored, n)
		return nil, fmt.Errorf("%w: %s holds %d elements, dimensions resolve to %d", data.ErrDimensionMismatch, f.Key, stored, n)
	}

	value, err := ds.backend.ReadArray(ctx, f.Key, f.Type, n)
	if err != nil {
		return nil, err
	}
	return value.Reshape(shape)
}

// ReadInto reads the field into buf, which must have the field's type and
// room for at least RequiredLen elements; ErrBufferTooSmall otherwise.
// A larger buffer is accepted: only its first n elements are written and the
// rest is left untouched. It returns n, the number of elements written.
func (ds *Dataset) ReadInto(ctx context.Context, name string, buf *data.Value) (int, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return 0, err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return 0, err
	}
	if buf == nil {
		return 0, fmt.Errorf("%w: nil buffer", data.ErrInvalidArgument)
	}
	if buf.Type != f.Type {
		return 0, fmt.Errorf("%w: %s is %s, buffer is %s", data.ErrTypeMismatch, f.Key, f.Type, buf.Type)
	}

	present, err := ds.has(ctx, f)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, f.Key)
	}

	n, err := ds.requiredLen(f)
	if err != nil {
		return 0, err
	}
	if buf.Len() < n {
		return 0, fmt.Errorf("%w: %s requires %d elements, buffer holds %d", data.ErrBufferTooSmall, f.Key, n, buf.Len())
	}

	value, err := ds.read(ctx, f)
	if err != nil {
		return 0, err
	}

	switch f.Type {
	case data.TypeDim:
		copy(buf.Dims, value.Dims)
	case data.TypeInt:
		copy(buf.Ints, value.Ints)
	case data.TypeFloat:
		copy(buf.Floats, value.Floats)
	case data.TypeString:
		copy(buf.Strings, value.Strings)
	}
	return n, nil
}

// Has reports whether the field named "group.field" has been written.
func (ds *Dataset) Has(ctx context.Context, name string) (bool, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return false, err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return false, err
	}
	return ds.has(ctx, f)
}

func (ds *Dataset) has(ctx context.Context, f *schema.Field) (bool, error) {
	if f.IsArray() {
		return ds.backend.HasArray(ctx, f.Key)
	}
	return ds.backend.HasScalar(ctx, f.Key)
}

// RequiredLen returns the number of elements the field holds, resolved from
// its dimensions; 1 for scalars. It fails with ErrMissingDimension while a
// dimension is unwritten.
func (ds *Dataset) RequiredLen(ctx context.Context, name string) (int, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return 0, err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return 0, err
	}
	return ds.requiredLen(f)
}

func (ds *Dataset) requiredLen(f *schema.Field) (int, error) {
	shape, err := f.Shape(ds.lookupDim)
	if err != nil {
		return 0, err
	}
	return data.ShapeLen(shape), nil
}

// Shape returns the resolved shape of an array field; nil for scalars.
func (ds *Dataset) Shape(ctx context.Context, name string) ([]uint64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	f, err := ds.schema.Field(name)
	if err != nil {
		return nil, err
	}
	if !f.IsArray() {
		return nil, nil
	}
	return f.Shape(ds.lookupDim)
}

// Keys lists every field stored in the dataset, including fields the schema
// does not declare, ordered by key.
func (ds *Dataset) Keys(ctx context.Context) ([]data.FieldKey, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	keys, err := ds.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(keys, func(a, b data.FieldKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys, nil
}

// Fields returns the descriptors of every written field, dimensions and
// other scalars first, then arrays.
func (ds *Dataset) Fields(ctx context.Context) ([]*schema.Field, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	fields := make([]*schema.Field, 0)
	for _, f := range ds.schema.Fields() {
		present, err := ds.has(ctx, f)
		if err != nil {
			return nil, err
		}
		if present {
			fields = append(fields, f)
		}
	}
	return fields, nil
}
