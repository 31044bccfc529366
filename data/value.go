package data

import (
	"fmt"
	"slices"
)

// Value is the uniform in-memory representation of a field's contents that
// travels between the field access layer and the backends. Exactly one of the
// payload slices is populated, the one matching Type. Scalars have an empty
// Shape and exactly one element.
type Value struct {
	Type  DataType
	Shape []uint64

	Dims    []uint64
	Ints    []int64
	Floats  []float64
	Strings []string
}

func DimValue(v uint64) *Value {
	return &Value{Type: TypeDim, Dims: []uint64{v}}
}

func IntValue(v int64) *Value {
	return &Value{Type: TypeInt, Ints: []int64{v}}
}

func FloatValue(v float64) *Value {
	return &Value{Type: TypeFloat, Floats: []float64{v}}
}

func StringValue(v string) *Value {
	return &Value{Type: TypeString, Strings: []string{v}}
}

// IntArray creates a one-dimensional array value. The slice is not copied.
func IntArray(v []int64) *Value {
	return &Value{Type: TypeInt, Shape: []uint64{uint64(len(v))}, Ints: v}
}

func FloatArray(v []float64) *Value {
	return &Value{Type: TypeFloat, Shape: []uint64{uint64(len(v))}, Floats: v}
}

func StringArray(v []string) *Value {
	return &Value{Type: TypeString, Shape: []uint64{uint64(len(v))}, Strings: v}
}

func DimArray(v []uint64) *Value {
	return &Value{Type: TypeDim, Shape: []uint64{uint64(len(v))}, Dims: v}
}

// NewArray allocates a zeroed array of the given type and shape.
func NewArray(t DataType, shape []uint64) *Value {
	n := ShapeLen(shape)
	v := &Value{Type: t, Shape: slices.Clone(shape)}

	switch t {
	case TypeDim:
		v.Dims = make([]uint64, n)
	case TypeInt:
		v.Ints = make([]int64, n)
	case TypeFloat:
		v.Floats = make([]float64, n)
	case TypeString:
		v.Strings = make([]string, n)
	}

	return v
}

// ShapeLen returns the element count described by shape; 1 for scalars.
func ShapeLen(shape []uint64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// ShapeLenWithin returns the element count described by shape and whether
// it is at most limit. A product that overflows reports false.
func ShapeLenWithin(shape []uint64, limit int) (int, bool) {
	n := uint64(1)
	for _, d := range shape {
		if d != 0 && n > uint64(limit)/d {
			return 0, false
		}
		n *= d
	}
	if n > uint64(limit) {
		return 0, false
	}
	return int(n), true
}

// IsScalar reports whether the value has no shape.
func (v *Value) IsScalar() bool {
	return len(v.Shape) == 0
}

// Len returns the number of stored elements.
func (v *Value) Len() int {
	switch v.Type {
	case TypeDim:
		return len(v.Dims)
	case TypeInt:
		return len(v.Ints)
	case TypeFloat:
		return len(v.Floats)
	case TypeString:
		return len(v.Strings)
	}
	return 0
}

// Validate checks the payload against Type and Shape.
func (v *Value) Validate() error {
	if v == nil {
		return fmt.Errorf("%w: nil value", ErrInvalidArgument)
	}
	if !v.Type.Valid() {
		return fmt.Errorf("%w: invalid data type %d", ErrTypeMismatch, v.Type)
	}

	populated := 0
	for _, n := range []int{len(v.Dims), len(v.Ints), len(v.Floats), len(v.Strings)} {
		if n > 0 {
			populated++
		}
	}
	if populated > 1 {
		return fmt.Errorf("%w: value carries more than one payload", ErrTypeMismatch)
	}

	if want := ShapeLen(v.Shape); v.Len() != want {
		return fmt.Errorf("%w: %d elements for shape %v", ErrDimensionMismatch, v.Len(), v.Shape)
	}

	return nil
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	return &Value{
		Type:    v.Type,
		Shape:   slices.Clone(v.Shape),
		Dims:    slices.Clone(v.Dims),
		Ints:    slices.Clone(v.Ints),
		Floats:  slices.Clone(v.Floats),
		Strings: slices.Clone(v.Strings),
	}
}

// Reshape returns a copy of v sharing the payload but carrying a new shape.
func (v *Value) Reshape(shape []uint64) (*Value, error) {
	if ShapeLen(shape) != v.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %d elements to %v", ErrDimensionMismatch, v.Len(), shape)
	}

	out := *v
	out.Shape = slices.Clone(shape)
	return &out, nil
}
