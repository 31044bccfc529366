package schema

import (
	"fmt"

	"github.com/mwantia/vds/data"
)

// Policy controls whether a field may be rewritten after its first write.
type Policy int

const (
	// Overwrite allows any number of writes, each replacing the previous value.
	Overwrite Policy = iota
	// WriteOnce rejects every write after the first successful one.
	WriteOnce
)

func (p Policy) String() string {
	switch p {
	case WriteOnce:
		return "write-once"
	default:
		return "overwrite"
	}
}

// Dim is one axis of an array field. It either references a dimensioning
// field (Ref) whose stored value gives the length, or is a constant (Size).
type Dim struct {
	Ref  *data.FieldKey
	Size uint64
}

// DimOf references a dimensioning field as an axis.
func DimOf(group, field string) Dim {
	key := data.NewFieldKey(group, field)
	return Dim{Ref: &key}
}

// Const declares a fixed-length axis.
func Const(size uint64) Dim {
	return Dim{Size: size}
}

func (d Dim) String() string {
	if d.Ref != nil {
		return d.Ref.String()
	}
	return fmt.Sprintf("%d", d.Size)
}

// Field describes a single named, typed quantity of a dataset.
type Field struct {
	Key    data.FieldKey
	Type   data.DataType
	Dims   []Dim
	Policy Policy
	Doc    string
}

// IsArray reports whether the field has at least one axis.
func (f *Field) IsArray() bool {
	return len(f.Dims) > 0
}

// Rank returns the number of axes.
func (f *Field) Rank() int {
	return len(f.Dims)
}

// DimRefs returns the keys of all referenced dimensioning fields in axis order.
func (f *Field) DimRefs() []data.FieldKey {
	refs := make([]data.FieldKey, 0, len(f.Dims))
	for _, d := range f.Dims {
		if d.Ref != nil {
			refs = append(refs, *d.Ref)
		}
	}
	return refs
}

// Shape resolves the field's axes with the given lookup for referenced
// dimensions. The lookup returns false when a dimension has not been written.
func (f *Field) Shape(lookup func(data.FieldKey) (uint64, bool)) ([]uint64, error) {
	shape := make([]uint64, len(f.Dims))
	for i, d := range f.Dims {
		if d.Ref == nil {
			shape[i] = d.Size
			continue
		}

		n, ok := lookup(*d.Ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %s", data.ErrMissingDimension, f.Key, d.Ref)
		}
		shape[i] = n
	}
	return shape, nil
}

func (f *Field) String() string {
	if !f.IsArray() {
		return fmt.Sprintf("%s:%s", f.Key, f.Type)
	}
	return fmt.Sprintf("%s:%s%v", f.Key, f.Type, f.Dims)
}

func scalar(group, name string, t data.DataType, policy Policy, doc string) *Field {
	return &Field{
		Key:    data.NewFieldKey(group, name),
		Type:   t,
		Policy: policy,
		Doc:    doc,
	}
}

func array(group, name string, t data.DataType, dims []Dim, doc string) *Field {
	return &Field{
		Key:    data.NewFieldKey(group, name),
		Type:   t,
		Dims:   dims,
		Policy: Overwrite,
		Doc:    doc,
	}
}
