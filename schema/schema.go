package schema

import (
	"fmt"

	"github.com/mwantia/vds/data"
)

// Schema is an immutable table of field descriptors. The field access layer
// consults it generically; nothing about individual fields is hard-coded there.
type Schema struct {
	fields map[data.FieldKey]*Field
	order  []*Field
}

// New validates the given descriptors and returns a schema that additionally
// contains the metadata group. Keys must be unique, referenced dimensions
// must be scalar Dim fields of the same schema, and fields may not dimension
// themselves.
func New(fields ...*Field) (*Schema, error) {
	s := &Schema{
		fields: make(map[data.FieldKey]*Field),
	}

	for _, f := range append(metadataFields(), fields...) {
		if err := s.add(f); err != nil {
			return nil, err
		}
	}

	for _, f := range s.order {
		for _, ref := range f.DimRefs() {
			if ref == f.Key {
				return nil, fmt.Errorf("%w: %s dimensions itself", data.ErrInvalidArgument, f.Key)
			}

			dim, exists := s.fields[ref]
			if !exists {
				return nil, fmt.Errorf("%w: %s references unknown dimension %s", data.ErrInvalidArgument, f.Key, ref)
			}
			if dim.Type != data.TypeDim || dim.IsArray() {
				return nil, fmt.Errorf("%w: %s references %s which is not a scalar dimension", data.ErrInvalidArgument, f.Key, ref)
			}
		}
	}

	return s, nil
}

// MustNew is like New but panics on an invalid table. Meant for package-level
// schema declarations.
func MustNew(fields ...*Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(f *Field) error {
	if f == nil {
		return fmt.Errorf("%w: nil field descriptor", data.ErrInvalidArgument)
	}
	if err := f.Key.Validate(); err != nil {
		return err
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: field %s has invalid type", data.ErrInvalidArgument, f.Key)
	}
	if existing, exists := s.fields[f.Key]; exists {
		if existing == f {
			return nil
		}
		return fmt.Errorf("%w: duplicate field %s", data.ErrInvalidArgument, f.Key)
	}
	for _, d := range f.Dims {
		if d.Ref == nil && d.Size == 0 {
			return fmt.Errorf("%w: field %s has a zero-length constant axis", data.ErrInvalidArgument, f.Key)
		}
	}

	s.fields[f.Key] = f
	s.order = append(s.order, f)
	return nil
}

// Lookup returns the descriptor registered for key.
func (s *Schema) Lookup(key data.FieldKey) (*Field, bool) {
	f, ok := s.fields[key]
	return f, ok
}

// Field looks up a descriptor by its "group.field" name.
func (s *Schema) Field(name string) (*Field, error) {
	key, err := data.ParseFieldKey(name)
	if err != nil {
		return nil, err
	}

	f, ok := s.fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrUnknownField, name)
	}
	return f, nil
}

// Fields returns all scalar descriptors followed by all array descriptors,
// each in declaration order. Dimensions therefore come before the arrays
// depending on them.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, 0, len(s.order))
	for _, f := range s.order {
		if !f.IsArray() {
			out = append(out, f)
		}
	}
	for _, f := range s.order {
		if f.IsArray() {
			out = append(out, f)
		}
	}
	return out
}
