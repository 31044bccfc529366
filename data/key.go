package data

import (
	"fmt"
	"strings"
)

// FieldKey addresses a single field inside a dataset.
type FieldKey struct {
	Group string
	Field string
}

func NewFieldKey(group, field string) FieldKey {
	return FieldKey{Group: group, Field: field}
}

// String returns the canonical "group.field" form.
func (k FieldKey) String() string {
	return k.Group + "." + k.Field
}

// ParseFieldKey parses the "group.field" form.
func ParseFieldKey(s string) (FieldKey, error) {
	group, field, ok := strings.Cut(s, ".")
	if !ok {
		return FieldKey{}, fmt.Errorf("%w: malformed field key '%s'", ErrInvalidArgument, s)
	}

	key := FieldKey{Group: group, Field: field}
	return key, key.Validate()
}

// Validate checks that both parts are usable as file, table and object names.
func (k FieldKey) Validate() error {
	for _, part := range []string{k.Group, k.Field} {
		if part == "" {
			return fmt.Errorf("%w: empty name in field key '%s'", ErrInvalidArgument, k)
		}

		for _, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			default:
				return fmt.Errorf("%w: invalid character %q in field key '%s'", ErrInvalidArgument, r, k)
			}
		}
	}

	return nil
}
