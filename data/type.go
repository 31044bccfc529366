package data

import "fmt"

// DataType identifies the element type stored in a field.
type DataType uint8

const (
	TypeInvalid DataType = iota
	TypeDim              // Unsigned 64-bit count used to dimension arrays
	TypeInt              // Signed 64-bit integer
	TypeFloat            // IEEE-754 double precision
	TypeString           // UTF-8 string
)

func (t DataType) String() string {
	switch t {
	case TypeDim:
		return "dim"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "str"
	default:
		return "invalid"
	}
}

// Valid reports whether t is one of the storable types.
func (t DataType) Valid() bool {
	return t >= TypeDim && t <= TypeString
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "dim":
		return TypeDim, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "str":
		return TypeString, nil
	}

	return TypeInvalid, fmt.Errorf("%w: unknown data type '%s'", ErrInvalidArgument, s)
}
