package data

import "fmt"

// Integer is the set of integer types ConvertInts can produce.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// ConvertInts narrows stored 64-bit integers into T. Values outside T's range
// are reported as ErrTypeMismatch instead of being truncated.
func ConvertInts[T Integer](src []int64) ([]T, error) {
	out := make([]T, len(src))
	for i, v := range src {
		t := T(v)
		if int64(t) != v || (v < 0) != (t < 0) {
			return nil, fmt.Errorf("%w: element %d (%d) overflows %T", ErrTypeMismatch, i, v, t)
		}
		out[i] = t
	}
	return out, nil
}
