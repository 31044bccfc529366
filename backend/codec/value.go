package codec

import (
	"errors"
	"fmt"

	"github.com/mwantia/vds/data"
)

// recordVersion prefixes every encoded record.
const recordVersion uint8 = 1

// MaxRank bounds the number of dimensions of a stored shape.
const MaxRank = 8

// PayloadSize returns the number of bytes EncodePayload writes for v.
func PayloadSize(v *data.Value) int {
	switch v.Type {
	case data.TypeString:
		size := 0
		for _, s := range v.Strings {
			size += 4 + len(s)
		}
		return size
	default:
		return 8 * v.Len()
	}
}

// EncodePayload writes the elements of v without any header.
func EncodePayload(w *Writer, v *data.Value) error {
	switch v.Type {
	case data.TypeDim:
		for _, d := range v.Dims {
			if err := w.WriteUint64(d); err != nil {
				return err
			}
		}
	case data.TypeInt:
		for _, i := range v.Ints {
			if err := w.WriteInt64(i); err != nil {
				return err
			}
		}
	case data.TypeFloat:
		for _, f := range v.Floats {
			if err := w.WriteFloat64(f); err != nil {
				return err
			}
		}
	case data.TypeString:
		for _, s := range v.Strings {
			if err := w.WriteString(s); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: cannot encode type %s", data.ErrTypeMismatch, v.Type)
	}
	return nil
}

// DecodePayload reads n elements of type typ. The returned value has no shape.
func DecodePayload(r *Reader, typ data.DataType, n int) (*data.Value, error) {
	v := &data.Value{Type: typ}

	switch typ {
	case data.TypeDim:
		v.Dims = make([]uint64, n)
		for i := range v.Dims {
			d, err := r.ReadUint64()
			if err != nil {
				return nil, err
			}
			v.Dims[i] = d
		}
	case data.TypeInt:
		v.Ints = make([]int64, n)
		for i := range v.Ints {
			d, err := r.ReadInt64()
			if err != nil {
				return nil, err
			}
			v.Ints[i] = d
		}
	case data.TypeFloat:
		v.Floats = make([]float64, n)
		for i := range v.Floats {
			d, err := r.ReadFloat64()
			if err != nil {
				return nil, err
			}
			v.Floats[i] = d
		}
	case data.TypeString:
		v.Strings = make([]string, n)
		for i := range v.Strings {
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			v.Strings[i] = s
		}
	default:
		return nil, fmt.Errorf("%w: cannot decode type %d", data.ErrTypeMismatch, typ)
	}

	return v, nil
}

// HeaderSize returns the size of the record header for a value of the given rank.
func HeaderSize(rank int) int {
	return 1 + 1 + 1 + 8*rank
}

// EncodeRecord serializes v with a self-describing header:
// version u8, type u8, rank u8, rank x u64 shape, payload.
func EncodeRecord(v *data.Value) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(v.Shape) > MaxRank {
		return nil, fmt.Errorf("%w: rank %d exceeds %d", data.ErrInvalidArgument, len(v.Shape), MaxRank)
	}

	buf := NewBuffer(make([]byte, 0, HeaderSize(len(v.Shape))+PayloadSize(v)))
	w := NewWriter(buf)

	if err := w.WriteUint8(recordVersion); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(uint8(v.Type)); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(uint8(len(v.Shape))); err != nil {
		return nil, err
	}
	for _, d := range v.Shape {
		if err := w.WriteUint64(d); err != nil {
			return nil, err
		}
	}
	if err := EncodePayload(w, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeRecord parses a record produced by EncodeRecord. Malformed input is
// reported as data.ErrBackendIO.
func DecodeRecord(b []byte) (*data.Value, error) {
	v, err := decodeRecord(b)
	if err != nil {
		if errors.Is(err, data.ErrTypeMismatch) {
			return nil, err
		}
		return nil, data.IOError("decode record", err)
	}
	return v, nil
}

func decodeRecord(b []byte) (*data.Value, error) {
	r := NewReader(NewBuffer(b))

	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != recordVersion {
		return nil, fmt.Errorf("unsupported record version %d", version)
	}

	typ, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if !data.DataType(typ).Valid() {
		return nil, fmt.Errorf("invalid record type %d", typ)
	}

	rank, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if rank > MaxRank {
		return nil, fmt.Errorf("invalid record rank %d", rank)
	}

	var shape []uint64
	for i := uint8(0); i < rank; i++ {
		d, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		shape = append(shape, d)
	}

	remaining := len(b) - int(r.Pos())
	elemSize := 8
	if data.DataType(typ) == data.TypeString {
		elemSize = 4
	}
	n, ok := data.ShapeLenWithin(shape, remaining/elemSize)
	switch {
	case !ok:
		return nil, fmt.Errorf("record shape %v exceeds the %d byte payload", shape, remaining)
	case data.DataType(typ) == data.TypeString && remaining < 4*n:
		return nil, fmt.Errorf("record payload has %d bytes for %d strings", remaining, n)
	case data.DataType(typ) != data.TypeString && remaining != 8*n:
		return nil, fmt.Errorf("record payload has %d bytes for %d elements", remaining, n)
	}

	v, err := DecodePayload(r, data.DataType(typ), n)
	if err != nil {
		return nil, err
	}
	v.Shape = shape

	if int(r.Pos()) != len(b) {
		return nil, fmt.Errorf("record has %d trailing bytes", len(b)-int(r.Pos()))
	}

	return v, nil
}
