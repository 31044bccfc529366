package text

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mwantia/vds/data"
)

// formatElement renders a single element so that appendElement restores it
// bit-for-bit.
func formatElement(v *data.Value, i int) string {
	switch v.Type {
	case data.TypeDim:
		return strconv.FormatUint(v.Dims[i], 10)
	case data.TypeInt:
		return strconv.FormatInt(v.Ints[i], 10)
	case data.TypeFloat:
		return strconv.FormatFloat(v.Floats[i], 'g', -1, 64)
	case data.TypeString:
		return strconv.Quote(v.Strings[i])
	}
	return ""
}

// appendElement parses s and appends it to the elements of v.
func appendElement(v *data.Value, s string) error {
	switch v.Type {
	case data.TypeDim:
		d, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		v.Dims = append(v.Dims, d)
	case data.TypeInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		v.Ints = append(v.Ints, i)
	case data.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		v.Floats = append(v.Floats, f)
	case data.TypeString:
		str, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		v.Strings = append(v.Strings, str)
	}
	return nil
}

// WriteEntry writes one field in the group file grammar:
//
//	group.field:type = value
//	group.field:type[d1,d2] =
//	value
//	...
func WriteEntry(w io.Writer, key data.FieldKey, v *data.Value) error {
	if v.IsScalar() {
		_, err := fmt.Fprintf(w, "%s:%s = %s\n", key, v.Type, formatElement(v, 0))
		return err
	}

	dims := make([]string, len(v.Shape))
	for i, d := range v.Shape {
		dims[i] = strconv.FormatUint(d, 10)
	}

	if _, err := fmt.Fprintf(w, "%s:%s[%s] =\n", key, v.Type, strings.Join(dims, ",")); err != nil {
		return err
	}
	for i, n := 0, v.Len(); i < n; i++ {
		if _, err := fmt.Fprintln(w, formatElement(v, i)); err != nil {
			return err
		}
	}
	return nil
}

// maxRank bounds the number of dimensions a header may declare.
const maxRank = 8

// parseHeader splits "group.field:type[dims] = rest". The returned value
// carries the declared shape and no elements.
func parseHeader(line string) (data.FieldKey, *data.Value, int, string, error) {
	head, rest, ok := strings.Cut(line, " =")
	if !ok {
		return data.FieldKey{}, nil, 0, "", fmt.Errorf("missing '=' in %q", line)
	}
	rest = strings.TrimPrefix(rest, " ")

	name, typ, ok := strings.Cut(head, ":")
	if !ok {
		return data.FieldKey{}, nil, 0, "", fmt.Errorf("missing type in %q", line)
	}

	key, err := data.ParseFieldKey(name)
	if err != nil {
		return data.FieldKey{}, nil, 0, "", err
	}

	var shape []uint64
	if open := strings.IndexByte(typ, '['); open >= 0 {
		if !strings.HasSuffix(typ, "]") {
			return data.FieldKey{}, nil, 0, "", fmt.Errorf("unterminated shape in %q", line)
		}
		parts := strings.Split(typ[open+1:len(typ)-1], ",")
		if len(parts) > maxRank {
			return data.FieldKey{}, nil, 0, "", fmt.Errorf("shape in %q has more than %d dimensions", line, maxRank)
		}
		for _, part := range parts {
			d, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return data.FieldKey{}, nil, 0, "", fmt.Errorf("invalid shape in %q: %w", line, err)
			}
			shape = append(shape, d)
		}
		typ = typ[:open]
	}

	dt, err := data.ParseDataType(typ)
	if err != nil {
		return data.FieldKey{}, nil, 0, "", err
	}

	v := &data.Value{Type: dt, Shape: shape}
	if shape == nil {
		return key, v, 1, rest, nil
	}
	if rest != "" {
		return data.FieldKey{}, nil, 0, "", fmt.Errorf("unexpected inline value for array in %q", line)
	}
	n, ok := data.ShapeLenWithin(shape, math.MaxInt32)
	if !ok {
		return data.FieldKey{}, nil, 0, "", fmt.Errorf("shape %v in %q is too large", shape, line)
	}
	return key, v, n, "", nil
}

// parseGroup reads every entry of a group file.
func parseGroup(r io.Reader, group string, fn func(data.FieldKey, *data.Value) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	next := func() (string, bool) {
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return line, true
		}
		return "", false
	}

	for {
		line, ok := next()
		if !ok {
			break
		}

		key, v, n, rest, err := parseHeader(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if key.Group != group {
			return fmt.Errorf("line %d: field %s does not belong to group '%s'", lineNo, key, group)
		}

		if v.IsScalar() {
			if err := appendElement(v, rest); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		} else {
			if n == 0 {
				v = data.NewArray(v.Type, v.Shape)
			}
			for i := 0; i < n; i++ {
				elem, ok := next()
				if !ok {
					return fmt.Errorf("line %d: %s ends after %d of %d elements", lineNo, key, i, n)
				}
				if err := appendElement(v, elem); err != nil {
					return fmt.Errorf("line %d: %w", lineNo, err)
				}
			}
		}

		if err := fn(key, v); err != nil {
			return err
		}
	}

	return scanner.Err()
}
