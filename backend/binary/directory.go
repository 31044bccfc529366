package binary

import (
	"fmt"
	"hash/crc32"
	"math"

	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
	"github.com/tidwall/btree"
)

// entry locates one field's payload inside the container.
type entry struct {
	Type     data.DataType
	Shape    []uint64
	Addr     uint64
	Size     uint64
	Capacity uint64
}

func (e *entry) length() int {
	return data.ShapeLen(e.Shape)
}

// checkSize verifies that the recorded payload size can hold the element
// count described by the shape.
func (e *entry) checkSize() error {
	if e.Type == data.TypeString {
		if _, ok := data.ShapeLenWithin(e.Shape, int(min(e.Size/4, math.MaxInt32))); !ok {
			return fmt.Errorf("shape %v does not fit %d string bytes", e.Shape, e.Size)
		}
		return nil
	}
	n, ok := data.ShapeLenWithin(e.Shape, int(min(e.Size/8, math.MaxInt32)))
	if !ok || uint64(n)*8 != e.Size {
		return fmt.Errorf("shape %v does not match %d payload bytes", e.Shape, e.Size)
	}
	return nil
}

// directory is the index of all fields plus the free list, ordered by key.
type directory struct {
	entries *btree.Map[string, *entry]
}

func newDirectory() *directory {
	return &directory{entries: btree.NewMap[string, *entry](0)}
}

func (d *directory) clone() *directory {
	c := newDirectory()
	d.entries.Scan(func(key string, e *entry) bool {
		copied := *e
		copied.Shape = append([]uint64(nil), e.Shape...)
		c.entries.Set(key, &copied)
		return true
	})
	return c
}

// encode serializes the directory followed by a crc32 checksum.
func (d *directory) encode(free []block) []byte {
	buf := codec.NewBuffer(nil)
	w := codec.NewWriter(buf)

	w.WriteUint32(uint32(d.entries.Len()))
	d.entries.Scan(func(key string, e *entry) bool {
		w.WriteString(key)
		w.WriteUint8(uint8(e.Type))
		w.WriteUint8(uint8(len(e.Shape)))
		for _, s := range e.Shape {
			w.WriteUint64(s)
		}
		w.WriteUint64(e.Addr)
		w.WriteUint64(e.Size)
		w.WriteUint64(e.Capacity)
		return true
	})

	w.WriteUint32(uint32(len(free)))
	for _, b := range free {
		w.WriteUint64(b.Addr)
		w.WriteUint64(b.Size)
	}

	w.WriteUint32(crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes()
}

func decodeDirectory(b []byte, eof uint64) (*directory, []block, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("directory truncated")
	}
	body := b[:len(b)-4]
	sum, err := codec.NewReader(codec.NewBuffer(b)).At(int64(len(body))).ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	if crc32.ChecksumIEEE(body) != sum {
		return nil, nil, fmt.Errorf("directory checksum mismatch")
	}

	r := codec.NewReader(codec.NewBuffer(body))
	d := newDirectory()

	count, err := r.ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	for i := uint32(0); i < count; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, nil, err
		}
		if _, err := data.ParseFieldKey(key); err != nil {
			return nil, nil, err
		}

		e := &entry{}
		typ, err := r.ReadUint8()
		if err != nil {
			return nil, nil, err
		}
		e.Type = data.DataType(typ)
		if !e.Type.Valid() {
			return nil, nil, fmt.Errorf("field %s has invalid type %d", key, typ)
		}

		rank, err := r.ReadUint8()
		if err != nil {
			return nil, nil, err
		}
		if rank > codec.MaxRank {
			return nil, nil, fmt.Errorf("field %s has invalid rank %d", key, rank)
		}
		for j := uint8(0); j < rank; j++ {
			s, err := r.ReadUint64()
			if err != nil {
				return nil, nil, err
			}
			e.Shape = append(e.Shape, s)
		}

		if e.Addr, err = r.ReadUint64(); err != nil {
			return nil, nil, err
		}
		if e.Size, err = r.ReadUint64(); err != nil {
			return nil, nil, err
		}
		if e.Capacity, err = r.ReadUint64(); err != nil {
			return nil, nil, err
		}
		if e.Size > e.Capacity || e.Capacity > eof || e.Addr > eof-e.Capacity {
			return nil, nil, fmt.Errorf("field %s points outside the container", key)
		}
		if err := e.checkSize(); err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", key, err)
		}

		d.entries.Set(key, e)
	}

	nfree, err := r.ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	if int64(nfree)*16 > int64(len(body))-r.Pos() {
		return nil, nil, fmt.Errorf("free list of %d blocks exceeds the directory", nfree)
	}
	free := make([]block, 0, nfree)
	for i := uint32(0); i < nfree; i++ {
		var b block
		if b.Addr, err = r.ReadUint64(); err != nil {
			return nil, nil, err
		}
		if b.Size, err = r.ReadUint64(); err != nil {
			return nil, nil, err
		}
		free = append(free, b)
	}

	return d, free, nil
}
