package binary

import "sort"

// block is a contiguous byte range of the container.
type block struct {
	Addr uint64
	Size uint64
}

// allocator manages space inside the container. New space is taken from a
// first-fit free list before growing the file at EOF. Freed blocks are
// persisted with the directory so reopened containers keep reusing them.
type allocator struct {
	eof  uint64
	free []block
}

func newAllocator(eof uint64, free []block) *allocator {
	a := &allocator{eof: eof, free: append([]block(nil), free...)}
	a.normalize()
	return a
}

// alloc returns the address of a block of at least size bytes.
func (a *allocator) alloc(size uint64) uint64 {
	for i, b := range a.free {
		if b.Size < size {
			continue
		}

		addr := b.Addr
		if b.Size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = block{Addr: b.Addr + size, Size: b.Size - size}
		}
		return addr
	}

	return a.allocEOF(size)
}

// allocEOF always grows the file, never touching the free list.
func (a *allocator) allocEOF(size uint64) uint64 {
	addr := a.eof
	a.eof += size
	return addr
}

// release marks a block as free for future reuse.
func (a *allocator) release(addr, size uint64) {
	if size == 0 {
		return
	}
	a.free = append(a.free, block{Addr: addr, Size: size})
	a.normalize()
}

// normalize sorts the free list and merges adjacent blocks.
func (a *allocator) normalize() {
	sort.Slice(a.free, func(i, j int) bool {
		return a.free[i].Addr < a.free[j].Addr
	})

	merged := a.free[:0]
	for _, b := range a.free {
		if n := len(merged); n > 0 && merged[n-1].Addr+merged[n-1].Size == b.Addr {
			merged[n-1].Size += b.Size
			continue
		}
		merged = append(merged, b)
	}
	a.free = merged
}

func (a *allocator) snapshot() *allocator {
	return &allocator{eof: a.eof, free: append([]block(nil), a.free...)}
}
