package binary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
)

// BinaryBackend stores a dataset in a single self-describing container file:
//
// - a fixed superblock at offset 0 pointing to the directory
// - a directory listing every field with its type, shape and data block
// - data blocks holding raw little-endian payloads
//
// Overwriting a field whose new payload fits its block rewrites only that
// block. Otherwise the payload moves to a new block and the old one is
// returned to the free list. Each update ends by rewriting the superblock,
// which is the commit point, followed by an fsync.
type BinaryBackend struct {
	mu   sync.Mutex
	path string
	file *os.File

	opened   bool
	closed   bool
	readOnly bool

	sb    *superblock
	dir   *directory
	alloc *allocator

	// broken is set when a partial write may have left the file inconsistent
	broken error
}

// NewBinaryBackend creates a backend for the container file at path.
func NewBinaryBackend(path string) *BinaryBackend {
	return &BinaryBackend{
		path: path,
	}
}

// Returns the identifier name defined for this backend
func (*BinaryBackend) Name() string {
	return "binary"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (bb *BinaryBackend) Open(ctx context.Context, mode backend.Mode) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.opened || bb.closed {
		return data.ErrInvalidHandle
	}

	exists, isContainer, err := bb.inspect()
	if err != nil {
		return err
	}

	switch mode {
	case backend.ModeOpen, backend.ModeReadOnly:
		if !exists {
			return fmt.Errorf("%w: %s", data.ErrNotFound, bb.path)
		}
		if !isContainer {
			return data.IOError("open", fmt.Errorf("'%s' is not a container", bb.path))
		}
		if err := bb.load(mode.Writable()); err != nil {
			return err
		}

	case backend.ModeCreate, backend.ModeOverwrite:
		if exists && !isContainer {
			return fmt.Errorf("%w: '%s' is not a container", data.ErrAlreadyExists, bb.path)
		}
		if exists && mode == backend.ModeCreate {
			return fmt.Errorf("%w: %s", data.ErrAlreadyExists, bb.path)
		}
		if err := bb.create(); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown mode %s", data.ErrInvalidArgument, mode)
	}

	bb.opened = true
	bb.readOnly = !mode.Writable()
	return nil
}

// Remove deletes the container file.
func (bb *BinaryBackend) Remove(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if !bb.closed {
		return data.ErrInvalidHandle
	}
	if err := os.Remove(bb.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return data.IOError("remove", err)
	}
	return nil
}

// inspect reports whether the file exists with content and whether it starts
// with the container signature. An existing empty file counts as absent.
func (bb *BinaryBackend) inspect() (bool, bool, error) {
	file, err := os.Open(bb.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, data.IOError("stat", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false, false, data.IOError("stat", err)
	}
	if info.IsDir() {
		return true, false, nil
	}
	if info.Size() == 0 {
		return false, false, nil
	}

	head := make([]byte, len(Signature))
	if _, err := io.ReadFull(file, head); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return true, false, nil
		}
		return false, false, data.IOError("read signature", err)
	}
	return true, bytes.Equal(head, Signature), nil
}

func (bb *BinaryBackend) create() error {
	file, err := os.OpenFile(bb.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return data.IOError("create", err)
	}

	bb.file = file
	bb.dir = newDirectory()
	bb.alloc = newAllocator(superblockSize, nil)
	bb.sb = &superblock{
		DirCapacity: initialDirCapacity,
		ID:          uuid.Must(uuid.NewV7()),
	}
	bb.sb.DirAddr = bb.alloc.allocEOF(initialDirCapacity)

	if err := bb.commit(bb.dir, bb.alloc, bb.sb); err != nil {
		file.Close()
		os.Remove(bb.path)
		return err
	}
	return nil
}

func (bb *BinaryBackend) load(writable bool) error {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}

	file, err := os.OpenFile(bb.path, flag, 0)
	if err != nil {
		return data.IOError("open", err)
	}

	sb, dir, free, err := readContainer(file)
	if err != nil {
		file.Close()
		return data.IOError("open "+bb.path, err)
	}

	bb.file = file
	bb.sb = sb
	bb.dir = dir
	bb.alloc = newAllocator(sb.EOF, free)
	return nil
}

func readContainer(file *os.File) (*superblock, *directory, []block, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, nil, nil, err
	}

	r := codec.NewReader(file)
	head, err := r.ReadBytes(superblockSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read superblock: %w", err)
	}

	sb, err := decodeSuperblock(head)
	if err != nil {
		return nil, nil, nil, err
	}
	if uint64(info.Size()) < sb.EOF {
		return nil, nil, nil, fmt.Errorf("container truncated: %d bytes, expected %d", info.Size(), sb.EOF)
	}
	if sb.DirSize > sb.DirCapacity || sb.DirCapacity > sb.EOF || sb.DirAddr > sb.EOF-sb.DirCapacity {
		return nil, nil, nil, fmt.Errorf("directory points outside the container")
	}

	raw, err := r.At(int64(sb.DirAddr)).ReadBytes(int(sb.DirSize))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read directory: %w", err)
	}

	dir, free, err := decodeDirectory(raw, sb.EOF)
	if err != nil {
		return nil, nil, nil, err
	}
	return sb, dir, free, nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (bb *BinaryBackend) Close(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if !bb.opened || bb.closed {
		return data.ErrInvalidHandle
	}

	bb.closed = true
	if err := bb.file.Close(); err != nil {
		return data.IOError("close", err)
	}
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (*BinaryBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityPersistent,
			backend.CapabilityInPlaceUpdate,
			backend.CapabilityResize,
			backend.CapabilityExactFloat,
			backend.CapabilitySelfDescribing,
		},
	}
}

// ContainerID returns the identifier stored in the superblock.
func (bb *BinaryBackend) ContainerID() uuid.UUID {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.sb == nil {
		return uuid.Nil
	}
	return bb.sb.ID
}

func (bb *BinaryBackend) HasScalar(ctx context.Context, key data.FieldKey) (bool, error) {
	e, err := bb.lookup(key)
	if err != nil || e == nil {
		return false, err
	}
	return len(e.Shape) == 0, nil
}

func (bb *BinaryBackend) HasArray(ctx context.Context, key data.FieldKey) (bool, error) {
	e, err := bb.lookup(key)
	if err != nil || e == nil {
		return false, err
	}
	return len(e.Shape) > 0, nil
}

func (bb *BinaryBackend) ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error) {
	return bb.read(key, typ, backend.Scalar)
}

func (bb *BinaryBackend) WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, false); err != nil {
		return err
	}
	return bb.write(key, value)
}

func (bb *BinaryBackend) ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", data.ErrInvalidArgument)
	}
	return bb.read(key, typ, length)
}

func (bb *BinaryBackend) WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, true); err != nil {
		return err
	}
	return bb.write(key, value)
}

func (bb *BinaryBackend) ArrayLen(ctx context.Context, key data.FieldKey) (int, error) {
	e, err := bb.lookup(key)
	if err != nil {
		return 0, err
	}
	if e == nil || len(e.Shape) == 0 {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	return e.length(), nil
}

func (bb *BinaryBackend) Keys(ctx context.Context) ([]data.FieldKey, error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if err := bb.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]data.FieldKey, 0, bb.dir.entries.Len())
	var err error
	bb.dir.entries.Scan(func(name string, _ *entry) bool {
		var key data.FieldKey
		key, err = data.ParseFieldKey(name)
		keys = append(keys, key)
		return err == nil
	})
	if err != nil {
		return nil, data.IOError("keys", err)
	}
	return keys, nil
}

func (bb *BinaryBackend) checkOpen() error {
	if !bb.opened || bb.closed {
		return data.ErrInvalidHandle
	}
	return bb.broken
}

func (bb *BinaryBackend) lookup(key data.FieldKey) (*entry, error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if err := bb.checkOpen(); err != nil {
		return nil, err
	}

	e, _ := bb.dir.entries.Get(key.String())
	return e, nil
}

// read loads a field. A negative length requests a scalar.
func (bb *BinaryBackend) read(key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if err := bb.checkOpen(); err != nil {
		return nil, err
	}

	e, ok := bb.dir.entries.Get(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err := backend.CheckRead(key, e.Type, e.Shape, typ, length); err != nil {
		return nil, err
	}

	raw, err := codec.NewReader(bb.file).At(int64(e.Addr)).ReadBytes(int(e.Size))
	if err != nil {
		return nil, data.IOError("read "+key.String(), err)
	}

	v, err := codec.DecodePayload(codec.NewReader(codec.NewBuffer(raw)), e.Type, e.length())
	if err != nil {
		return nil, data.IOError("decode "+key.String(), err)
	}
	v.Shape = append([]uint64(nil), e.Shape...)
	return v, nil
}

func (bb *BinaryBackend) write(key data.FieldKey, value *data.Value) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if err := bb.checkOpen(); err != nil {
		return err
	}
	if bb.readOnly {
		return data.ErrReadOnlyDataset
	}

	buf := codec.NewBuffer(make([]byte, 0, codec.PayloadSize(value)))
	if err := codec.EncodePayload(codec.NewWriter(buf), value); err != nil {
		return err
	}
	payload := buf.Bytes()
	size := uint64(len(payload))

	// Work on copies so a failed update leaves the committed state untouched
	dir := bb.dir.clone()
	alloc := bb.alloc.snapshot()
	sb := *bb.sb

	name := key.String()
	next := &entry{
		Type:  value.Type,
		Shape: append([]uint64(nil), value.Shape...),
		Size:  size,
	}

	previous, existed := dir.entries.Get(name)
	inPlace := existed && size <= previous.Capacity
	if inPlace {
		next.Addr = previous.Addr
		next.Capacity = previous.Capacity
	} else {
		next.Addr = alloc.alloc(size)
		next.Capacity = size
	}

	if err := codec.NewWriter(bb.file).At(int64(next.Addr)).WriteBytes(payload); err != nil {
		if inPlace {
			bb.broken = data.IOError("write "+name, err)
			return bb.broken
		}
		return data.IOError("write "+name, err)
	}

	if existed && !inPlace {
		alloc.release(previous.Addr, previous.Capacity)
	}
	dir.entries.Set(name, next)

	// The directory may already be half rewritten, so the handle stays unusable
	if err := bb.commit(dir, alloc, &sb); err != nil {
		bb.broken = err
		return err
	}

	bb.dir = dir
	bb.alloc = alloc
	bb.sb = &sb
	return nil
}

// commit writes the directory and then the superblock. The directory is
// rewritten in place when it fits its block, otherwise it moves to EOF.
func (bb *BinaryBackend) commit(dir *directory, alloc *allocator, sb *superblock) error {
	encoded := dir.encode(alloc.free)

	if uint64(len(encoded)) > sb.DirCapacity {
		oldAddr, oldCapacity := sb.DirAddr, sb.DirCapacity
		if oldAddr != 0 {
			alloc.release(oldAddr, oldCapacity)
		}

		// Reserve room for the extra free-list entry and future growth
		encoded = dir.encode(alloc.free)
		capacity := uint64(2 * len(encoded))
		sb.DirAddr = alloc.allocEOF(capacity)
		sb.DirCapacity = capacity
		encoded = dir.encode(alloc.free)
	}

	sb.DirSize = uint64(len(encoded))
	sb.EOF = alloc.eof

	w := codec.NewWriter(bb.file)
	if err := w.At(int64(sb.DirAddr)).WriteBytes(encoded); err != nil {
		return data.IOError("write directory", err)
	}
	// Keep the file length in sync with EOF even when trailing blocks are unused
	if err := bb.file.Truncate(int64(sb.EOF)); err != nil {
		return data.IOError("resize container", err)
	}
	if err := w.At(0).WriteBytes(sb.encode()); err != nil {
		return data.IOError("write superblock", err)
	}
	if err := bb.file.Sync(); err != nil {
		return data.IOError("sync", err)
	}
	return nil
}
