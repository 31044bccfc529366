package binary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/data"
)

func newTestContainer(t *testing.T) (*BinaryBackend, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dataset.vds")
	bb := NewBinaryBackend(path)
	if err := bb.Open(context.Background(), backend.ModeCreate); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return bb, path
}

func TestBinaryBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)

	num := data.NewFieldKey("nucleus", "num")
	coord := data.NewFieldKey("nucleus", "coord")
	label := data.NewFieldKey("nucleus", "label")

	coords := data.NewArray(data.TypeFloat, []uint64{2, 3})
	copy(coords.Floats, []float64{0, 1.39250319, 0, -1.20594314, 0.69625160, 0})

	if err := bb.WriteScalar(ctx, num, data.DimValue(2)); err != nil {
		t.Fatalf("WriteScalar failed: %v", err)
	}
	if err := bb.WriteArray(ctx, coord, coords); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	if err := bb.WriteArray(ctx, label, data.StringArray([]string{"C", ""})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	id := bb.ContainerID()
	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := NewBinaryBackend(path)
	if err := reopened.Open(ctx, backend.ModeReadOnly); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close(ctx)

	if reopened.ContainerID() != id {
		t.Errorf("Expected container id %s, got %s", id, reopened.ContainerID())
	}

	v, err := reopened.ReadScalar(ctx, num, data.TypeDim)
	if err != nil {
		t.Fatalf("ReadScalar failed: %v", err)
	}
	if v.Dims[0] != 2 {
		t.Errorf("Expected 2, got %d", v.Dims[0])
	}

	got, err := reopened.ReadArray(ctx, coord, data.TypeFloat, 6)
	if err != nil {
		t.Fatalf("ReadArray failed: %v", err)
	}
	if diff := cmp.Diff(coords, got); diff != "" {
		t.Errorf("coord mismatch (-want +got):\n%s", diff)
	}

	labels, err := reopened.ReadArray(ctx, label, data.TypeString, 2)
	if err != nil {
		t.Fatalf("ReadArray failed: %v", err)
	}
	if diff := cmp.Diff([]string{"C", ""}, labels.Strings); diff != "" {
		t.Errorf("label mismatch (-want +got):\n%s", diff)
	}

	keys, err := reopened.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if diff := cmp.Diff([]data.FieldKey{coord, label, num}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	if err := reopened.WriteScalar(ctx, num, data.DimValue(3)); !errors.Is(err, data.ErrReadOnlyDataset) {
		t.Errorf("Expected ErrReadOnlyDataset, got %v", err)
	}
}

func TestBinaryBackend_InPlaceOverwrite(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)
	defer bb.Close(ctx)

	key := data.NewFieldKey("nucleus", "charge")
	if err := bb.WriteArray(ctx, key, data.FloatArray([]float64{6, 6, 1, 1})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}

	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	original, _ := bb.dir.entries.Get(key.String())
	addr := original.Addr

	for i := 0; i < 5; i++ {
		if err := bb.WriteArray(ctx, key, data.FloatArray([]float64{float64(i), 6, 1, 1})); err != nil {
			t.Fatalf("WriteArray failed: %v", err)
		}
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if after.Size() != before.Size() {
		t.Errorf("Expected container to keep %d bytes, got %d", before.Size(), after.Size())
	}

	current, _ := bb.dir.entries.Get(key.String())
	if current.Addr != addr {
		t.Errorf("Expected payload to stay at %d, moved to %d", addr, current.Addr)
	}

	v, err := bb.ReadArray(ctx, key, data.TypeFloat, 4)
	if err != nil {
		t.Fatalf("ReadArray failed: %v", err)
	}
	if v.Floats[0] != 4 {
		t.Errorf("Expected 4, got %v", v.Floats[0])
	}
}

func TestBinaryBackend_ResizeRelocates(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)

	key := data.NewFieldKey("nucleus", "charge")
	if err := bb.WriteArray(ctx, key, data.FloatArray([]float64{1, 2})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	first, _ := bb.dir.entries.Get(key.String())
	firstAddr := first.Addr

	if err := bb.WriteArray(ctx, key, data.FloatArray([]float64{1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	grown, _ := bb.dir.entries.Get(key.String())
	if grown.Addr == firstAddr {
		t.Errorf("Expected larger payload to move away from %d", firstAddr)
	}
	if len(bb.alloc.free) == 0 {
		t.Errorf("Expected the old block to be released")
	}

	// A small field now fits into the released block
	other := data.NewFieldKey("nucleus", "repulsion")
	if err := bb.WriteScalar(ctx, other, data.FloatValue(0.5)); err != nil {
		t.Fatalf("WriteScalar failed: %v", err)
	}
	reused, _ := bb.dir.entries.Get(other.String())
	if reused.Addr != firstAddr {
		t.Errorf("Expected released block %d to be reused, got %d", firstAddr, reused.Addr)
	}

	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := NewBinaryBackend(path)
	if err := reopened.Open(ctx, backend.ModeOpen); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close(ctx)

	if _, err := reopened.ReadArray(ctx, key, data.TypeFloat, 2); !errors.Is(err, data.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	v, err := reopened.ReadArray(ctx, key, data.TypeFloat, 6)
	if err != nil {
		t.Fatalf("ReadArray failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5, 6}, v.Floats); diff != "" {
		t.Errorf("charge mismatch (-want +got):\n%s", diff)
	}
	r, err := reopened.ReadScalar(ctx, other, data.TypeFloat)
	if err != nil {
		t.Fatalf("ReadScalar failed: %v", err)
	}
	if r.Floats[0] != 0.5 {
		t.Errorf("Expected 0.5, got %v", r.Floats[0])
	}
}

func TestBinaryBackend_DirectoryGrowth(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)

	names := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa", "lambda", "mu", "nu", "xi", "omicron", "pi"}
	for i, name := range names {
		if err := bb.WriteScalar(ctx, data.NewFieldKey("greek", name), data.IntValue(int64(i))); err != nil {
			t.Fatalf("WriteScalar %s failed: %v", name, err)
		}
	}
	if bb.sb.DirCapacity <= initialDirCapacity {
		t.Errorf("Expected directory to outgrow %d bytes", initialDirCapacity)
	}
	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := NewBinaryBackend(path)
	if err := reopened.Open(ctx, backend.ModeReadOnly); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close(ctx)

	for i, name := range names {
		v, err := reopened.ReadScalar(ctx, data.NewFieldKey("greek", name), data.TypeInt)
		if err != nil {
			t.Fatalf("ReadScalar %s failed: %v", name, err)
		}
		if v.Ints[0] != int64(i) {
			t.Errorf("%s: expected %d, got %d", name, i, v.Ints[0])
		}
	}
}

func TestBinaryBackend_Lifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dataset.vds")

	if err := NewBinaryBackend(path).Open(ctx, backend.ModeOpen); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	bb := NewBinaryBackend(path)
	if err := bb.Open(ctx, backend.ModeCreate); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := bb.WriteScalar(ctx, data.NewFieldKey("nucleus", "num"), data.DimValue(12)); err != nil {
		t.Fatalf("WriteScalar failed: %v", err)
	}
	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bb.Close(ctx); !errors.Is(err, data.ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle on second close, got %v", err)
	}
	if _, err := bb.Keys(ctx); !errors.Is(err, data.ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle after close, got %v", err)
	}

	if err := NewBinaryBackend(path).Open(ctx, backend.ModeCreate); !errors.Is(err, data.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	overwritten := NewBinaryBackend(path)
	if err := overwritten.Open(ctx, backend.ModeOverwrite); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	defer overwritten.Close(ctx)

	ok, err := overwritten.HasScalar(ctx, data.NewFieldKey("nucleus", "num"))
	if err != nil {
		t.Fatalf("HasScalar failed: %v", err)
	}
	if ok {
		t.Error("Expected overwritten container to be empty")
	}
}

func TestBinaryBackend_Corrupt(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)
	if err := bb.WriteScalar(ctx, data.NewFieldKey("nucleus", "num"), data.DimValue(12)); err != nil {
		t.Fatalf("WriteScalar failed: %v", err)
	}
	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	tests := map[string]func([]byte) []byte{
		"signature":  func(b []byte) []byte { b[1] = 'X'; return b },
		"superblock": func(b []byte) []byte { b[20] ^= 0xff; return b },
		"directory":  func(b []byte) []byte { b[superblockSize+2] ^= 0xff; return b },
		"truncated":  func(b []byte) []byte { return b[:superblockSize+8] },
	}

	for name, corrupt := range tests {
		t.Run(name, func(tst *testing.T) {
			target := filepath.Join(tst.TempDir(), "corrupt.vds")
			if err := os.WriteFile(target, corrupt(append([]byte(nil), raw...)), 0o644); err != nil {
				tst.Fatalf("WriteFile failed: %v", err)
			}

			err := NewBinaryBackend(target).Open(ctx, backend.ModeOpen)
			if !errors.Is(err, data.ErrBackendIO) {
				tst.Errorf("Expected ErrBackendIO, got %v", err)
			}
		})
	}
}

func TestBinaryBackend_CorruptDirectoryEntry(t *testing.T) {
	ctx := context.Background()
	bb, path := newTestContainer(t)
	if err := bb.WriteScalar(ctx, data.NewFieldKey("nucleus", "num"), data.DimValue(12)); err != nil {
		t.Fatalf("WriteScalar failed: %v", err)
	}
	if err := bb.WriteArray(ctx, data.NewFieldKey("nucleus", "coord"), data.FloatArray([]float64{1, 2, 3})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	if err := bb.WriteArray(ctx, data.NewFieldKey("nucleus", "label"), data.StringArray([]string{"C", "H"})); err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	if err := bb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	tests := map[string]func(d *directory){
		"scalar size": func(d *directory) {
			e, _ := d.entries.Get("nucleus.num")
			e.Size = 0
		},
		"array size": func(d *directory) {
			e, _ := d.entries.Get("nucleus.coord")
			e.Size = 16
		},
		"huge shape": func(d *directory) {
			e, _ := d.entries.Get("nucleus.coord")
			e.Shape = []uint64{1 << 50}
		},
		"overflowing shape": func(d *directory) {
			e, _ := d.entries.Get("nucleus.label")
			e.Shape = []uint64{1 << 62}
		},
	}

	for name, corrupt := range tests {
		t.Run(name, func(tst *testing.T) {
			b := append([]byte(nil), raw...)

			sb, err := decodeSuperblock(b[:superblockSize])
			if err != nil {
				tst.Fatalf("decodeSuperblock failed: %v", err)
			}
			dir, free, err := decodeDirectory(b[sb.DirAddr:sb.DirAddr+sb.DirSize], sb.EOF)
			if err != nil {
				tst.Fatalf("decodeDirectory failed: %v", err)
			}

			corrupt(dir)
			encoded := dir.encode(free)
			if uint64(len(encoded)) != sb.DirSize {
				tst.Fatalf("Expected directory of %d bytes, got %d", sb.DirSize, len(encoded))
			}
			copy(b[sb.DirAddr:], encoded)

			target := filepath.Join(tst.TempDir(), "corrupt.vds")
			if err := os.WriteFile(target, b, 0o644); err != nil {
				tst.Fatalf("WriteFile failed: %v", err)
			}

			err = NewBinaryBackend(target).Open(ctx, backend.ModeReadOnly)
			if !errors.Is(err, data.ErrBackendIO) {
				tst.Errorf("Expected ErrBackendIO, got %v", err)
			}
		})
	}
}
