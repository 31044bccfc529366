package text

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/data"
	"github.com/tidwall/btree"
)

const (
	markerFile    = ".vds"
	markerContent = "vds text 1\n"
	groupExt      = ".txt"
)

// TextBackend stores a dataset as a directory of human-readable group files:
//
// - <dir>/.vds marks the directory as a dataset and records the format version
// - <dir>/<group>.txt holds every field of one group, one entry per field
//
// Groups are parsed lazily into an ordered in-memory index. Every write
// rewrites the affected group file through a temporary file and a rename, so
// a field is either fully replaced or not at all.
type TextBackend struct {
	mu  sync.Mutex
	dir string

	opened   bool
	closed   bool
	readOnly bool

	groups map[string]*btree.Map[string, *data.Value]
}

// NewTextBackend creates a backend for the dataset directory dir.
func NewTextBackend(dir string) *TextBackend {
	return &TextBackend{
		dir:    dir,
		groups: make(map[string]*btree.Map[string, *data.Value]),
	}
}

// Returns the identifier name defined for this backend
func (*TextBackend) Name() string {
	return "text"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (tb *TextBackend) Open(ctx context.Context, mode backend.Mode) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.opened || tb.closed {
		return data.ErrInvalidHandle
	}

	exists, isDataset, err := tb.inspect()
	if err != nil {
		return err
	}

	switch mode {
	case backend.ModeOpen, backend.ModeReadOnly:
		if !exists {
			return fmt.Errorf("%w: %s", data.ErrNotFound, tb.dir)
		}
		if !isDataset {
			return data.IOError("open", fmt.Errorf("'%s' is not a text dataset", tb.dir))
		}
		if err := tb.checkMarker(); err != nil {
			return err
		}

	case backend.ModeCreate, backend.ModeOverwrite:
		if exists && !isDataset {
			return fmt.Errorf("%w: '%s' is not empty", data.ErrAlreadyExists, tb.dir)
		}
		if exists && mode == backend.ModeCreate {
			return fmt.Errorf("%w: %s", data.ErrAlreadyExists, tb.dir)
		}
		if exists {
			if err := os.RemoveAll(tb.dir); err != nil {
				return data.IOError("remove", err)
			}
		}
		if err := os.MkdirAll(tb.dir, 0o755); err != nil {
			return data.IOError("mkdir", err)
		}
		if err := writeFileAtomic(filepath.Join(tb.dir, markerFile), []byte(markerContent)); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown mode %s", data.ErrInvalidArgument, mode)
	}

	tb.opened = true
	tb.readOnly = !mode.Writable()
	return nil
}

// Remove deletes the dataset directory.
func (tb *TextBackend) Remove(ctx context.Context) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.closed {
		return data.ErrInvalidHandle
	}
	if err := os.RemoveAll(tb.dir); err != nil {
		return data.IOError("remove", err)
	}
	return nil
}

// inspect reports whether the directory exists with content and whether it
// carries the dataset marker. An existing empty directory counts as absent.
func (tb *TextBackend) inspect() (bool, bool, error) {
	entries, err := os.ReadDir(tb.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, data.IOError("stat", err)
	}
	if len(entries) == 0 {
		return false, false, nil
	}

	for _, e := range entries {
		if e.Name() == markerFile {
			return true, true, nil
		}
	}
	return true, false, nil
}

func (tb *TextBackend) checkMarker() error {
	content, err := os.ReadFile(filepath.Join(tb.dir, markerFile))
	if err != nil {
		return data.IOError("read marker", err)
	}
	if string(content) != markerContent {
		return data.IOError("open", fmt.Errorf("unsupported text format %q", strings.TrimSpace(string(content))))
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (tb *TextBackend) Close(ctx context.Context) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.opened || tb.closed {
		return data.ErrInvalidHandle
	}

	tb.closed = true
	clear(tb.groups)
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (*TextBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityPersistent,
			backend.CapabilityResize,
			backend.CapabilityExactFloat,
			backend.CapabilitySelfDescribing,
		},
	}
}

func (tb *TextBackend) HasScalar(ctx context.Context, key data.FieldKey) (bool, error) {
	v, err := tb.lookup(key)
	if err != nil || v == nil {
		return false, err
	}
	return v.IsScalar(), nil
}

func (tb *TextBackend) HasArray(ctx context.Context, key data.FieldKey) (bool, error) {
	v, err := tb.lookup(key)
	if err != nil || v == nil {
		return false, err
	}
	return !v.IsScalar(), nil
}

func (tb *TextBackend) ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error) {
	return tb.get(key, typ, backend.Scalar)
}

func (tb *TextBackend) WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, false); err != nil {
		return err
	}
	return tb.put(key, value)
}

func (tb *TextBackend) ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", data.ErrInvalidArgument)
	}
	return tb.get(key, typ, length)
}

func (tb *TextBackend) WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, true); err != nil {
		return err
	}
	return tb.put(key, value)
}

func (tb *TextBackend) ArrayLen(ctx context.Context, key data.FieldKey) (int, error) {
	v, err := tb.lookup(key)
	if err != nil {
		return 0, err
	}
	if v == nil || v.IsScalar() {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	return v.Len(), nil
}

func (tb *TextBackend) Keys(ctx context.Context) ([]data.FieldKey, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if err := tb.checkOpen(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(tb.dir)
	if err != nil {
		return nil, data.IOError("list", err)
	}

	groups := make([]string, 0)
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), groupExt); ok && !e.IsDir() {
			groups = append(groups, name)
		}
	}
	sort.Strings(groups)

	keys := make([]data.FieldKey, 0)
	for _, group := range groups {
		fields, err := tb.loadGroup(group)
		if err != nil {
			return nil, err
		}
		fields.Scan(func(field string, _ *data.Value) bool {
			keys = append(keys, data.NewFieldKey(group, field))
			return true
		})
	}
	return keys, nil
}

func (tb *TextBackend) checkOpen() error {
	if !tb.opened || tb.closed {
		return data.ErrInvalidHandle
	}
	return nil
}

// lookup returns the stored value or nil if the field is absent.
func (tb *TextBackend) lookup(key data.FieldKey) (*data.Value, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if err := tb.checkOpen(); err != nil {
		return nil, err
	}

	fields, err := tb.loadGroup(key.Group)
	if err != nil {
		return nil, err
	}

	v, _ := fields.Get(key.Field)
	return v, nil
}

func (tb *TextBackend) get(key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	v, err := tb.lookup(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err := backend.CheckRead(key, v.Type, v.Shape, typ, length); err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

func (tb *TextBackend) put(key data.FieldKey, value *data.Value) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if err := tb.checkOpen(); err != nil {
		return err
	}
	if tb.readOnly {
		return data.ErrReadOnlyDataset
	}

	fields, err := tb.loadGroup(key.Group)
	if err != nil {
		return err
	}

	previous, existed := fields.Set(key.Field, value.Clone())
	if err := tb.flushGroup(key.Group, fields); err != nil {
		// Restore the index so it keeps matching the file on disk
		if existed {
			fields.Set(key.Field, previous)
		} else {
			fields.Delete(key.Field)
		}
		return err
	}
	return nil
}

func (tb *TextBackend) groupPath(group string) string {
	return filepath.Join(tb.dir, group+groupExt)
}

// loadGroup parses a group file once and caches its index. A missing file
// yields an empty group.
func (tb *TextBackend) loadGroup(group string) (*btree.Map[string, *data.Value], error) {
	if fields, ok := tb.groups[group]; ok {
		return fields, nil
	}

	fields := btree.NewMap[string, *data.Value](0)

	f, err := os.Open(tb.groupPath(group))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, data.IOError("open group", err)
	default:
		defer f.Close()
		err := parseGroup(f, group, func(key data.FieldKey, v *data.Value) error {
			fields.Set(key.Field, v)
			return nil
		})
		if err != nil {
			return nil, data.IOError("parse "+group+groupExt, err)
		}
	}

	tb.groups[group] = fields
	return fields, nil
}

func (tb *TextBackend) flushGroup(group string, fields *btree.Map[string, *data.Value]) error {
	var sb strings.Builder
	w := bufio.NewWriter(&sb)

	fmt.Fprintf(w, "# vds text group '%s'\n", group)

	var err error
	fields.Scan(func(field string, v *data.Value) bool {
		err = WriteEntry(w, data.NewFieldKey(group, field), v)
		return err == nil
	})
	if err != nil {
		return data.IOError("format "+group+groupExt, err)
	}
	if err := w.Flush(); err != nil {
		return data.IOError("format "+group+groupExt, err)
	}

	return writeFileAtomic(tb.groupPath(group), []byte(sb.String()))
}

// writeFileAtomic replaces path with content through a synced temporary file.
func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return data.IOError("create temp", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return data.IOError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return data.IOError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return data.IOError("close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return data.IOError("rename", err)
	}
	return nil
}
