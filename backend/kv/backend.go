// Package kv implements a dataset backend on top of any key/value Store.
//
// Layout relative to the store prefix:
//
//	.vds                  dataset marker holding the format version
//	fields/<group>.<name> one encoded record per field
package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
	"github.com/tidwall/btree"
)

const (
	markerKey     = ".vds"
	markerContent = "vds kv 1"
	fieldsPrefix  = "fields/"
)

// KVBackend stores each field as one object of the underlying Store and
// keeps an ordered in-memory index of field headers.
type KVBackend struct {
	mu    sync.RWMutex
	store Store
	extra []backend.Capability

	opened   bool
	closed   bool
	readOnly bool

	keys *btree.Map[string, header]
}

type header struct {
	Type  data.DataType
	Shape []uint64
}

// NewKVBackend creates a backend over store. The capabilities are reported in
// addition to the ones every key/value backend has.
func NewKVBackend(store Store, capabilities ...backend.Capability) *KVBackend {
	return &KVBackend{
		store: store,
		extra: capabilities,
		keys:  btree.NewMap[string, header](0),
	}
}

// Returns the identifier name defined for this backend
func (kb *KVBackend) Name() string {
	return "kv:" + kb.store.Name()
}

// Store returns the underlying object store.
func (kb *KVBackend) Store() Store {
	return kb.store
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (kb *KVBackend) Open(ctx context.Context, mode backend.Mode) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if kb.opened || kb.closed {
		return data.ErrInvalidHandle
	}

	if pinger, ok := kb.store.(Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return data.IOError("ping "+kb.store.Name(), err)
		}
	}

	existing, err := kb.store.List(ctx, "")
	if err != nil {
		return data.IOError("list", err)
	}

	marker, hasMarker, err := kb.store.Get(ctx, markerKey)
	if err != nil {
		return data.IOError("read marker", err)
	}

	switch mode {
	case backend.ModeOpen, backend.ModeReadOnly:
		if len(existing) == 0 {
			return fmt.Errorf("%w: %s", data.ErrNotFound, kb.store.Name())
		}
		if !hasMarker {
			return data.IOError("open", fmt.Errorf("'%s' is not a dataset", kb.store.Name()))
		}
		if string(marker) != markerContent {
			return data.IOError("open", fmt.Errorf("unsupported kv format %q", marker))
		}
		if err := kb.loadKeys(ctx); err != nil {
			return err
		}

	case backend.ModeCreate, backend.ModeOverwrite:
		if len(existing) > 0 && !hasMarker {
			return fmt.Errorf("%w: '%s' is not empty", data.ErrAlreadyExists, kb.store.Name())
		}
		if len(existing) > 0 && mode == backend.ModeCreate {
			return fmt.Errorf("%w: %s", data.ErrAlreadyExists, kb.store.Name())
		}

		// Remove the marker first so an interrupted overwrite is never mistaken for a dataset
		if hasMarker {
			if err := kb.store.Delete(ctx, markerKey); err != nil {
				return data.IOError("remove marker", err)
			}
		}
		for _, key := range existing {
			if key == markerKey {
				continue
			}
			if err := kb.store.Delete(ctx, key); err != nil {
				return data.IOError("remove "+key, err)
			}
		}
		if err := kb.store.Put(ctx, markerKey, []byte(markerContent)); err != nil {
			return data.IOError("write marker", err)
		}
		kb.keys.Clear()

	default:
		return fmt.Errorf("%w: unknown mode %s", data.ErrInvalidArgument, mode)
	}

	kb.opened = true
	kb.readOnly = !mode.Writable()
	return nil
}

func (kb *KVBackend) loadKeys(ctx context.Context) error {
	names, err := kb.store.List(ctx, fieldsPrefix)
	if err != nil {
		return data.IOError("list fields", err)
	}

	kb.keys.Clear()
	for _, name := range names {
		field := strings.TrimPrefix(name, fieldsPrefix)
		if _, err := data.ParseFieldKey(field); err != nil {
			return data.IOError("load "+name, err)
		}

		record, ok, err := kb.store.Get(ctx, name)
		if err != nil {
			return data.IOError("load "+name, err)
		}
		if !ok {
			continue
		}

		v, err := codec.DecodeRecord(record)
		if err != nil {
			return data.IOError("load "+name, err)
		}
		kb.keys.Set(field, header{Type: v.Type, Shape: v.Shape})
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (kb *KVBackend) Close(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if !kb.opened || kb.closed {
		return data.ErrInvalidHandle
	}

	kb.closed = true
	kb.keys.Clear()
	return nil
}

// Remove deletes every object of the dataset, the marker last.
func (kb *KVBackend) Remove(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if !kb.closed {
		return data.ErrInvalidHandle
	}

	existing, err := kb.store.List(ctx, "")
	if err != nil {
		return data.IOError("list", err)
	}
	for _, key := range existing {
		if key == markerKey {
			continue
		}
		if err := kb.store.Delete(ctx, key); err != nil {
			return data.IOError("remove "+key, err)
		}
	}
	if err := kb.store.Delete(ctx, markerKey); err != nil {
		return data.IOError("remove marker", err)
	}
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (kb *KVBackend) GetCapabilities() *backend.Capabilities {
	capabilities := []backend.Capability{
		backend.CapabilityResize,
		backend.CapabilityExactFloat,
		backend.CapabilitySelfDescribing,
	}

	return &backend.Capabilities{
		Capabilities: append(capabilities, kb.extra...),
	}
}

func (kb *KVBackend) HasScalar(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := kb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) == 0, nil
}

func (kb *KVBackend) HasArray(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := kb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) > 0, nil
}

func (kb *KVBackend) ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error) {
	return kb.read(ctx, key, typ, backend.Scalar)
}

func (kb *KVBackend) WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, false); err != nil {
		return err
	}
	return kb.write(ctx, key, value)
}

func (kb *KVBackend) ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", data.ErrInvalidArgument)
	}
	return kb.read(ctx, key, typ, length)
}

func (kb *KVBackend) WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, true); err != nil {
		return err
	}
	return kb.write(ctx, key, value)
}

func (kb *KVBackend) ArrayLen(ctx context.Context, key data.FieldKey) (int, error) {
	h, ok, err := kb.lookup(key)
	if err != nil {
		return 0, err
	}
	if !ok || len(h.Shape) == 0 {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	return data.ShapeLen(h.Shape), nil
}

func (kb *KVBackend) Keys(ctx context.Context) ([]data.FieldKey, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if err := kb.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]data.FieldKey, 0, kb.keys.Len())
	kb.keys.Scan(func(name string, _ header) bool {
		// Names were validated when they entered the index
		key, _ := data.ParseFieldKey(name)
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (kb *KVBackend) checkOpen() error {
	if !kb.opened || kb.closed {
		return data.ErrInvalidHandle
	}
	return nil
}

func (kb *KVBackend) lookup(key data.FieldKey) (header, bool, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if err := kb.checkOpen(); err != nil {
		return header{}, false, err
	}

	h, ok := kb.keys.Get(key.String())
	return h, ok, nil
}

func (kb *KVBackend) read(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if err := kb.checkOpen(); err != nil {
		return nil, err
	}

	h, ok := kb.keys.Get(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err := backend.CheckRead(key, h.Type, h.Shape, typ, length); err != nil {
		return nil, err
	}

	record, ok, err := kb.store.Get(ctx, fieldsPrefix+key.String())
	if err != nil {
		return nil, data.IOError("read "+key.String(), err)
	}
	if !ok {
		return nil, data.IOError("read "+key.String(), fmt.Errorf("object vanished from %s", kb.store.Name()))
	}

	v, err := codec.DecodeRecord(record)
	if err != nil {
		return nil, err
	}
	if err := backend.CheckRead(key, v.Type, v.Shape, typ, length); err != nil {
		return nil, data.IOError("read "+key.String(), err)
	}
	return v, nil
}

func (kb *KVBackend) write(ctx context.Context, key data.FieldKey, value *data.Value) error {
	record, err := codec.EncodeRecord(value)
	if err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if err := kb.checkOpen(); err != nil {
		return err
	}
	if kb.readOnly {
		return data.ErrReadOnlyDataset
	}

	if err := kb.store.Put(ctx, fieldsPrefix+key.String(), record); err != nil {
		return data.IOError("write "+key.String(), err)
	}

	kb.keys.Set(key.String(), header{
		Type:  value.Type,
		Shape: append([]uint64(nil), value.Shape...),
	})
	return nil
}
