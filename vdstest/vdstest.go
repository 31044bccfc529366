// Package vdstest provides helpers for tests that work with datasets.
package vdstest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/kv"
)

// Track fails the test at cleanup if ds has not been closed by then. The
// dataset is closed afterwards so the leak does not cascade.
func Track(tb testing.TB, ds *vds.Dataset) *vds.Dataset {
	tb.Helper()

	tb.Cleanup(func() {
		if !ds.IsOpen() {
			return
		}

		tb.Errorf("Dataset '%s' (%s) was never closed", ds.Location(), ds.Backend())
		_ = ds.Close(context.Background())
	})
	return ds
}

// Location creates and opens datasets at one fixed place of one backend,
// so a test can close and reopen the same data.
type Location struct {
	// Address is the "kind://location" form, empty for in-process stores.
	Address string

	Create func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error)
	Open   func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error)
}

// Factory returns a new, empty Location for every call.
type Factory func(tb testing.TB) *Location

// LocalFactories returns a factory for every backend that needs no external
// service.
func LocalFactories() map[string]Factory {
	return map[string]Factory{
		"text": func(tb testing.TB) *Location {
			return pathLocation(backend.KindText, filepath.Join(tb.TempDir(), "dataset"))
		},
		"binary": func(tb testing.TB) *Location {
			return pathLocation(backend.KindBinary, filepath.Join(tb.TempDir(), "dataset.vds"))
		},
		"sqlite": func(tb testing.TB) *Location {
			return pathLocation(backend.KindSQLite, filepath.Join(tb.TempDir(), "dataset.db"))
		},
		"kv": func(tb testing.TB) *Location {
			store := kv.NewMemoryStore()
			return &Location{
				Create: func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error) {
					return vds.CreateBackend(ctx, kv.NewKVBackend(store), opts...)
				},
				Open: func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error) {
					return vds.OpenBackend(ctx, kv.NewKVBackend(store), opts...)
				},
			}
		},
	}
}

func pathLocation(kind backend.Kind, path string) *Location {
	return &Location{
		Address: vds.FormatAddress(kind, path),
		Create: func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error) {
			return vds.Create(ctx, path, kind, opts...)
		},
		Open: func(ctx context.Context, opts ...vds.Option) (*vds.Dataset, error) {
			return vds.Open(ctx, path, kind, opts...)
		},
	}
}
