package vds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/log"
	"github.com/mwantia/vds/schema"
)

// Dataset is an open handle on one dataset. It owns exactly one backend
// instance and caches the values of every dimensioning field it has seen.
//
// A Dataset serialises its own calls, but two handles on the same location
// at the same time are not coordinated; doing so is up to the caller.
type Dataset struct {
	mu sync.Mutex

	location string
	backend  backend.Backend
	schema   *schema.Schema
	logger   *log.Logger

	readOnly bool
	closed   bool

	dims map[data.FieldKey]uint64
	uuid string
}

// Create creates a new dataset at location. It fails with ErrAlreadyExists
// if a dataset is already stored there, unless WithOverwrite is given, in
// which case the existing data is destroyed first. If stamping the new
// dataset fails, whatever was created at location is removed again.
func Create(ctx context.Context, location string, kind backend.Kind, opts ...Option) (*Dataset, error) {
	b, err := NewBackend(kind, location)
	if err != nil {
		return nil, err
	}
	return create(ctx, b, location, opts)
}

// Open opens the existing dataset at location. It fails with ErrNotFound if
// there is none.
func Open(ctx context.Context, location string, kind backend.Kind, opts ...Option) (*Dataset, error) {
	b, err := NewBackend(kind, location)
	if err != nil {
		return nil, err
	}
	return open(ctx, b, location, opts)
}

// OpenOrCreate opens the dataset at location, creating it if none exists.
func OpenOrCreate(ctx context.Context, location string, kind backend.Kind, opts ...Option) (*Dataset, error) {
	ds, err := Open(ctx, location, kind, opts...)
	if err == nil || !errors.Is(err, data.ErrNotFound) {
		return ds, err
	}

	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if options.ReadOnly {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, location)
	}

	return Create(ctx, location, kind, opts...)
}

// CreateAddress is Create for a "kind://location" address.
func CreateAddress(ctx context.Context, address string, opts ...Option) (*Dataset, error) {
	kind, location, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return Create(ctx, location, kind, opts...)
}

// OpenAddress is Open for a "kind://location" address.
func OpenAddress(ctx context.Context, address string, opts ...Option) (*Dataset, error) {
	kind, location, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return Open(ctx, location, kind, opts...)
}

// CreateBackend creates a dataset on an unopened backend built by the
// caller, such as a kv backend over a custom store.
func CreateBackend(ctx context.Context, b backend.Backend, opts ...Option) (*Dataset, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", data.ErrInvalidArgument)
	}
	return create(ctx, b, b.Name(), opts)
}

// OpenBackend opens an existing dataset on an unopened backend built by the
// caller.
func OpenBackend(ctx context.Context, b backend.Backend, opts ...Option) (*Dataset, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", data.ErrInvalidArgument)
	}
	return open(ctx, b, b.Name(), opts)
}

func create(ctx context.Context, b backend.Backend, location string, opts []Option) (*Dataset, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if options.ReadOnly {
		return nil, fmt.Errorf("%w: cannot create a read-only dataset", data.ErrInvalidArgument)
	}

	mode := backend.ModeCreate
	if options.Overwrite {
		mode = backend.ModeOverwrite
	}
	return openDataset(ctx, b, location, mode, options)
}

func open(ctx context.Context, b backend.Backend, location string, opts []Option) (*Dataset, error) {
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if options.Overwrite {
		return nil, fmt.Errorf("%w: overwrite only applies to create", data.ErrInvalidArgument)
	}

	mode := backend.ModeOpen
	if options.ReadOnly {
		mode = backend.ModeReadOnly
	}
	return openDataset(ctx, b, location, mode, options)
}

func openDataset(ctx context.Context, b backend.Backend, location string, mode backend.Mode, options *Options) (*Dataset, error) {
	logger := options.Logger.Named(b.Name())

	if err := b.Open(ctx, mode); err != nil {
		logger.Debug("Failed to %s dataset '%s': %v", mode, location, err)
		return nil, err
	}

	ds := &Dataset{
		location: location,
		backend:  b,
		schema:   options.Schema,
		logger:   logger,
		readOnly: !mode.Writable(),
		dims:     make(map[data.FieldKey]uint64),
	}

	var err error
	if mode.Creates() {
		err = ds.initialize(ctx)
	} else {
		err = ds.load(ctx)
	}
	if err != nil {
		errs := data.Errors{}
		errs.Add(err)
		errs.Add(b.Close(ctx))
		if r, ok := b.(backend.Remover); ok && mode.Creates() {
			logger.Debug("Removing partially created dataset '%s': %v", location, err)
			errs.Add(r.Remove(ctx))
		}
		return nil, errs.Errors()
	}

	logger.Info("Dataset '%s' opened (%s, uuid %s)", location, mode, ds.uuid)
	return ds, nil
}

// initialize stamps a freshly created dataset with its metadata.
func (ds *Dataset) initialize(ctx context.Context) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate dataset uuid: %w", err)
	}

	if err := ds.write(ctx, schema.MetadataPackageVersion, data.StringValue(Version)); err != nil {
		return err
	}
	if err := ds.write(ctx, schema.MetadataUUID, data.StringValue(id.String())); err != nil {
		return err
	}

	ds.uuid = id.String()
	return nil
}

// load fills the dimension cache and the uuid from an existing dataset.
func (ds *Dataset) load(ctx context.Context) error {
	for _, f := range ds.schema.Fields() {
		if f.IsArray() || f.Type != data.TypeDim {
			continue
		}

		ok, err := ds.backend.HasScalar(ctx, f.Key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		value, err := ds.backend.ReadScalar(ctx, f.Key, data.TypeDim)
		if err != nil {
			return err
		}
		ds.dims[f.Key] = value.Dims[0]
	}

	ok, err := ds.backend.HasScalar(ctx, schema.MetadataUUID.Key)
	if err != nil {
		return err
	}
	if ok {
		value, err := ds.backend.ReadScalar(ctx, schema.MetadataUUID.Key, data.TypeString)
		if err != nil {
			return err
		}
		ds.uuid = value.Strings[0]
	}

	return nil
}

// Close releases the backend. Every operation on a closed handle, including
// a second Close, fails with ErrInvalidHandle.
func (ds *Dataset) Close(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return data.ErrInvalidHandle
	}
	ds.closed = true

	if err := ds.backend.Close(ctx); err != nil {
		ds.logger.Error("Failed to close dataset '%s': %v", ds.location, err)
		return err
	}

	ds.logger.Info("Dataset '%s' closed", ds.location)
	return nil
}

// IsOpen reports whether Close has not been called yet.
func (ds *Dataset) IsOpen() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return !ds.closed
}

// UUID returns the identifier assigned when the dataset was created, or an
// empty string for datasets without one.
func (ds *Dataset) UUID() string {
	return ds.uuid
}

func (ds *Dataset) Location() string {
	return ds.location
}

// Backend returns the name of the backend serving this dataset.
func (ds *Dataset) Backend() string {
	return ds.backend.Name()
}

func (ds *Dataset) Capabilities() *backend.Capabilities {
	return ds.backend.GetCapabilities()
}

func (ds *Dataset) Schema() *schema.Schema {
	return ds.schema
}

func (ds *Dataset) ReadOnly() bool {
	return ds.readOnly
}

func (ds *Dataset) checkOpen() error {
	if ds.closed {
		return data.ErrInvalidHandle
	}
	return nil
}

func (ds *Dataset) checkWritable() error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	if ds.readOnly {
		return fmt.Errorf("%w: %s", data.ErrReadOnlyDataset, ds.location)
	}
	return nil
}

func (ds *Dataset) lookupDim(key data.FieldKey) (uint64, bool) {
	n, ok := ds.dims[key]
	return n, ok
}
