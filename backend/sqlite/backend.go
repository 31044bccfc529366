package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/data"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MemoryPath opens a private in-memory database that is discarded on Close.
const MemoryPath = ":memory:"

// SQLiteBackend stores a dataset in a single SQLite database with a two-layer architecture:
//
// Layer 1: In-memory B-tree for fast key → header lookups (keys map)
// Layer 2: SQLite field table (vds_fields) with one encoded record per field
//
// A small vds_meta table marks the database as a dataset and records the
// format version. Every write is a single upsert inside a transaction.
type SQLiteBackend struct {
	mu   sync.RWMutex
	path string
	db   *sql.DB

	opened   bool
	closed   bool
	readOnly bool

	// In-memory B-tree for fast key lookups
	keys *btree.Map[string, header]
}

// header is the part of a field kept in memory.
type header struct {
	Type  data.DataType
	Shape []uint64
}

// NewSQLiteBackend creates a new SQLite-backed dataset backend.
// The path can be MemoryPath for an in-memory database or a file path.
func NewSQLiteBackend(path string) *SQLiteBackend {
	return &SQLiteBackend{
		path: path,
		keys: btree.NewMap[string, header](0),
	}
}

// Returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context, mode backend.Mode) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.opened || sb.closed {
		return data.ErrInvalidHandle
	}

	exists, err := sb.exists()
	if err != nil {
		return err
	}

	switch mode {
	case backend.ModeOpen, backend.ModeReadOnly:
		if !exists {
			return fmt.Errorf("%w: %s", data.ErrNotFound, sb.path)
		}
	case backend.ModeCreate:
		if exists {
			return fmt.Errorf("%w: %s", data.ErrAlreadyExists, sb.path)
		}
	case backend.ModeOverwrite:
		if exists && !sb.isDataset(ctx) {
			return fmt.Errorf("%w: '%s' is not a dataset database", data.ErrAlreadyExists, sb.path)
		}
		if exists {
			if err := sb.remove(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %s", data.ErrInvalidArgument, mode)
	}

	db, err := sql.Open("sqlite", sb.dsn(mode))
	if err != nil {
		return data.IOError("open", err)
	}
	// A single connection keeps in-memory databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := sb.init(ctx, db, mode); err != nil {
		db.Close()
		return err
	}

	sb.db = db
	sb.opened = true
	sb.readOnly = !mode.Writable()
	return nil
}

func (sb *SQLiteBackend) dsn(mode backend.Mode) string {
	if sb.path == MemoryPath || mode.Writable() {
		return sb.path
	}
	return "file:" + sb.path + "?mode=ro"
}

func (sb *SQLiteBackend) exists() (bool, error) {
	if sb.path == MemoryPath {
		return false, nil
	}

	info, err := os.Stat(sb.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, data.IOError("stat", err)
	}
	return info.Size() > 0, nil
}

// sqliteHeader starts every SQLite database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// isDataset reports whether the existing file is a SQLite database carrying
// the dataset marker.
func (sb *SQLiteBackend) isDataset(ctx context.Context) bool {
	file, err := os.Open(sb.path)
	if err != nil {
		return false
	}
	head := make([]byte, len(sqliteHeader))
	_, err = io.ReadFull(file, head)
	file.Close()
	if err != nil || !bytes.Equal(head, sqliteHeader) {
		return false
	}

	db, err := sql.Open("sqlite", "file:"+sb.path+"?mode=ro")
	if err != nil {
		return false
	}
	defer db.Close()

	return checkFormat(ctx, db) == nil
}

// Remove deletes the database file and its journals.
func (sb *SQLiteBackend) Remove(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.closed {
		return data.ErrInvalidHandle
	}
	if sb.path == MemoryPath {
		return nil
	}
	return sb.remove()
}

func (sb *SQLiteBackend) remove() error {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(sb.path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return data.IOError("remove", err)
		}
	}
	return nil
}

// init prepares a fresh database or verifies an existing one and loads the
// key index.
func (sb *SQLiteBackend) init(ctx context.Context, db *sql.DB, mode backend.Mode) error {
	if err := db.PingContext(ctx); err != nil {
		return data.IOError("ping", err)
	}

	if mode.Writable() {
		if _, err := db.ExecContext(ctx, "PRAGMA synchronous = FULL"); err != nil {
			return data.IOError("pragma", err)
		}
	}

	if mode.Creates() {
		if err := initSchema(ctx, db); err != nil {
			return err
		}
	} else if err := checkFormat(ctx, db); err != nil {
		return err
	}

	return sb.loadKeys(ctx, db)
}

// initSchema creates the database schema.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Dataset marker and format version
	CREATE TABLE IF NOT EXISTS vds_meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- One encoded record per field
	CREATE TABLE IF NOT EXISTS vds_fields (
		key TEXT PRIMARY KEY,
		grp TEXT NOT NULL,
		name TEXT NOT NULL,
		dtype INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		length INTEGER NOT NULL CHECK(length >= 0),
		record BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vds_fields_grp ON vds_fields(grp);
	`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return data.IOError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return data.IOError("create schema", err)
	}
	if err := writeFormat(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return data.IOError("commit", err)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.opened || sb.closed {
		return data.ErrInvalidHandle
	}

	sb.closed = true
	sb.keys.Clear()
	if err := sb.db.Close(); err != nil {
		return data.IOError("close", err)
	}
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.Capabilities {
	capabilities := []backend.Capability{
		backend.CapabilityInPlaceUpdate,
		backend.CapabilityResize,
		backend.CapabilityExactFloat,
		backend.CapabilitySelfDescribing,
	}
	if sb.path != MemoryPath {
		capabilities = append(capabilities, backend.CapabilityPersistent)
	}

	return &backend.Capabilities{
		Capabilities: capabilities,
	}
}

func (sb *SQLiteBackend) checkOpen() error {
	if !sb.opened || sb.closed {
		return data.ErrInvalidHandle
	}
	return nil
}
