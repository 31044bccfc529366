package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
)

func (sb *SQLiteBackend) HasScalar(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := sb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) == 0, nil
}

func (sb *SQLiteBackend) HasArray(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := sb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) > 0, nil
}

func (sb *SQLiteBackend) ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error) {
	return sb.read(ctx, key, typ, backend.Scalar)
}

func (sb *SQLiteBackend) WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, false); err != nil {
		return err
	}
	return sb.write(ctx, key, value)
}

func (sb *SQLiteBackend) ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", data.ErrInvalidArgument)
	}
	return sb.read(ctx, key, typ, length)
}

func (sb *SQLiteBackend) WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, true); err != nil {
		return err
	}
	return sb.write(ctx, key, value)
}

func (sb *SQLiteBackend) ArrayLen(ctx context.Context, key data.FieldKey) (int, error) {
	h, ok, err := sb.lookup(key)
	if err != nil {
		return 0, err
	}
	if !ok || len(h.Shape) == 0 {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	return data.ShapeLen(h.Shape), nil
}

func (sb *SQLiteBackend) Keys(ctx context.Context) ([]data.FieldKey, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if err := sb.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]data.FieldKey, 0, sb.keys.Len())
	var err error
	sb.keys.Scan(func(name string, _ header) bool {
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

func (sb *SQLiteBackend) lookup(key data.FieldKey) (header, bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if err := sb.checkOpen(); err != nil {
		return header{}, false, err
	}

	h, ok := sb.keys.Get(key.String())
	return h, ok, nil
}

func (sb *SQLiteBackend) read(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if err := sb.checkOpen(); err != nil {
		return nil, err
	}

	// Check B-tree first
	h, ok := sb.keys.Get(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err := backend.CheckRead(key, h.Type, h.Shape, typ, length); err != nil {
		return nil, err
	}

	var record []byte
	err := sb.db.QueryRowContext(ctx, "SELECT record FROM vds_fields WHERE key = ?", key.String()).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.IOError("read "+key.String(), fmt.Errorf("index and table disagree"))
	}
	if err != nil {
		return nil, data.IOError("read "+key.String(), err)
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

func (sb *SQLiteBackend) write(ctx context.Context, key data.FieldKey, value *data.Value) error {
	record, err := codec.EncodeRecord(value)
	if err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	if err := sb.checkOpen(); err != nil {
		return err
	}
	if sb.readOnly {
		return data.ErrReadOnlyDataset
	}

	// Start transaction
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return data.IOError("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vds_fields (key, grp, name, dtype, rank, length, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			dtype = excluded.dtype,
			rank = excluded.rank,
			length = excluded.length,
			record = excluded.record
	`, key.String(), key.Group, key.Field, int(value.Type), len(value.Shape), value.Len(), record)
	if err != nil {
		return data.IOError("write "+key.String(), err)
	}

	if err := tx.Commit(); err != nil {
		return data.IOError("commit "+key.String(), err)
	}

	// Update B-tree
	sb.keys.Set(key.String(), header{
		Type:  value.Type,
		Shape: append([]uint64(nil), value.Shape...),
	})
	return nil
}
