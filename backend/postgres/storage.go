package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
)

// loadKeys fills the in-memory index for the configured dataset.
func (pb *PostgresBackend) loadKeys(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, "SELECT key, record FROM vds_fields WHERE dataset = $1", pb.config.Dataset)
	if err != nil {
		return data.IOError("load keys", err)
	}
	defer rows.Close()

	pb.keys.Clear()
	for rows.Next() {
		var key string
		var record []byte
		if err := rows.Scan(&key, &record); err != nil {
			return data.IOError("load keys", err)
		}

		v, err := codec.DecodeRecord(record)
		if err != nil {
			return data.IOError("load "+key, err)
		}
		pb.keys.Set(key, header{Type: v.Type, Shape: v.Shape})
	}

	if err := rows.Err(); err != nil {
		return data.IOError("load keys", err)
	}
	return nil
}

func (pb *PostgresBackend) HasScalar(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := pb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) == 0, nil
}

func (pb *PostgresBackend) HasArray(ctx context.Context, key data.FieldKey) (bool, error) {
	h, ok, err := pb.lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return len(h.Shape) > 0, nil
}

func (pb *PostgresBackend) ReadScalar(ctx context.Context, key data.FieldKey, typ data.DataType) (*data.Value, error) {
	return pb.read(ctx, key, typ, backend.Scalar)
}

func (pb *PostgresBackend) WriteScalar(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, false); err != nil {
		return err
	}
	return pb.write(ctx, key, value)
}

func (pb *PostgresBackend) ReadArray(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", data.ErrInvalidArgument)
	}
	return pb.read(ctx, key, typ, length)
}

func (pb *PostgresBackend) WriteArray(ctx context.Context, key data.FieldKey, value *data.Value) error {
	if err := backend.CheckWrite(key, value, true); err != nil {
		return err
	}
	return pb.write(ctx, key, value)
}

func (pb *PostgresBackend) ArrayLen(ctx context.Context, key data.FieldKey) (int, error) {
	h, ok, err := pb.lookup(key)
	if err != nil {
		return 0, err
	}
	if !ok || len(h.Shape) == 0 {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	return data.ShapeLen(h.Shape), nil
}

func (pb *PostgresBackend) Keys(ctx context.Context) ([]data.FieldKey, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]data.FieldKey, 0, pb.keys.Len())
	var err error
	pb.keys.Scan(func(name string, _ header) bool {
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

func (pb *PostgresBackend) lookup(key data.FieldKey) (header, bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.checkOpen(); err != nil {
		return header{}, false, err
	}

	h, ok := pb.keys.Get(key.String())
	return h, ok, nil
}

func (pb *PostgresBackend) read(ctx context.Context, key data.FieldKey, typ data.DataType, length int) (*data.Value, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if err := pb.checkOpen(); err != nil {
		return nil, err
	}

	// Check B-tree first
	h, ok := pb.keys.Get(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err := backend.CheckRead(key, h.Type, h.Shape, typ, length); err != nil {
		return nil, err
	}

	var record []byte
	err := pb.pool.QueryRow(ctx, `
		SELECT record FROM vds_fields WHERE dataset = $1 AND key = $2
	`, pb.config.Dataset, key.String()).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.IOError("read "+key.String(), fmt.Errorf("field removed by another client"))
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

func (pb *PostgresBackend) write(ctx context.Context, key data.FieldKey, value *data.Value) error {
	record, err := codec.EncodeRecord(value)
	if err != nil {
		return err
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.checkOpen(); err != nil {
		return err
	}
	if pb.readOnly {
		return data.ErrReadOnlyDataset
	}

	// Start transaction
	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return data.IOError("begin", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO vds_fields (dataset, key, grp, name, dtype, rank, length, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dataset, key) DO UPDATE SET
			dtype = EXCLUDED.dtype,
			rank = EXCLUDED.rank,
			length = EXCLUDED.length,
			record = EXCLUDED.record
	`, pb.config.Dataset, key.String(), key.Group, key.Field, int16(value.Type), int16(len(value.Shape)), int64(value.Len()), record)
	if err != nil {
		return data.IOError("write "+key.String(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return data.IOError("commit "+key.String(), err)
	}

	// Update B-tree
	pb.keys.Set(key.String(), header{
		Type:  value.Type,
		Shape: append([]uint64(nil), value.Shape...),
	})
	return nil
}
