package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwantia/vds/backend/codec"
	"github.com/mwantia/vds/data"
)

const (
	formatKey   = "format"
	formatValue = "vds sqlite 1"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeFormat(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vds_meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, formatKey, formatValue)
	if err != nil {
		return data.IOError("write format", err)
	}
	return nil
}

// checkFormat verifies that an existing database was created by this backend.
func checkFormat(ctx context.Context, db *sql.DB) error {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM vds_meta WHERE name = ?", formatKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return data.IOError("open", fmt.Errorf("database carries no dataset marker"))
		}
		return data.IOError("open", fmt.Errorf("database is not a dataset: %w", err))
	}
	if value != formatValue {
		return data.IOError("open", fmt.Errorf("unsupported sqlite format %q", value))
	}
	return nil
}

// loadKeys fills the in-memory index from the field table.
func (sb *SQLiteBackend) loadKeys(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT key, record FROM vds_fields")
	if err != nil {
		return data.IOError("load keys", err)
	}
	defer rows.Close()

	sb.keys.Clear()
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
		sb.keys.Set(key, header{Type: v.Type, Shape: v.Shape})
	}

	if err := rows.Err(); err != nil {
		return data.IOError("load keys", err)
	}
	return nil
}
