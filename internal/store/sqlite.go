package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBackend stores records in the records table of a SQLite database
// opened with the modernc.org/sqlite driver (see database.OpenSQLite).
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend constructs a SQLiteBackend over an open handle.
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *SQLiteBackend) Load(ctx context.Context, path string) (Record, bool, error) {
	var (
		rec   Record
		value string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM records WHERE path = ?`,
		path,
	).Scan(&value, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("select record: %w", err)
	}
	rec.Value = []byte(value)
	return rec, true, nil
}

func (s *SQLiteBackend) Insert(ctx context.Context, path string, value []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (path) DO NOTHING`,
		path, string(value), nowMillis(),
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLiteBackend) Swap(ctx context.Context, path string, version int64, value []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records
		 SET value = ?, version = version + 1, updated_at = ?
		 WHERE path = ? AND version = ?`,
		string(value), nowMillis(), path, version,
	)
	if err != nil {
		return false, fmt.Errorf("swap record: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLiteBackend) Put(ctx context.Context, path string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (path) DO UPDATE
		 SET value = excluded.value, version = records.version + 1, updated_at = excluded.updated_at`,
		path, string(value), nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Merge(ctx context.Context, path string, fields []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES (?, json(?), 1, ?)
		 ON CONFLICT (path) DO UPDATE
		 SET value = json_patch(records.value, excluded.value), version = records.version + 1, updated_at = excluded.updated_at`,
		path, string(fields), nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("merge record: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Remove(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
