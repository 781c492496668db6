package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores records in the records table through a pgx pool.
//
// Unlike a SELECT … FOR UPDATE flow, no row lock is held while the caller's
// transaction function runs: Swap is a single UPDATE guarded by the version
// that was read, and a lost race shows up as zero affected rows, which the
// Store turns into a reload-and-retry.
type PostgresBackend struct {
	db *pgxpool.Pool
}

// NewPostgresBackend constructs a PostgresBackend. The schema must already
// exist (see database.MigratePostgres).
func NewPostgresBackend(db *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (p *PostgresBackend) Load(ctx context.Context, path string) (Record, bool, error) {
	var rec Record
	err := p.db.QueryRow(ctx,
		`SELECT value, version FROM records WHERE path = $1`,
		path,
	).Scan(&rec.Value, &rec.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("select record: %w", err)
	}
	return rec, true, nil
}

func (p *PostgresBackend) Insert(ctx context.Context, path string, value []byte) (bool, error) {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES ($1, $2::jsonb, 1, now())
		 ON CONFLICT (path) DO NOTHING`,
		path, value,
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresBackend) Swap(ctx context.Context, path string, version int64, value []byte) (bool, error) {
	tag, err := p.db.Exec(ctx,
		`UPDATE records
		 SET value = $3::jsonb, version = version + 1, updated_at = now()
		 WHERE path = $1 AND version = $2`,
		path, version, value,
	)
	if err != nil {
		return false, fmt.Errorf("swap record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresBackend) Put(ctx context.Context, path string, value []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES ($1, $2::jsonb, 1, now())
		 ON CONFLICT (path) DO UPDATE
		 SET value = EXCLUDED.value, version = records.version + 1, updated_at = now()`,
		path, value,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Merge(ctx context.Context, path string, fields []byte) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO records (path, value, version, updated_at)
		 VALUES ($1, $2::jsonb, 1, now())
		 ON CONFLICT (path) DO UPDATE
		 SET value = records.value || EXCLUDED.value, version = records.version + 1, updated_at = now()`,
		path, fields,
	)
	if err != nil {
		return fmt.Errorf("merge record: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Remove(ctx context.Context, path string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM records WHERE path = $1`, path); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
