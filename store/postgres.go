package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PostgresCollection stores records of type T as JSONB rows in the shared
// records table. Index entries live in record_indexes and cascade with their
// record. Unique indexes are enforced by a partial unique index.
type PostgresCollection[T any] struct {
	db     *sql.DB
	schema Schema[T]
}

// OpenPostgres opens a pgx-backed *sql.DB and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// NewPostgresCollection returns a Postgres-backed collection. The schema must
// have been created with [Migrate].
func NewPostgresCollection[T any](db *sql.DB, schema Schema[T]) (*PostgresCollection[T], error) {
	if db == nil {
		return nil, errors.New("store: sql db required")
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &PostgresCollection[T]{db: db, schema: schema}, nil
}

// Get loads one record by primary key.
func (c *PostgresCollection[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	query := `
		SELECT data
		FROM records
		WHERE collection = $1 AND key = $2
	`
	var data []byte
	if err := c.db.QueryRowContext(ctx, query, c.schema.Name, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return zero, fmt.Errorf("store: decode %s/%s: %w", c.schema.Name, key, err)
	}
	return record, nil
}

// Put upserts the record and rewrites its index rows in one transaction.
func (c *PostgresCollection[T]) Put(ctx context.Context, record T) error {
	key := c.schema.Key(record)
	if key == "" {
		return errors.New("store: empty record key")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", c.schema.Name, key, err)
	}

	err = WithTx(ctx, c.db, nil, func(ctx context.Context, tx DBTX) error {
		upsert := `
			INSERT INTO records (collection, key, data, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (collection, key)
			DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		`
		if _, err := tx.ExecContext(ctx, upsert, c.schema.Name, key, data); err != nil {
			return err
		}

		drop := `
			DELETE FROM record_indexes
			WHERE collection = $1 AND key = $2
		`
		if _, err := tx.ExecContext(ctx, drop, c.schema.Name, key); err != nil {
			return err
		}

		insert := `
			INSERT INTO record_indexes (collection, key, field, value, is_unique)
			VALUES ($1, $2, $3, $4, $5)
		`
		for _, idx := range c.schema.indexes(record) {
			if _, err := tx.ExecContext(ctx, insert, c.schema.Name, key, idx.Field, idx.Value, idx.Unique); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a record. Index rows go with it. Missing keys are a no-op.
func (c *PostgresCollection[T]) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM records
		WHERE collection = $1 AND key = $2
	`
	if _, err := c.db.ExecContext(ctx, query, c.schema.Name, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindByIndex returns every record whose index entry field equals value,
// ordered by primary key.
func (c *PostgresCollection[T]) FindByIndex(ctx context.Context, field, value string) ([]T, error) {
	query := `
		SELECT r.key, r.data
		FROM records r
		JOIN record_indexes i ON i.collection = r.collection AND i.key = r.key
		WHERE i.collection = $1 AND i.field = $2 AND i.value = $3
		ORDER BY r.key
	`
	rows, err := c.db.QueryContext(ctx, query, c.schema.Name, field, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", c.schema.Name, key, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// DeleteAllByIndex deletes every record matching the index entry in a single
// statement and reports the number of removed records.
func (c *PostgresCollection[T]) DeleteAllByIndex(ctx context.Context, field, value string) (int, error) {
	query := `
		DELETE FROM records
		WHERE collection = $1 AND key IN (
			SELECT key FROM record_indexes
			WHERE collection = $1 AND field = $2 AND value = $3
		)
	`
	res, err := c.db.ExecContext(ctx, query, c.schema.Name, field, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// NextID draws from the shared record_ids sequence.
func (c *PostgresCollection[T]) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := c.db.QueryRowContext(ctx, `SELECT nextval('record_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
