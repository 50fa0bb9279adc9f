package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forecast-explorer/internal/forecast"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	ensureSchemaSQL = `CREATE TABLE IF NOT EXISTS forecasts (
        model_id   TEXT             NOT NULL,
        base_ts    TIMESTAMPTZ      NOT NULL,
        step       INTEGER          NOT NULL CHECK (step >= 1),
        prediction DOUBLE PRECISION NOT NULL,
        actual     DOUBLE PRECISION,
        created_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
        PRIMARY KEY (model_id, base_ts, step)
    );`

	upsertForecastSQL = `INSERT INTO forecasts (
        model_id,
        base_ts,
        step,
        prediction,
        actual
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (model_id, base_ts, step) DO UPDATE
    SET
        prediction = EXCLUDED.prediction,
        actual     = EXCLUDED.actual;`

	listForecastsSQL = `SELECT
        model_id,
        base_ts,
        step,
        prediction,
        actual
    FROM forecasts
    ORDER BY model_id, base_ts, step;`

	countForecastsSQL = `SELECT COUNT(*) FROM forecasts;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ForecastStore defines operations for forecast persistence.
type ForecastStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertForecasts(ctx context.Context, records []forecast.Record, batchSize int) (int, error)
	ListForecasts(ctx context.Context) ([]forecast.Record, error)
	CountForecasts(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store provides access to the forecasts table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Session locks die with the connection, so a failed unlock is not fatal.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// EnsureSchema creates the forecasts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ensureSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertForecasts writes records in batches of batchSize and returns how many were sent.
func (s *Store) UpsertForecasts(ctx context.Context, records []forecast.Record, batchSize int) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = len(records)
	}

	written := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			row := rowFromRecord(rec)
			batch.Queue(upsertForecastSQL, row.ModelID, row.BaseTS, row.Step, row.Prediction, row.Actual)
		}

		if err := sendBatch(ctx, pool, batch); err != nil {
			return written, fmt.Errorf("upsert forecasts: %w", err)
		}
		written += end - start
	}
	return written, nil
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	results := pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// ListForecasts returns every stored record ordered by model, base time and step.
func (s *Store) ListForecasts(ctx context.Context) ([]forecast.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listForecastsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list forecasts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]forecast.Record, 0)
	for rows.Next() {
		row, scanErr := scanForecastRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, row.Record())
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountForecasts counts stored records.
func (s *Store) CountForecasts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countForecastsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count forecasts: %w", scanErr)
	}
	return count, nil
}

func scanForecastRow(rows pgx.Rows) (ForecastRow, error) {
	var row ForecastRow
	if err := rows.Scan(
		&row.ModelID,
		&row.BaseTS,
		&row.Step,
		&row.Prediction,
		&row.Actual,
	); err != nil {
		return ForecastRow{}, fmt.Errorf("scan forecast row: %w", err)
	}
	return row, nil
}

var (
	_ ForecastStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
