package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
)

// retryPolicy bounds the storage-layer retry loop. One policy for every
// operation; call sites never roll their own reconnect logic.
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

var defaultRetry = retryPolicy{
	maxAttempts:  3,
	initialDelay: 200 * time.Millisecond,
	maxDelay:     2 * time.Second,
}

// PostgresStore persists analysis records in the analysis.records table.
// Connections are checked out per operation from the pool; nothing holds a
// session across requests.
// ⭐ SSOT: 분석 레코드 영속화는 여기서만
type PostgresStore struct {
	db     *database.DB
	logger *logger.Logger
	retry  retryPolicy
}

// NewPostgresStore creates the Postgres-backed analysis store
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log, retry: defaultRetry}
}

// Write inserts one record. Prior records for the same (name, date) are
// never touched; a re-run simply adds a sibling row.
func (s *PostgresStore) Write(ctx context.Context, name contracts.AnalysisKind, date time.Time, value map[string]interface{}) (int64, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal value: %w", err)
	}

	var id int64
	err = s.withRetry(ctx, "write", func(ctx context.Context) error {
		return s.db.Pool.QueryRow(ctx,
			`INSERT INTO analysis.records (name, date, value)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			string(name), contracts.DateOnly(date), payload,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis record: %w", err)
	}

	return id, nil
}

// Read returns all records for an exact (name, date). ticker narrows to
// records whose promoted value->>'ticker' matches. Empty result, nil error.
func (s *PostgresStore) Read(ctx context.Context, name contracts.AnalysisKind, date time.Time, ticker string) ([]*contracts.AnalysisRecord, error) {
	query := `SELECT id, name, date, value, created_at
	          FROM analysis.records
	          WHERE name = $1 AND date = $2`
	args := []interface{}{string(name), contracts.DateOnly(date)}

	if ticker != "" {
		query += ` AND value->>'ticker' = $3`
		args = append(args, ticker)
	}
	query += ` ORDER BY created_at`

	var records []*contracts.AnalysisRecord
	err := s.withRetry(ctx, "read", func(ctx context.Context) error {
		rows, err := s.db.Pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis records: %w", err)
	}

	return records, nil
}

// ReadNearest finds the latest non-empty date at or before onOrBefore within
// the scan bound, then reads that date. A single MAX(date) query replaces a
// day-by-day scan.
func (s *PostgresStore) ReadNearest(ctx context.Context, name contracts.AnalysisKind, onOrBefore time.Time) ([]*contracts.AnalysisRecord, time.Time, bool, error) {
	target := contracts.DateOnly(onOrBefore)
	floor := target.AddDate(0, 0, -contracts.NearestScanDays)

	var actual time.Time
	err := s.withRetry(ctx, "read_nearest", func(ctx context.Context) error {
		var found *time.Time
		err := s.db.Pool.QueryRow(ctx,
			`SELECT MAX(date) FROM analysis.records
			 WHERE name = $1 AND date <= $2 AND date > $3`,
			string(name), target, floor,
		).Scan(&found)
		if err != nil {
			return err
		}
		if found == nil {
			return contracts.ErrNoData
		}
		actual = *found
		return nil
	})
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			return nil, time.Time{}, false, contracts.ErrNoData
		}
		return nil, time.Time{}, false, fmt.Errorf("failed to resolve nearest date: %w", err)
	}

	actual = contracts.DateOnly(actual)
	records, err := s.Read(ctx, name, actual, "")
	if err != nil {
		return nil, time.Time{}, false, err
	}

	return records, actual, actual.Equal(target), nil
}

func scanRecord(rows pgx.Rows) (*contracts.AnalysisRecord, error) {
	var rec contracts.AnalysisRecord
	var payload []byte

	if err := rows.Scan(&rec.ID, &rec.Name, &rec.Date, &payload, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Value); err != nil {
		return nil, fmt.Errorf("corrupt value payload for record %d: %w", rec.ID, err)
	}
	return &rec, nil
}

// withRetry runs op with bounded exponential backoff on transient errors.
// Non-transient errors (constraint violations, bad SQL, ErrNoData) return
// immediately.
func (s *PostgresStore) withRetry(ctx context.Context, opName string, op func(context.Context) error) error {
	delay := s.retry.initialDelay

	var err error
	for attempt := 1; attempt <= s.retry.maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt == s.retry.maxAttempts {
			return err
		}

		s.logger.WithFields(map[string]interface{}{
			"op":      opName,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Transient storage error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.retry.maxDelay {
			delay = s.retry.maxDelay
		}
	}
	return err
}

// isTransient reports whether a storage error is worth retrying: connection
// failures, admin shutdowns, serialization conflicts and deadlocks.
func isTransient(err error) bool {
	if errors.Is(err, contracts.ErrNoData) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01",   // deadlock_detected
			"57P01",   // admin_shutdown
			"57P02",   // crash_shutdown
			"57P03",   // cannot_connect_now
			"53300",   // too_many_connections
			"08000", "08003", "08006": // connection exceptions
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.SafeToRetry(err)
}
