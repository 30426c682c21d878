package repositories

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wavehub/internal/database"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrRetryExhausted marks a transactional operation that kept colliding
// with concurrent writers past its retry budget. The service layer maps it
// to a transaction failure for the caller.
var ErrRetryExhausted = errors.New("transaction retry budget exhausted")

// ErrNotFound marks a write against an entity that does not exist.
var ErrNotFound = errors.New("record not found")

// ErrUsernameTaken marks a profile insert that lost a username race.
var ErrUsernameTaken = errors.New("username already taken")

// ErrBadCursor marks a pagination cursor the server cannot decode.
var ErrBadCursor = errors.New("malformed pagination cursor")

// BaseRepository provides common database operations shared by the
// concrete repositories.
type BaseRepository struct {
	db     *database.Manager
	logger *zap.Logger

	txMaxRetries   int
	txRetryBackoff time.Duration
}

// NewBaseRepository creates a new base repository.
func NewBaseRepository(db *database.Manager, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) *BaseRepository {
	if txMaxRetries <= 0 {
		txMaxRetries = 3
	}
	if txRetryBackoff <= 0 {
		txRetryBackoff = 25 * time.Millisecond
	}
	return &BaseRepository{
		db:             db,
		logger:         logger,
		txMaxRetries:   txMaxRetries,
		txRetryBackoff: txRetryBackoff,
	}
}

// ===============================
// CORE DATABASE OPERATIONS
// ===============================

// ExecContext executes a statement with slow-query logging.
func (r *BaseRepository) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.observeQuery(query, start, err)
	return result, err
}

// QueryContext executes a query that returns rows.
func (r *BaseRepository) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.observeQuery(query, start, err)
	return rows, err
}

// QueryRowContext executes a query that returns a single row.
func (r *BaseRepository) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, args...)
	r.observeQuery(query, start, nil)
	return row
}

func (r *BaseRepository) observeQuery(query string, start time.Time, err error) {
	duration := time.Since(start)
	if duration > r.db.SlowQueryThreshold() {
		r.logger.Warn("Slow query detected",
			zap.String("query", truncateQuery(query)),
			zap.Duration("duration", duration),
		)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Query execution failed",
			zap.String("query", truncateQuery(query)),
			zap.Error(err),
		)
	}
}

// ===============================
// TRANSACTION HELPERS
// ===============================

// WithTransaction executes fn inside a transaction, rolling back on error
// or panic.
func (r *BaseRepository) WithTransaction(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Error("Failed to rollback transaction",
				zap.NamedError("rollback_error", rbErr),
				zap.Error(err),
			)
		}
		return err
	}

	return tx.Commit()
}

// WithContendedTransaction runs fn in a serializable transaction and
// retries serialization failures and deadlocks with exponential backoff.
// After the retry budget it surfaces ErrRetryExhausted. This is the
// primitive behind every aggregate-counter mutation: read-modify-write
// without isolation is exactly the race it exists to close.
func (r *BaseRepository) WithContendedTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	attempt := 0
	operation := func() error {
		attempt++
		err := r.WithTransaction(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if isRetryableTxError(err) {
			r.logger.Debug("Retryable transaction conflict",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err // retryable
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.txRetryBackoff
	bo.MaxInterval = r.txRetryBackoff * 16

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(r.txMaxRetries)), ctx))
	if err == nil {
		return nil
	}
	if isRetryableTxError(err) {
		return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt, err)
	}
	return err
}

// isRetryableTxError reports whether err is a Postgres serialization
// failure (40001) or deadlock (40P01).
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation (a write referencing a missing parent row).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// ===============================
// CURSOR HELPERS
// ===============================

// keysetCursor is the decoded form of the opaque pagination cursor: the
// sort key of the last row the client saw. Keyset pagination keeps pages
// disjoint when rows are inserted between requests.
type keysetCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        int64     `json:"id"`
}

// encodeCursor serializes a keyset cursor to an opaque token.
func encodeCursor(createdAt time.Time, id int64) string {
	data, err := json.Marshal(keysetCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor parses an opaque token back into a keyset cursor.
func decodeCursor(cursor string) (*keysetCursor, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	var kc keysetCursor
	if err := json.Unmarshal(data, &kc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	if kc.CreatedAt.IsZero() || kc.ID <= 0 {
		return nil, fmt.Errorf("%w: missing sort key", ErrBadCursor)
	}
	return &kc, nil
}

// ===============================
// UTILITY METHODS
// ===============================

// IsNotFound reports whether err means the target entity does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsBadCursor reports whether err means the pagination cursor was garbage.
func IsBadCursor(err error) bool { return errors.Is(err, ErrBadCursor) }

// IsRetryExhausted reports whether err means a contended transaction ran
// out of retries.
func IsRetryExhausted(err error) bool { return errors.Is(err, ErrRetryExhausted) }

// IsUsernameTaken reports whether err means a username collision.
func IsUsernameTaken(err error) bool { return errors.Is(err, ErrUsernameTaken) }

// GetDB returns the underlying database manager for advanced operations
func (r *BaseRepository) GetDB() *database.Manager {
	return r.db
}

// GetLogger returns the logger instance
func (r *BaseRepository) GetLogger() *zap.Logger {
	return r.logger
}

// truncateQuery truncates long queries for logging
func truncateQuery(query string) string {
	const maxLength = 200
	if len(query) <= maxLength {
		return query
	}
	return query[:maxLength] + "..."
}
