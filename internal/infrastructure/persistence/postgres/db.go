// Package postgres holds the database/sql wiring and job/repo stores backing
// the engine and stage packages.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/harvestlab/repoharvester/internal/domain/service"
)

const (
	maxRetries     = 10
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	pingTimeout    = 5 * time.Second
)

// DB holds the database connection.
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection with retry logic.
func NewDB(databaseURL string, logger service.Logger) (*DB, error) {
	return NewDBWithContext(context.Background(), databaseURL, logger)
}

// NewDBWithContext creates a new database connection with retry logic and
// context support.
func NewDBWithContext(ctx context.Context, databaseURL string, logger service.Logger) (*DB, error) {
	var db *sql.DB
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			logger.Warn("retrying database connection", "attempt", attempt+1, "maxRetries", maxRetries, "lastErr", lastErr)
		}

		db, lastErr = sql.Open("postgres", databaseURL)
		if lastErr != nil {
			backoff := calculateBackoff(attempt)
			logger.Warn("failed to open database, retrying", "backoff", backoff, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				continue
			}
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			logger.Info("database connection established")
			return &DB{db}, nil
		}

		db.Close()

		backoff := calculateBackoff(attempt)
		logger.Warn("failed to ping database, retrying", "backoff", backoff, "err", lastErr)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
		case <-time.After(backoff):
			continue
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

// calculateBackoff returns exponential backoff duration capped at maxBackoff.
func calculateBackoff(attempt int) time.Duration {
	backoff := initialBackoff * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
