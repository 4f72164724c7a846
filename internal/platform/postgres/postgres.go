// Package postgres opens the primary database and applies the schema every
// PostgreSQL-backed store in this module expects.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// connectMaxElapsed bounds how long Open waits for a database that is still
// starting, e.g. alongside the server in a compose stack.
const connectMaxElapsed = 30 * time.Second

// cannotConnectNow is reported while the server is starting up.
const cannotConnectNow = "57P03"

func newConnectBackoff() backoff.BackOff {
	// BackOff values are stateful; always return a fresh one.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	return bo
}

// Open connects with lib/pq and verifies the connection, retrying transient
// network failures with exponential backoff.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && !isTransient(pingErr) {
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, backoff.WithContext(newConnectBackoff(), ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// isTransient reports whether a connection error may clear on its own.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == cannotConnectNow
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
