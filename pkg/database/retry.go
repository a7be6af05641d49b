package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrRetryExhausted marks a failure of the single retry after a reconnect.
var ErrRetryExhausted = errors.New("retry exhausted")

var closedMarkers = []string{
	"CONNECTION_CLOSED",
	"conn closed",
	"connection reset by peer",
	"broken pipe",
}

// IsConnectionClosed reports whether err means the transport under a pooled
// connection went away, so that rebuilding the pool may help.
func IsConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return connectionCode(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return connectionCode(string(pqErr.Code))
	}
	msg := err.Error()
	for _, m := range closedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505 from either
// driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// connectionCode matches SQLSTATE class 08 (connection exception) and
// admin_shutdown.
func connectionCode(code string) bool {
	return strings.HasPrefix(code, "08") || code == "57P01"
}

// QueryFunc runs one query against db.
type QueryFunc[T any] func(ctx context.Context, db *sqlx.DB) (T, error)

func run[T any](ctx context.Context, p Provider, fn QueryFunc[T]) (T, error) {
	var zero T
	h, err := p.Handle(ctx)
	if err != nil {
		return zero, err
	}
	defer h.Release()
	return fn(ctx, h.DB)
}

// Do runs fn once against a handle from p. Failures are logged and returned
// unmodified.
func Do[T any](ctx context.Context, p Provider, logger *zap.SugaredLogger, op string, fn QueryFunc[T]) (T, error) {
	v, err := run(ctx, p, fn)
	if err != nil {
		logger.Warnw("query failed", "op", op, "err", err)
	}
	return v, err
}

// DoWithReconnect runs fn and, if it fails because the connection was
// closed, invalidates p and runs fn exactly once more on a fresh handle.
// A failed retry is returned wrapped in ErrRetryExhausted.
func DoWithReconnect[T any](ctx context.Context, p Provider, logger *zap.SugaredLogger, op string, fn QueryFunc[T]) (T, error) {
	v, err := run(ctx, p, fn)
	if err == nil {
		return v, nil
	}
	if !IsConnectionClosed(err) {
		logger.Warnw("query failed", "op", op, "err", err)
		return v, err
	}
	logger.Warnw("connection closed, resetting provider", "op", op, "err", err)
	p.Invalidate()
	v, err = run(ctx, p, fn)
	if err != nil {
		logger.Errorw("retry failed", "op", op, "err", err)
		return v, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
	}
	return v, nil
}

// Degrade turns a read failure into the zero value. Configuration faults
// still surface.
func Degrade[T any](v T, err error) (T, error) {
	if err == nil {
		return v, nil
	}
	var zero T
	if errors.Is(err, ErrMissingDSN) {
		return zero, err
	}
	return zero, nil
}
