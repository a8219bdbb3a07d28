package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramiqadoumi/leadflow/pkg/retry"
)

// Connect opens a pool, retrying while the database is still starting.
// Malformed DSNs and rejected credentials fail immediately.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Retryable:   connectRetryable,
		OnRetry: func(attempt int, err error) {
			logger.Warn("postgres not ready, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		p, err := NewPool(attemptCtx, dsn)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// connectRetryable rejects configuration errors, SQLSTATE class 28
// (invalid authorization) and 3D000 (unknown database).
func connectRetryable(err error) bool {
	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return !strings.HasPrefix(pgErr.Code, "28") && pgErr.Code != "3D000"
	}
	return true
}
