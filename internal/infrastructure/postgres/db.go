package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// PoolConfig configures a connection pool.
type PoolConfig struct {
	DatabaseURL string
	MaxConns    int
	MinConns    int
	// ConnectTimeout bounds the initial ping. Zero means no extra bound.
	ConnectTimeout time.Duration
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int) (*pgxpool.Pool, error) {
	return NewPoolWithConfig(ctx, PoolConfig{
		DatabaseURL: databaseURL,
		MaxConns:    maxConns,
		MinConns:    minConns,
	})
}

// NewPoolWithConfig creates a pool from cfg and verifies it with a ping.
func NewPoolWithConfig(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	// Verify connection
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// ReportPoolStats copies pool connection counts into m every interval until
// ctx is done.
func ReportPoolStats(ctx context.Context, pool PoolStater, m *metrics.Metrics, interval time.Duration) {
	if m == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(pool.Stat(), m)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(stat *pgxpool.Stat, m *metrics.Metrics) {
	m.DBConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	m.DBConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	m.DBConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
}
