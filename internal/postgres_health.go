package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/lychee-technology/apischema"
)

// ValidatePostgresConfig performs basic sanity checks on Postgres-related settings.
func ValidatePostgresConfig(cfg apischema.DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("database.port must be a valid TCP port")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("database.maxConnections must be greater than 0")
	}
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PingPostgres checks that the pool can reach the database.
// timeout may be 0 to use a sensible default (5s).
func PingPostgres(ctx context.Context, pool pinger, timeout time.Duration) error {
	if pool == nil {
		return fmt.Errorf("postgres pool not configured")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
