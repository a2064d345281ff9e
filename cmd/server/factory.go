package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/factory"
	"github.com/lychee-technology/apischema/internal"
	"go.uber.org/zap"
)

// newApiService builds the service for the given store kind. The returned
// pool is nil for the in-memory store.
func newApiService(ctx context.Context, config *apischema.Config, store string) (apischema.ApiService, *pgxpool.Pool, error) {
	if err := internal.ValidateArchiveConfig(config.Archive); err != nil {
		return nil, nil, err
	}

	if store == "memory" {
		zap.S().Warnw("using in-memory store, saved apis are lost on restart")
		service, err := factory.NewInMemoryApiService(config)
		return service, nil, err
	}

	if err := internal.ValidatePostgresConfig(config.Database); err != nil {
		return nil, nil, err
	}
	pool, err := createDatabasePoolFromConfig(ctx, config.Database)
	if err != nil {
		return nil, nil, err
	}
	service, err := factory.NewApiServiceWithConfig(config, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return service, pool, nil
}

// createDatabasePoolFromConfig creates a PostgreSQL connection pool from config
func createDatabasePoolFromConfig(ctx context.Context, config apischema.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxConnections)
	poolConfig.MinConns = int32(config.MaxIdleConns)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = config.Timeout

	if config.UseIAMAuth {
		// tokens expire, so every new connection gets a fresh one
		poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := generateAuthToken(ctx, config)
			if err != nil {
				return err
			}
			cc.Password = token
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := internal.PingPostgres(ctx, pool, 5*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func generateAuthToken(ctx context.Context, config apischema.DatabaseConfig) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
	token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("generate dsql auth token: %w", err)
	}
	zap.S().Debugw("generated IAM auth token for Postgres connection", "endpoint", endpoint)
	return token, nil
}
