package factory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
	"github.com/lychee-technology/apischema/internal/service"
	"go.uber.org/zap"
)

type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// test hooks
var (
	tableCollector  = collectTablesFromPool
	archiverFactory = func(ctx context.Context, cfg apischema.ArchiveConfig) (apischema.Archiver, error) {
		archiver, err := internal.NewS3Archiver(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			zap.S().Warnw("archive bucket check failed, exports may fail", "bucket", cfg.Bucket, "error", err)
		}
		return archiver, nil
	}
)

func collectTablesFromPool(pool queryPool) ([]string, error) {
	rows, err := pool.Query(context.Background(), `SELECT table_name FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema') AND table_type = 'BASE TABLE';`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tables, nil
}

// tableBaseName strips the schema qualifier and quotes from a table name.
func tableBaseName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, ` "`)
}

// NewApiServiceWithConfig creates the editor backend on top of a Postgres pool.
// This is the primary way for external projects to create an ApiService instance.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/apischema"
//	    "github.com/lychee-technology/apischema/factory"
//	)
//
//	config := apischema.DefaultConfig()
//	svc, err := factory.NewApiServiceWithConfig(config, pool)
//	if err != nil {
//	    // handle error
//	}
//
// The table named by config.Database.TableName must exist; `tools init-db` creates it.
// When config.Archive.Enabled is set, Export writes snapshots to the configured bucket.
func NewApiServiceWithConfig(config *apischema.Config, pool *pgxpool.Pool) (apischema.ApiService, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tables, err := tableCollector(pool)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, tableBaseName(config.Database.TableName)) {
		return nil, fmt.Errorf("required tables are missing in the database: %s", config.Database.TableName)
	}

	archiver, err := newArchiver(config.Archive)
	if err != nil {
		return nil, err
	}

	store := internal.NewPostgresSchemaStore(pool, config.Database.TableName)
	zap.S().Infow("api service ready", "table", config.Database.TableName, "archive", config.Archive.Enabled)
	return service.NewApiService(store, archiver, config.Editor), nil
}

// NewInMemoryApiService creates an editor backend that keeps everything in
// memory. It is meant for development and tests.
func NewInMemoryApiService(config *apischema.Config) (apischema.ApiService, error) {
	if config == nil {
		config = apischema.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	archiver, err := newArchiver(config.Archive)
	if err != nil {
		return nil, err
	}
	return service.NewApiService(internal.NewMemorySchemaStore(), archiver, config.Editor), nil
}

func newArchiver(cfg apischema.ArchiveConfig) (apischema.Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	archiver, err := archiverFactory(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return archiver, nil
}
