package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/apischema"
	"go.uber.org/zap"
)

type schemaPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSchemaStore keeps one JSONB document per API.
//
//	CREATE TABLE api_data (
//	    id         UUID PRIMARY KEY,
//	    data       JSONB NOT NULL,
//	    created_at BIGINT NOT NULL,
//	    updated_at BIGINT NOT NULL
//	);
type PostgresSchemaStore struct {
	pool    schemaPool
	table   string
	nowFunc func() time.Time
}

func NewPostgresSchemaStore(pool schemaPool, table string) *PostgresSchemaStore {
	return &PostgresSchemaStore{
		pool:    pool,
		table:   sanitizeIdentifier(table),
		nowFunc: time.Now,
	}
}

func (s *PostgresSchemaStore) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.nowFunc = now
}

func (s *PostgresSchemaStore) nowMillis() int64 {
	if s.nowFunc == nil {
		return time.Now().UnixMilli()
	}
	return s.nowFunc().UnixMilli()
}

func (s *PostgresSchemaStore) upsertQuery() string {
	return fmt.Sprintf(
		`INSERT INTO %s (id, data, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.table,
	)
}

func (s *PostgresSchemaStore) selectQuery() string {
	return fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.table)
}

// SaveSchema inserts or replaces the document stored under id.
func (s *PostgresSchemaStore) SaveSchema(ctx context.Context, id string, data *apischema.ApiData) error {
	if data == nil {
		return apischema.NewValidationError("data", "api data is required")
	}
	rowID, err := parseApiID(id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return apischema.NewStorageError("encode api data", err)
	}

	if _, err := s.pool.Exec(ctx, s.upsertQuery(), rowID, payload, s.nowMillis()); err != nil {
		zap.S().Errorw("save api data failed", "id", id, "error", err)
		return apischema.NewStorageError("save api data", err).WithDetail("id", id)
	}
	return nil
}

// GetSchema loads the document stored under id.
func (s *PostgresSchemaStore) GetSchema(ctx context.Context, id string) (*apischema.ApiData, error) {
	rowID, err := parseApiID(id)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if err := s.pool.QueryRow(ctx, s.selectQuery(), rowID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apischema.NewApiNotFoundError(id)
		}
		return nil, apischema.NewStorageError("load api data", err).WithDetail("id", id)
	}

	var data apischema.ApiData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, apischema.NewStorageError("decode api data", err).WithDetail("id", id)
	}
	return &data, nil
}
