package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SeedPostgres creates the api data table and inserts one stored api per
// entry of apis, keyed by a fresh id. It returns the ids in input order.
func SeedPostgres(ctx context.Context, db *sql.DB, table string, apis ...string) ([]string, error) {
	quoted := pq.QuoteIdentifier(table)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY,
  data JSONB NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);`, quoted)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	now := time.Now().UnixMilli()
	ids := make([]string, 0, len(apis))
	for _, data := range apis {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, data, created_at, updated_at)
VALUES ($1, $2, $3, $3)
`, quoted), id.String(), data, now); err != nil {
			return nil, fmt.Errorf("insert api: %w", err)
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}

// CountRows returns the number of stored apis.
func CountRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pq.QuoteIdentifier(table))).Scan(&n)
	return n, err
}

// ReadArchivedObject downloads the object behind an s3://bucket/key location.
func ReadArchivedObject(ctx context.Context, endpoint, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "s3" {
		return nil, fmt.Errorf("not an s3 location: %q", location)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(S3AccessKey, S3SecretKey, "")),
		config.WithBaseEndpoint(endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// EditorForm is a submission that exercises every list of the editor.
func EditorForm(name string) url.Values {
	return url.Values{
		"name":                                   {name},
		"path":                                   {"/users/{id}"},
		"method":                                 {"PUT"},
		"description":                            {"Updates a user"},
		"bodyType":                               {"JSON"},
		"bodyRaw.example":                        {""},
		"bodyRaw.description":                    {""},
		"queryParams[0].name":                    {"dryRun"},
		"queryParams[0].type":                    {"BOOLEAN"},
		"headers[0].name":                        {"X-Request-Id"},
		"headers[0].isRequired":                  {"true"},
		"bodyJson.type":                          {"OBJECT"},
		"bodyJson.children[0].name":              {"tags"},
		"bodyJson.children[0].type":              {"ARRAY"},
		"bodyJson.children[0].arrayElem.type":    {"STRING"},
		"bodyJson.children[0].arrayElem.example": {"admin"},
		"response.type":                          {"OBJECT"},
		"response.children[0].name":              {"ok"},
		"response.children[0].type":              {"BOOLEAN"},
		"response.children[0].mock":              {"true"},
	}
}
