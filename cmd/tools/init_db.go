package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/apischema"
)

type initDBOptions struct {
	host     string
	port     int
	database string
	user     string
	password string
	sslMode  string
	apiTable string
	seedDir  string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: apischema-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initDBOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "apischema"), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.StringVar(&opts.apiTable, "api-table", getenvDefault("API_TABLE", "api_data"), "api data table name")
	flags.StringVar(&opts.seedDir, "seed-dir", getenvDefault("SEED_DIR", ""), "Directory containing api data JSON files to import (optional)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return initDatabase(opts)
}

func initDatabase(opts initDBOptions) error {
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		return err
	}

	fmt.Println("Database initialized successfully.")
	return nil
}

func buildConnString(opts initDBOptions) string {
	hostPort := fmt.Sprintf("%s:%d", opts.host, opts.port)

	var userInfo *url.Userinfo
	if opts.password != "" {
		userInfo = url.UserPassword(opts.user, opts.password)
	} else {
		userInfo = url.User(opts.user)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   hostPort,
		Path:   "/" + opts.database,
	}

	q := url.Values{}
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// execer is the part of pgx.Tx used to create and seed the table.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func ensureTables(ctx context.Context, tx execer, opts initDBOptions) error {
	apiTable := quoteIdentifier(opts.apiTable)

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         UUID PRIMARY KEY,
		data       JSONB NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, apiTable)

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure api data table: %w", err)
	}
	fmt.Printf("Created api data table: %s\n", opts.apiTable)

	idxUpdated := quoteIdentifier(makeIndexName(opts.apiTable, "updated_at"))
	createIdxUpdated := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (updated_at DESC)`, idxUpdated, apiTable)
	if _, err := tx.Exec(ctx, createIdxUpdated); err != nil {
		return fmt.Errorf("create updated_at index: %w", err)
	}

	if opts.seedDir != "" {
		if err := seedApis(ctx, tx, opts.apiTable, opts.seedDir); err != nil {
			return err
		}
	}

	return nil
}

// seedApis imports every api data JSON file of seedDir. The id is the file
// name when it is a UUID and a name based UUID otherwise, so re-running the
// import does not create duplicates.
func seedApis(ctx context.Context, tx execer, apiTable, seedDir string) error {
	entries, err := os.ReadDir(seedDir)
	if err != nil {
		return fmt.Errorf("read seed directory(%s): %w", seedDir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		fmt.Printf("No seed files found, dir: %s\n", seedDir)
		return nil
	}

	sort.Strings(files)

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1, $2, $3, $3) ON CONFLICT (id) DO NOTHING`,
		quoteIdentifier(apiTable),
	)
	now := time.Now().UnixMilli()
	for _, file := range files {
		data, err := readApiFile(filepath.Join(seedDir, file))
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", file, err)
		}

		id := seedID(strings.TrimSuffix(file, ".json"))
		result, err := tx.Exec(ctx, insertSQL, id, encoded, now)
		if err != nil {
			return fmt.Errorf("insert api %s: %w", file, err)
		}

		if result.RowsAffected() > 0 {
			fmt.Printf("Imported api, file: %s, id: %s\n", file, id)
		} else {
			fmt.Printf("Api already exists, file: %s, id: %s\n", file, id)
		}
	}

	fmt.Printf("Imported apis from directory, count: %d, dir: %s\n", len(files), seedDir)
	return nil
}

func seedID(name string) uuid.UUID {
	if id, err := uuid.Parse(name); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("apischema:"+name))
}

// readApiFile decodes a stored api description and checks its schema trees.
func readApiFile(path string) (*apischema.ApiData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api file(%s): %w", path, err)
	}
	var data apischema.ApiData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode api file(%s): %w", path, err)
	}
	for _, part := range []apischema.SchemaPart{apischema.PartBodyJSON, apischema.PartResponse} {
		if node := data.Schema(part); node != nil {
			if err := node.Validate(); err != nil {
				return nil, fmt.Errorf("api file(%s) %s: %w", path, part, err)
			}
		}
	}
	return &data, nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(splitIdentifier(name)).Sanitize()
}

func splitIdentifier(name string) []string {
	parts := strings.Split(name, ".")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{name}
	}
	return result
}

func makeIndexName(table string, suffix string) string {
	base := strings.ReplaceAll(table, ".", "_")
	base = strings.ReplaceAll(base, `"`, "")
	return fmt.Sprintf("%s_%s_idx", base, suffix)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
