package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lychee-technology/apischema"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server with ApiService
type Server struct {
	service       apischema.ApiService
	db            pinger
	maxFormMemory int64
	mux           *http.ServeMux
}

// NewServer creates a new Server instance. db may be nil when the service
// is not backed by Postgres.
func NewServer(service apischema.ApiService, db pinger, config apischema.ServerConfig) *Server {
	return &Server{
		service:       service,
		db:            db,
		maxFormMemory: config.MaxFormMemory,
		mux:           http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	// API routes - use custom path matching in handlers
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/apis", s.handleCreate)
	s.mux.HandleFunc("/api/v1/apis/", s.apiHandler)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, config apischema.ServerConfig) error {
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      s.mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "port", config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.S().Infow("shutting down server", "timeout", config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	config, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(config.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, pool, err := newApiService(ctx, config, getEnv("STORE", "postgres"))
	if err != nil {
		sugar.Fatalf("failed to create api service: %v", err)
	}

	var db pinger
	if pool != nil {
		defer pool.Close()
		db = pool
	}

	server := NewServer(service, db, config.Server)
	server.RegisterRoutes()

	if err := server.Start(ctx, config.Server); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// loadConfig reads CONFIG_FILE when set, otherwise builds the configuration
// from environment variables on top of the defaults.
func loadConfig() (*apischema.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return apischema.LoadConfig(path)
	}

	config := apischema.DefaultConfig()

	// Database configuration
	db := &config.Database
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvInt("DB_PORT", db.Port)
	db.Database = getEnv("DB_NAME", db.Database)
	db.Username = getEnv("DB_USER", db.Username)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.SSLMode = getEnv("DB_SSL_MODE", db.SSLMode)
	db.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", db.MaxConnections)
	db.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.ConnMaxLifetime = getEnvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", db.ConnMaxLifetime)
	db.ConnMaxIdleTime = getEnvSeconds("DB_CONN_MAX_IDLE_TIME_SECONDS", db.ConnMaxIdleTime)
	db.Timeout = getEnvSeconds("DB_TIMEOUT_SECONDS", db.Timeout)
	db.TableName = getEnv("API_TABLE", db.TableName)
	db.UseIAMAuth = getEnvBool("DB_USE_IAM", db.UseIAMAuth)
	db.Region = getEnv("AWS_REGION", db.Region)

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("LOG_FORMAT", config.Logging.Format)

	archive := &config.Archive
	archive.Enabled = getEnvBool("ARCHIVE_ENABLED", archive.Enabled)
	archive.Bucket = getEnv("ARCHIVE_BUCKET", archive.Bucket)
	archive.Prefix = getEnv("ARCHIVE_PREFIX", archive.Prefix)
	archive.Region = getEnv("ARCHIVE_REGION", archive.Region)
	archive.Endpoint = getEnv("ARCHIVE_ENDPOINT", archive.Endpoint)
	archive.BreakerThreshold = getEnvInt("ARCHIVE_BREAKER_THRESHOLD", archive.BreakerThreshold)
	archive.BreakerWindow = getEnvSeconds("ARCHIVE_BREAKER_WINDOW_SECONDS", archive.BreakerWindow)
	archive.BreakerCooldown = getEnvSeconds("ARCHIVE_BREAKER_COOLDOWN_SECONDS", archive.BreakerCooldown)
	archive.AccessKey = getEnv("AWS_ACCESS_KEY_ID", archive.AccessKey)
	archive.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", archive.SecretKey)

	config.Editor.MaxDepth = getEnvInt("EDITOR_MAX_DEPTH", config.Editor.MaxDepth)
	config.Editor.MaxRows = getEnvInt("EDITOR_MAX_ROWS", config.Editor.MaxRows)
	config.Editor.MaxFields = getEnvInt("EDITOR_MAX_FIELDS", config.Editor.MaxFields)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogger(config apischema.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if config.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
