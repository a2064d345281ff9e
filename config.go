package apischema

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the schema service
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Archive  ArchiveConfig  `yaml:"archive" json:"archive"`
	Editor   EditorConfig   `yaml:"editor" json:"editor"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"sslMode" json:"sslMode"`
	MaxConnections  int           `yaml:"maxConnections" json:"maxConnections"`
	MaxIdleConns    int           `yaml:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime" json:"connMaxIdleTime"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	TableName       string        `yaml:"tableName" json:"tableName"`
	// UseIAMAuth replaces Password with a generated DSQL auth token.
	UseIAMAuth bool   `yaml:"useIAMAuth" json:"useIAMAuth"`
	Region     string `yaml:"region" json:"region"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	MaxFormMemory   int64         `yaml:"maxFormMemory" json:"maxFormMemory"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
}

// ArchiveConfig controls exporting saved schemas to S3 compatible storage
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"accessKey" json:"accessKey"`
	SecretKey string `yaml:"secretKey" json:"secretKey"`
	PathStyle bool   `yaml:"pathStyle" json:"pathStyle"`
	// BreakerThreshold failed uploads within BreakerWindow pause uploads
	// for BreakerCooldown. Zero never pauses.
	BreakerThreshold int           `yaml:"breakerThreshold" json:"breakerThreshold"`
	BreakerWindow    time.Duration `yaml:"breakerWindow" json:"breakerWindow"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown" json:"breakerCooldown"`
}

// EditorConfig contains settings of the schema editor form
type EditorConfig struct {
	// MaxDepth bounds the nesting accepted from a submitted form. Zero disables the check.
	MaxDepth int `yaml:"maxDepth" json:"maxDepth"`
	// MaxRows bounds the number of rows accepted in a single list.
	MaxRows int `yaml:"maxRows" json:"maxRows"`
	// MaxFields bounds the number of distinct fields in one submission.
	MaxFields int `yaml:"maxFields" json:"maxFields"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "apischema",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableName:       "api_data",
			Region:          "us-east-1",
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			MaxFormMemory:   8 << 20, // 8MB
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Archive: ArchiveConfig{
			Prefix:           "apis/",
			Region:           "us-east-1",
			PathStyle:        true,
			BreakerThreshold: 5,
			BreakerWindow:    time.Minute,
			BreakerCooldown:  30 * time.Second,
		},
		Editor: EditorConfig{
			MaxDepth:  32,
			MaxRows:   500,
			MaxFields: 20000,
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}

	if c.Database.TableName == "" {
		return &ConfigError{Field: "database.tableName", Message: "must not be empty"}
	}

	if c.Database.UseIAMAuth && c.Database.Region == "" {
		return &ConfigError{Field: "database.region", Message: "is required when useIAMAuth is set"}
	}

	if c.Server.Port == "" {
		return &ConfigError{Field: "server.port", Message: "must not be empty"}
	}

	if c.Server.MaxFormMemory <= 0 {
		return &ConfigError{Field: "server.maxFormMemory", Message: "must be greater than 0"}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return &ConfigError{Field: "archive.bucket", Message: "is required when the archive is enabled"}
	}

	if c.Archive.BreakerThreshold < 0 {
		return &ConfigError{Field: "archive.breakerThreshold", Message: "must not be negative"}
	}

	if c.Archive.BreakerThreshold > 0 && c.Archive.BreakerWindow <= 0 {
		return &ConfigError{Field: "archive.breakerWindow", Message: "must be positive when breakerThreshold is set"}
	}

	if c.Archive.BreakerThreshold > 0 && c.Archive.BreakerCooldown <= 0 {
		return &ConfigError{Field: "archive.breakerCooldown", Message: "must be positive when breakerThreshold is set"}
	}

	if c.Editor.MaxDepth < 0 {
		return &ConfigError{Field: "editor.maxDepth", Message: "must not be negative"}
	}

	if c.Editor.MaxRows < 0 {
		return &ConfigError{Field: "editor.maxRows", Message: "must not be negative"}
	}

	if c.Editor.MaxFields < 0 {
		return &ConfigError{Field: "editor.maxFields", Message: "must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
