package main

import (
	"net/url"
	"testing"

	"github.com/lychee-technology/apischema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantID     string
		wantAction string
		wantErr    bool
	}{
		{name: "id only", path: "/api/v1/apis/abc", wantID: "abc"},
		{name: "trailing slash", path: "/api/v1/apis/abc/", wantID: "abc"},
		{name: "with action", path: "/api/v1/apis/abc/form", wantID: "abc", wantAction: "form"},
		{name: "empty id", path: "/api/v1/apis/", wantErr: true},
		{name: "too deep", path: "/api/v1/apis/abc/form/extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, action, err := parsePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func TestParsePart(t *testing.T) {
	part, err := parsePart(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, apischema.PartResponse, part)

	part, err = parsePart(url.Values{"part": {"bodyJson"}})
	require.NoError(t, err)
	assert.Equal(t, apischema.PartBodyJSON, part)

	_, err = parsePart(url.Values{"part": {"headers"}})
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_TIMEOUT_SECONDS", "3")
	t.Setenv("API_TABLE", "apis")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("ARCHIVE_BUCKET", "api-archive")
	t.Setenv("EDITOR_MAX_ROWS", "not-a-number")

	config, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", config.Database.Host)
	assert.Equal(t, 6543, config.Database.Port)
	assert.Equal(t, "3s", config.Database.Timeout.String())
	assert.Equal(t, "apis", config.Database.TableName)
	assert.True(t, config.Archive.Enabled)
	assert.Equal(t, "api-archive", config.Archive.Bucket)
	assert.Equal(t, apischema.DefaultConfig().Editor.MaxRows, config.Editor.MaxRows, "unparsable values keep the default")
}

func TestLoadConfigValidates(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("ARCHIVE_BUCKET", "")

	_, err := loadConfig()
	var configErr *apischema.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "archive.bucket", configErr.Field)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(apischema.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger(apischema.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
