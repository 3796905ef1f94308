package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		checkFunc func(t *testing.T, logger *slog.Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: &Config{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Debug("edit trigger published", slog.String("job_id", "j-1"))

				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
				assert.Equal(t, "DEBUG", entry["level"])
				assert.Equal(t, "edit trigger published", entry["msg"])
				assert.Equal(t, "j-1", entry["job_id"])
			},
		},
		{
			name:   "info level suppresses debug",
			config: &Config{Level: "info", Format: "json"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Debug("dropped")
				logger.Info("kept")

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				assert.Len(t, lines, 1)
				assert.Contains(t, lines[0], "kept")
			},
		},
		{
			name:   "console format produces output",
			config: &Config{Level: "info", Format: "console"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Info("job submitted")
				assert.Contains(t, output.String(), "job submitted")
			},
		},
		{
			name:   "unknown format falls back to json",
			config: &Config{Level: "warn", Format: "logfmt"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Info("dropped")
				logger.Warn("kept")

				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
				assert.Equal(t, "WARN", entry["level"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(tt.config, &buf)
			require.NotNil(t, logger)
			tt.checkFunc(t, logger, &buf)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
