package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"Info", INFO},
		{"WARN", WARN},
		{"WARNING", WARN},
		{"error", ERROR},
		{" ERROR ", ERROR},
		{"", WARN},
		{"verbose", WARN},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	logger, err := NewLogger(Config{Level: INFO, OutputFile: path})
	require.NoError(t, err)

	logger.Slog().Info("pipeline started", "pipeline", "User")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline started")
	assert.Contains(t, string(data), "pipeline=User")
}

func TestNewLoggerLevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewLogger(Config{Level: WARN, OutputFile: path})
	require.NoError(t, err)

	logger.Slog().Debug("resolution miss")
	logger.Slog().Warn("request slow")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "resolution miss")
	assert.Contains(t, string(data), "request slow")
}

func TestWithKeepsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewLogger(Config{Level: DEBUG, OutputFile: path})
	require.NoError(t, err)

	scoped := logger.With("component", "orchestrator")
	scoped.Slog().Info("batch completed")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=orchestrator")
}

func TestDefaultConfigReadsEnvironment(t *testing.T) {
	t.Setenv("LOGLEVEL", "debug")
	assert.Equal(t, DEBUG, DefaultConfig().Level)

	t.Setenv("LOGLEVEL", "")
	assert.Equal(t, WARN, DefaultConfig().Level)
}
