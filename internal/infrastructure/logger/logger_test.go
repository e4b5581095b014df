package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.NotEmpty(t, cfg.TimeFormat)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "default config", cfg: DefaultConfig()},
		{name: "json to stdout", cfg: &Config{Level: "debug", Format: "json", Output: "stdout"}},
		{name: "console without time format", cfg: &Config{Level: "warn", Format: "console", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bloomctl.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("pre-start finished")
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"pre-start finished"`)
}

func TestNew_UnwritableFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "bloomctl.log")

	_, err := New(&Config{Output: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestForEnvironment(t *testing.T) {
	t.Run("local uses console", func(t *testing.T) {
		cfg := ForEnvironment("local", "debug", "", "")
		assert.Equal(t, "console", cfg.Format)
		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "stderr", cfg.Output)
	})

	t.Run("production defaults to json", func(t *testing.T) {
		cfg := ForEnvironment("production", "", "", "stdout")
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "stdout", cfg.Output)
	})

	t.Run("explicit format wins", func(t *testing.T) {
		cfg := ForEnvironment("production", "", "console", "")
		assert.Equal(t, "console", cfg.Format)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"TRACE", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"critical", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestCreateWriter(t *testing.T) {
	for _, output := range []string{"", "stdout", "STDERR"} {
		t.Run(output, func(t *testing.T) {
			writer, err := createWriter(output)
			require.NoError(t, err)
			assert.NotNil(t, writer)
		})
	}
}

func TestCreateEncoder(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			enc := createEncoder(&Config{Format: format})
			assert.NotNil(t, enc)
		})
	}
}
