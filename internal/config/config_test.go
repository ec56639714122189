package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv() {
	for _, key := range []string{
		"PORT", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "FFMPEG_PATH", "FFPROBE_PATH", "TEMP_DIR",
		"DURATION_BUDGET_MINUTES", "GAP_THRESHOLD_SECONDS", "LOG_FORMAT",
		"LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/video-merger", cfg.TempDir)
	assert.Equal(t, 60, cfg.DurationBudgetMinutes)
	assert.InDelta(t, 0.5, cfg.GapThresholdSeconds, 0.001)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	t.Setenv("PORT", "3000")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "https://minio.internal:9000")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("FFMPEG_PATH", "/usr/local/bin/ffmpeg")
	t.Setenv("FFPROBE_PATH", "/usr/local/bin/ffprobe")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("DURATION_BUDGET_MINUTES", "90")
	t.Setenv("GAP_THRESHOLD_SECONDS", "1.5")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "https://minio.internal:9000", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, 90, cfg.DurationBudgetMinutes)
	assert.InDelta(t, 1.5, cfg.GapThresholdSeconds, 0.001)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidIntegerValue(t *testing.T) {
	clearEnv()
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		region   string
		expected bool
	}{
		{"region set", "us-east-1", true},
		{"region empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{S3Region: tt.region}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:                  8080,
		S3Region:              "us-east-1",
		TempDir:               "/tmp/test",
		DurationBudgetMinutes: 60,
		GapThresholdSeconds:   0.5,
		AWSAccessKeyID:        "secret-key-id",
		AWSSecretAccessKey:    "secret-access-key",
		LogFormat:             "json",
		LogLevel:              "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "us-east-1")
	assert.Contains(t, str, "/tmp/test")

	assert.NotContains(t, str, "secret-key-id")
	assert.NotContains(t, str, "secret-access-key")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
