// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Object-store settings. Credentials are optional; when unset the
	// ambient AWS credential chain is used.
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// ffmpeg/ffprobe binary paths. Empty means "look up on PATH".
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// TempDir is the scratch directory used to stage chunks, normalized
	// segments, and the final output for each job.
	TempDir string `env:"TEMP_DIR, default=/tmp/video-merger" json:"temp_dir"`

	// DurationBudgetMinutes caps how long a reconstructed timeline may be,
	// in minutes. Chunks beyond the budget are dropped.
	DurationBudgetMinutes int `env:"DURATION_BUDGET_MINUTES, default=60" json:"duration_budget_minutes"`

	// GapThresholdSeconds is the minimum silent gap between chunks that
	// gets synthesized filler instead of being treated as clock skew.
	GapThresholdSeconds float64 `env:"GAP_THRESHOLD_SECONDS, default=0.5" json:"gap_threshold_seconds"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if object-store region configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, S3Region: %s, TempDir: %s, DurationBudgetMinutes: %d, GapThresholdSeconds: %.2f, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.S3Region,
		c.TempDir,
		c.DurationBudgetMinutes,
		c.GapThresholdSeconds,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
