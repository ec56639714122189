// Package bootstrap provides dependency initialization for the video-merger API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/maauso/video-merger/internal/concat"
	"github.com/maauso/video-merger/internal/config"
	"github.com/maauso/video-merger/internal/job"
	"github.com/maauso/video-merger/internal/materialize"
	"github.com/maauso/video-merger/internal/objectstore"
	"github.com/maauso/video-merger/internal/probe"
	"github.com/maauso/video-merger/internal/timeline"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	MergeService *job.MergeService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := objectstore.New(ctx, objectstore.Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	logger.Info("object store client initialized",
		slog.String("region", cfg.S3Region),
		slog.Bool("custom_endpoint", cfg.S3Endpoint != ""),
	)

	prober := probe.New(cfg.FFprobePath)
	if ffprobePath, lookErr := exec.LookPath("ffprobe"); lookErr != nil {
		logger.Warn("ffprobe not found in PATH; probing may fail")
	} else {
		logger.Info("prober initialized", slog.String("ffprobe_path", ffprobePath))
	}

	materializer := materialize.New(cfg.FFmpegPath)
	concatEngine := concat.New(cfg.FFmpegPath)
	if ffmpegPath, lookErr := exec.LookPath("ffmpeg"); lookErr != nil {
		logger.Warn("ffmpeg not found in PATH; materialization may fail")
	} else {
		logger.Info("materializer and concat engine initialized", slog.String("ffmpeg_path", ffmpegPath))
	}

	repo := job.NewMemoryRepository()

	timelineOpts := timeline.Options{
		GapThresholdSeconds: cfg.GapThresholdSeconds,
		BudgetSeconds:       float64(cfg.DurationBudgetMinutes) * 60,
	}

	svc := job.NewMergeService(
		repo,
		store,
		prober,
		materializer,
		concatEngine,
		logger,
		job.WithTempRoot(cfg.TempDir),
		job.WithTimelineOptions(timelineOpts),
	)

	return &Dependencies{
		MergeService: svc,
	}, nil
}
