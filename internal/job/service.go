// Package job provides the MergeService use case for orchestrating
// reconstruction of a continuous recording from object-store chunks.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/maauso/video-merger/internal/probe"
	"github.com/maauso/video-merger/internal/timeline"
	"github.com/maauso/video-merger/internal/timestamp"
)

// ErrEmptyPrefix is returned when a chunk prefix yields no recognized
// video objects.
var ErrEmptyPrefix = errors.New("job: no chunks found under prefix")

// ObjectStore is the subset of object-store operations the merge pipeline
// needs. Satisfied by *objectstore.Client.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Download(ctx context.Context, bucket, key, destPath string) error
	Upload(ctx context.Context, bucket, key, srcPath, contentType string) error
}

// Prober is the subset of media-probe operations the merge pipeline needs.
// Satisfied by *probe.Prober.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
	Profile(ctx context.Context, path string) (probe.Profile, error)
}

// Materializer is the subset of segment-materialization operations the
// merge pipeline needs. Satisfied by *materialize.Materializer.
type Materializer interface {
	NormalizeChunk(ctx context.Context, src, dst string, p probe.Profile) error
	SynthesizeGap(ctx context.Context, dst string, durationSeconds float64, p probe.Profile) error
}

// ConcatEngine drives the final stream-copy concatenation. Satisfied by
// *concat.Engine.
type ConcatEngine interface {
	Concat(ctx context.Context, inputs []string, manifestPath, output string) error
}

// MergeService orchestrates the chunk-merge workflow: list, order, download,
// probe, build timeline, materialize, concat, upload.
type MergeService struct {
	repo         Repository
	store        ObjectStore
	prober       Prober
	materializer Materializer
	concatEngine ConcatEngine
	logger       *slog.Logger

	tempRoot     string
	timelineOpts timeline.Options
}

// ServiceOption configures a MergeService.
type ServiceOption func(*MergeService)

// WithTempRoot overrides the temp-directory root under which per-job
// working directories are created.
func WithTempRoot(path string) ServiceOption {
	return func(s *MergeService) {
		if path != "" {
			s.tempRoot = path
		}
	}
}

// WithTimelineOptions overrides the gap threshold and duration budget used
// to build the timeline.
func WithTimelineOptions(opts timeline.Options) ServiceOption {
	return func(s *MergeService) {
		s.timelineOpts = opts
	}
}

// NewMergeService creates a new MergeService with all dependencies.
func NewMergeService(
	repo Repository,
	store ObjectStore,
	prober Prober,
	materializer Materializer,
	concatEngine ConcatEngine,
	logger *slog.Logger,
	opts ...ServiceOption,
) *MergeService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MergeService{
		repo:         repo,
		store:        store,
		prober:       prober,
		materializer: materializer,
		concatEngine: concatEngine,
		logger:       logger,
		tempRoot:     "/tmp/video-merger",
		timelineOpts: timeline.Options{
			GapThresholdSeconds: timeline.DefaultGapThresholdSeconds,
			BudgetSeconds:       timeline.DefaultBudgetSeconds,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a new job in queued state and persists it. Processing
// is not started: callers schedule ProcessJob separately (typically on a
// detached goroutine) so the HTTP layer never blocks on merge work.
func (s *MergeService) CreateJob(ctx context.Context, bucket, chunkPrefix, outputKey string) (*Job, error) {
	j := New(bucket, chunkPrefix, outputKey)

	s.logger.Info("creating merge job",
		slog.String("job_id", j.ID),
		slog.String("bucket", bucket),
		slog.String("chunk_prefix", chunkPrefix),
		slog.String("output_key", outputKey),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *MergeService) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	return j, nil
}

// ListJobs returns every job, most recently created first.
func (s *MergeService) ListJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// chunkRecord pairs a discovered object key with its recovered capture
// instant, probed duration, and local filesystem paths through the
// pipeline.
type chunkRecord struct {
	key              string
	captureInstantMS int64
	downloadPath     string
	durationSeconds  float64
}

// ProcessJob runs the merge pipeline for an already-created job end to end,
// updating progress as it goes and guaranteeing the job's temp directory is
// removed on every exit path.
func (s *MergeService) ProcessJob(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("find job: %w", err)
	}

	jobDir := filepath.Join(s.tempRoot, j.ID)
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			s.logger.Warn("failed to remove job temp directory",
				slog.String("job_id", j.ID),
				slog.String("path", jobDir),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := s.runPipeline(ctx, j, jobDir); err != nil {
		s.failJob(ctx, j, err)
		return err
	}

	return nil
}

func (s *MergeService) runPipeline(ctx context.Context, j *Job, jobDir string) error {
	if err := s.transition(ctx, j, StatusDownloading, 0, "listing chunks"); err != nil {
		return err
	}

	keys, err := s.store.List(ctx, j.Bucket, j.ChunkPrefix)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyPrefix, j.ChunkPrefix)
	}

	records := make([]chunkRecord, len(keys))
	for i, key := range keys {
		instant, err := timestamp.Parse(key)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		records[i] = chunkRecord{key: key, captureInstantMS: instant}
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].captureInstantMS < records[b].captureInstantMS
	})

	s.updateProgress(ctx, j, 10, "chunks listed")

	chunksDir := filepath.Join(jobDir, "chunks")
	if err := os.MkdirAll(chunksDir, 0o750); err != nil {
		return fmt.Errorf("create chunks dir: %w", err)
	}

	n := len(records)
	for i := range records {
		ext := filepath.Ext(records[i].key)
		dest := filepath.Join(chunksDir, fmt.Sprintf("%04d%s", i, ext))
		if err := s.store.Download(ctx, j.Bucket, records[i].key, dest); err != nil {
			return fmt.Errorf("download %q: %w", records[i].key, err)
		}
		records[i].downloadPath = dest
		s.updateProgress(ctx, j, 10+round(float64(i+1)/float64(n)*30), "downloading chunks")
	}

	if err := s.transition(ctx, j, StatusAnalyzing, 40, "probing chunks"); err != nil {
		return err
	}

	profile, err := s.prober.Profile(ctx, records[0].downloadPath)
	if err != nil {
		return fmt.Errorf("probe reference profile: %w", err)
	}

	for i := range records {
		d, err := s.prober.Duration(ctx, records[i].downloadPath)
		if err != nil {
			return fmt.Errorf("probe duration %q: %w", records[i].downloadPath, err)
		}
		records[i].durationSeconds = d
		s.updateProgress(ctx, j, 40+round(float64(i+1)/float64(n)*15), "probing chunks")
	}
	s.updateProgress(ctx, j, 55, "timeline analysis complete")

	if err := s.transition(ctx, j, StatusMerging, 55, "building timeline"); err != nil {
		return err
	}

	chunks := make([]timeline.Chunk, len(records))
	for i, r := range records {
		chunks[i] = timeline.Chunk{
			CaptureInstantMS: r.captureInstantMS,
			DurationSeconds:  r.durationSeconds,
			Key:              r.key,
		}
	}
	segments := timeline.Build(chunks, s.timelineOpts)
	s.updateProgress(ctx, j, 60, "timeline built")

	normalizedDir := filepath.Join(jobDir, "normalized")
	gapsDir := filepath.Join(jobDir, "gaps")
	if err := os.MkdirAll(normalizedDir, 0o750); err != nil {
		return fmt.Errorf("create normalized dir: %w", err)
	}
	if err := os.MkdirAll(gapsDir, 0o750); err != nil {
		return fmt.Errorf("create gaps dir: %w", err)
	}

	s.updateProgress(ctx, j, 65, "materializing segments")

	materialized := make([]string, len(segments))
	chunkSeq, gapSeq := 0, 0
	for i, seg := range segments {
		switch seg.Kind {
		case timeline.KindChunk:
			dst := filepath.Join(normalizedDir, fmt.Sprintf("chunk_%04d.mp4", chunkSeq))
			if err := s.materializer.NormalizeChunk(ctx, records[seg.ChunkIndex].downloadPath, dst, profile); err != nil {
				return fmt.Errorf("normalize chunk %q: %w", records[seg.ChunkIndex].key, err)
			}
			materialized[i] = dst
			chunkSeq++
		case timeline.KindGap:
			dst := filepath.Join(gapsDir, fmt.Sprintf("gap_%04d.mp4", gapSeq))
			if err := s.materializer.SynthesizeGap(ctx, dst, seg.DurationSeconds, profile); err != nil {
				return fmt.Errorf("synthesize gap at %.3fs: %w", seg.StartSecond, err)
			}
			materialized[i] = dst
			gapSeq++
		}
		progress := 65 + round(float64(i+1)/float64(len(segments))*25)
		if progress > 90 {
			progress = 90
		}
		s.updateProgress(ctx, j, progress, "materializing segments")
	}

	manifestPath := filepath.Join(jobDir, "concat_list.txt")
	outputPath := filepath.Join(jobDir, "merged_output.mp4")
	if err := s.concatEngine.Concat(ctx, materialized, manifestPath, outputPath); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}

	if err := s.transition(ctx, j, StatusUploading, 90, "uploading merged output"); err != nil {
		return err
	}

	if err := s.store.Upload(ctx, j.Bucket, j.OutputKey, outputPath, "video/mp4"); err != nil {
		return fmt.Errorf("upload output: %w", err)
	}

	if err := s.transition(ctx, j, StatusCompleted, 100, "merge completed"); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("merge job completed",
		slog.String("job_id", j.ID),
		slog.String("output_key", j.OutputKey),
	)

	return nil
}

// transition advances the job's status, records progress/message, and
// persists the change.
func (s *MergeService) transition(ctx context.Context, j *Job, status Status, progress int, message string) error {
	if err := j.TransitionTo(status); err != nil {
		return fmt.Errorf("transition to %s: %w", status, err)
	}
	j.UpdateProgress(progress, message)
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// updateProgress records progress/message without a status transition and
// persists the change. Save errors are logged, not fatal: progress
// reporting is best-effort and must never abort an otherwise-healthy merge.
func (s *MergeService) updateProgress(ctx context.Context, j *Job, progress int, message string) {
	j.UpdateProgress(progress, message)
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Warn("failed to save job progress",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// failJob marks the job as failed, freezing progress at its last value and
// setting the standard failure message, then persists it.
func (s *MergeService) failJob(ctx context.Context, j *Job, cause error) {
	s.logger.Error("merge job failed",
		slog.String("job_id", j.ID),
		slog.String("error", cause.Error()),
	)
	j.Fail(cause.Error())
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save failed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// round rounds a float64 to the nearest int, matching the spec's
// round(i/N · pct) progress-anchor arithmetic.
func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
