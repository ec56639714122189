// Package job provides the Job aggregate for tracking a chunk-merge
// request from submission through its final output, as well as the
// repository interface used to persist it.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/video-merger/internal/job/id"
)

// Status represents the current state of a merge Job.
type Status string

const (
	// StatusQueued indicates the job has been accepted but not started.
	StatusQueued Status = "queued"
	// StatusDownloading indicates chunks are being pulled from the object store.
	StatusDownloading Status = "downloading"
	// StatusAnalyzing indicates chunks are being probed and the timeline built.
	StatusAnalyzing Status = "analyzing"
	// StatusMerging indicates segments are being normalized and concatenated.
	StatusMerging Status = "merging"
	// StatusUploading indicates the merged output is being uploaded.
	StatusUploading Status = "uploading"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job encountered an unrecoverable error.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:      {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:   {StatusMerging, StatusFailed},
	StatusMerging:     {StatusUploading, StatusFailed},
	StatusUploading:   {StatusCompleted, StatusFailed},
	StatusCompleted:   {},
	StatusFailed:      {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents a single "reconstruct a continuous recording" request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Message is a short human-readable description of the current step.
	Message string
	// Bucket is the object-store bucket holding the source chunks.
	Bucket string
	// ChunkPrefix is the key prefix under which chunks are listed.
	ChunkPrefix string
	// OutputKey is the destination key for the merged output.
	OutputKey string
	// Error contains the failure message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial queued status.
func New(bucket, chunkPrefix, outputKey string) *Job {
	now := time.Now()
	return &Job{
		ID:          id.Generate(),
		Status:      StatusQueued,
		Bucket:      bucket,
		ChunkPrefix: chunkPrefix,
		OutputKey:   outputKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusDownloading:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Fail transitions the job to failed with an error message, freezing
// progress at its current value and setting the standard failure message.
// Calling Fail from a terminal state is a no-op: the first failure or
// completion wins.
func (j *Job) Fail(errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, StatusFailed) {
		return
	}

	j.Error = errMsg
	j.Message = "Merge failed"
	j.Status = StatusFailed
	j.UpdatedAt = time.Now()
	j.CompletedAt = j.UpdatedAt
}

// UpdateProgress sets the progress percentage (0-100) and status message.
func (j *Job) UpdateProgress(progress int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.Message = message
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads. Every caller that
// reads job state outside the owning goroutine must go through Clone so it
// always observes a fully-written snapshot.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		Message:     j.Message,
		Bucket:      j.Bucket,
		ChunkPrefix: j.ChunkPrefix,
		OutputKey:   j.OutputKey,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
