package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/video-merger/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.MergeService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.MergeService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, validator: validator.New(), logger: logger}
}

// errMissingRequiredFields is the fixed message returned for any
// CreateMergeRequest validation failure, regardless of which subset of
// fields was missing or empty (spec §6, scenario 7).
const errMissingRequiredFields = "Missing required fields: bucket, chunkPrefix, outputKey"

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "video-merger"})
}

// CreateMerge handles POST /api/merge requests.
func (h *Handlers) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req CreateMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		writeError(w, http.StatusBadRequest, errMissingRequiredFields)
		return
	}

	createdJob, err := h.service.CreateJob(r.Context(), req.Bucket, req.ChunkPrefix, req.OutputKey)
	if err != nil {
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	// The merge pipeline runs on a detached goroutine so submission returns
	// immediately; the request context is not carried over since it ends
	// with the HTTP response.
	go func(jobID string) {
		if err := h.service.ProcessJob(context.WithoutCancel(context.Background()), jobID); err != nil {
			h.logger.Error("background merge failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}(createdJob.ID)

	h.logger.Info("merge job created", slog.String("job_id", createdJob.ID))

	writeJSON(w, http.StatusAccepted, CreateMergeResponse{
		JobID:     createdJob.ID,
		Message:   "Merge job started",
		StatusURL: "/api/merge/" + createdJob.ID,
	})
}

// ListMerges handles GET /api/merge requests.
func (h *Handlers) ListMerges(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	views := make([]JobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j)
	}

	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: views})
}

// GetMerge handles GET /api/merge/{jobId} requests.
func (h *Handlers) GetMerge(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error("failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{Job: toJobView(foundJob)})
}

func toJobView(j *job.Job) JobView {
	return JobView{
		ID:          j.ID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		Message:     j.Message,
		Bucket:      j.Bucket,
		ChunkPrefix: j.ChunkPrefix,
		OutputKey:   j.OutputKey,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
