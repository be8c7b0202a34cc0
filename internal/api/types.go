package api

import (
	"time"

	"overlaystudio/internal/deps"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/workflow"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status     string `json:"status"`
	Running    bool   `json:"running"`
	QueueDepth int    `json:"queueDepth"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool                   `json:"running"`
	PID          int                    `json:"pid"`
	DatabasePath string                 `json:"databasePath"`
	LockFilePath string                 `json:"lockFilePath"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	Dependencies []deps.Status          `json:"dependencies"`
}

// CreateJobRequest submits a remote source. youtubeUrl and blobUrl are
// accepted as aliases of sourceUrl.
type CreateJobRequest struct {
	SourceURL  string `json:"sourceUrl,omitempty"`
	YouTubeURL string `json:"youtubeUrl,omitempty"`
	BlobURL    string `json:"blobUrl,omitempty"`
	Brief      string `json:"brief,omitempty"`
}

// RefineRequest asks for one overlay to be rewritten.
type RefineRequest struct {
	Instruction string `json:"instruction,omitempty"`
	TargetIndex *int   `json:"targetIndex,omitempty"`
}

// OverridesRequest carries visual editor changes.
type OverridesRequest struct {
	Overrides []overlay.Override `json:"overrides,omitempty"`
}

// AdvanceRequest records a reviewer decision.
type AdvanceRequest struct {
	Action string `json:"action,omitempty"`
}

// JobSummary is the compact list representation of a job.
type JobSummary struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Stage       string    `json:"stage"`
	Progress    int       `json:"progress"`
	Source      string    `json:"source"`
	Overlays    int       `json:"overlays"`
	Scenes      int       `json:"scenes"`
	Warnings    int       `json:"warnings"`
	Error       string    `json:"error,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// JobListResponse wraps a collection of jobs, newest first.
type JobListResponse struct {
	Items []JobSummary `json:"items"`
}

// FromJob converts a job into its list representation.
func FromJob(job *jobs.Job) JobSummary {
	summary := JobSummary{
		ID:        job.ID,
		Status:    string(job.Status),
		Stage:     string(job.Stage),
		Progress:  job.Progress,
		Source:    SourceLabel(job.Input),
		Overlays:  len(job.OverlayPlan),
		Scenes:    len(job.ScenePlan),
		Warnings:  len(job.Warnings),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Output != nil {
		summary.DownloadURL = job.Output.DownloadURL
	}
	return summary
}

// SourceLabel describes where a job's video came from.
func SourceLabel(input jobs.Input) string {
	switch {
	case input.Kind == jobs.SourceUpload && input.OriginalName != "":
		return input.OriginalName
	case input.SourceURL != "":
		return input.SourceURL
	case input.Path != "":
		return input.Path
	}
	return string(input.Kind)
}
