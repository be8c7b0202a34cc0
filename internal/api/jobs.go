package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"overlaystudio/internal/ingest"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

type jobPath struct {
	ID string `path:"id" doc:"Job id"`
}

type jobOutput struct {
	Body *jobs.Job `json:"body"`
}

var jobErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusServiceUnavailable,
	http.StatusInternalServerError,
}

func (s *server) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		status := s.manager.Status()
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok", Running: status.Running, QueueDepth: status.QueueDepth}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "daemon-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Daemon status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DaemonStatus `json:"body"`
	}, error) {
		status := DaemonStatus{Running: true, PID: os.Getpid(), DatabasePath: s.settings.DatabasePath(), LockFilePath: s.settings.LockPath()}
		if s.status != nil {
			status = s.status(ctx)
		}
		status.Workflow = s.manager.Status()
		return &struct {
			Body DaemonStatus `json:"body"`
		}{Body: status}, nil
	})
}

func (s *server) registerJobs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Submit a remote video",
		DefaultStatus: http.StatusCreated,
		Errors:        jobErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest `json:"body"`
	}) (*jobOutput, error) {
		source := firstNonEmpty(input.Body.SourceURL, input.Body.YouTubeURL, input.Body.BlobURL)
		kind, err := ingest.ClassifySource(source, ingest.SourcePolicy{
			BlobHostSuffixes: s.settings.Ingest.BlobHostSuffixes,
			ObjectStorage:    s.settings.Storage.Enabled,
		})
		if err != nil {
			return nil, handleError(err)
		}
		job, err := s.submit(ctx, jobs.Input{Kind: kind, SourceURL: strings.TrimSpace(source)}, input.Body.Brief)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body JobListResponse `json:"body"`
	}, error) {
		all := s.manager.Store().List()
		items := make([]JobSummary, 0, len(all))
		for _, job := range all {
			items = append(items, FromJob(job))
		}
		return &struct {
			Body JobListResponse `json:"body"`
		}{Body: JobListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *jobPath) (*jobOutput, error) {
		job, err := s.manager.Store().Get(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refine-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/refine",
		Summary:     "Rewrite one overlay from an instruction",
		Errors:      jobErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body RefineRequest `json:"body"`
	}) (*jobOutput, error) {
		job, err := s.manager.Refine(ctx, input.ID, input.Body.Instruction, input.Body.TargetIndex)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-visual-overrides",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/visual-overrides",
		Summary:     "Apply visual editor changes",
		Errors:      jobErrors,
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body OverridesRequest `json:"body"`
	}) (*jobOutput, error) {
		job, err := s.manager.ApplyOverrides(ctx, input.ID, input.Body.Overrides)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-review",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/review/advance",
		Summary:     "Approve, reject or skip the overlay under the review cursor",
		Errors:      jobErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body AdvanceRequest `json:"body"`
	}) (*jobOutput, error) {
		action, err := jobs.ParseReviewAction(input.Body.Action)
		if err != nil {
			return nil, handleError(err)
		}
		job, err := s.manager.AdvanceReview(ctx, input.ID, action)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "render-job",
		Method:        http.MethodPost,
		Path:          "/jobs/{id}/render",
		Summary:       "Queue the final render",
		DefaultStatus: http.StatusAccepted,
		Errors:        jobErrors,
	}, func(ctx context.Context, input *jobPath) (*jobOutput, error) {
		job, err := s.manager.EnqueueRender(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobOutput{Body: job}, nil
	})
}

// submit creates the job and queues its analysis.
func (s *server) submit(ctx context.Context, input jobs.Input, brief string) (*jobs.Job, error) {
	job, err := s.manager.Store().Create(ctx, input, strings.TrimSpace(brief))
	if err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, job.ID)
	queued, err := s.manager.EnqueueAnalysis(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("source_kind", string(input.Kind)),
		logging.String("source", SourceLabel(input)),
	)
	return queued, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
