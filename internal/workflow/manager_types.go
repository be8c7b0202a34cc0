package workflow

import (
	"context"
	"encoding/json"

	"overlaystudio/internal/ingest"
	"overlaystudio/internal/intel"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/render"
)

// TaskType names the work a queue entry asks for.
type TaskType string

const (
	TaskAnalyze TaskType = "analyze"
	TaskRender  TaskType = "render"
)

// Task is a queue entry. The queue carries ids only; the job record is read
// from the store when the task runs.
type Task struct {
	JobID string
	Type  TaskType
}

// Ingester brings a job's source video to local disk.
type Ingester interface {
	Fetch(ctx context.Context, jobID string, input jobs.Input) (ingest.Media, error)
}

// Prober reads video geometry. It never fails; defaults come back with a
// warning code instead.
type Prober interface {
	Probe(ctx context.Context, path string) (jobs.VideoInfo, []string)
}

// Transcriber turns speech into timed words. It never fails; a synthetic
// transcript comes back with a warning code instead.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath, brief string, durationSec float64) (jobs.Transcript, []string)
}

// Planner produces insights, overlay plans, refinements and scene candidates.
// Each call returns the fallback warning codes it incurred.
type Planner interface {
	Insights(ctx context.Context, m intel.Material) ([]jobs.Insight, []string)
	PlanOverlays(ctx context.Context, m intel.Material) ([]overlay.Event, []string)
	Refine(ctx context.Context, m intel.Material, current []overlay.Event, instruction string) ([]overlay.Event, []string)
	PlanScenes(ctx context.Context, m intel.Material) (json.RawMessage, []string)
}

// Services bundles the collaborators the manager orchestrates.
type Services struct {
	Ingester    Ingester
	Prober      Prober
	Transcriber Transcriber
	Planner     Planner
	Compositor  render.Compositor
}

