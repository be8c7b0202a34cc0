package jobs

import (
	"errors"
	"fmt"
	"math"
)

// Status is the coarse lifecycle phase of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusAnalyzing Status = "analyzing"
	StatusReview    Status = "review"
	StatusRendering Status = "rendering"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage is the fine-grained step label shown alongside the status. A failed
// job keeps the stage of the step that failed.
type Stage string

const (
	StageAnalyzeQueued     Stage = "analyze-queued"
	StageInputDownload     Stage = "input-download"
	StageVideoMetadata     Stage = "video-metadata"
	StageTranscription     Stage = "transcription"
	StageInsightExtraction Stage = "insight-extraction"
	StagePlanningOverlays  Stage = "planning-overlays"
	StagePlanningScenes    Stage = "planning-scenes"
	StageReviewReady       Stage = "review-ready"
	StageRefining          Stage = "refining-overlays"
	StageApplyingOverrides Stage = "applying-overrides"
	StageRenderQueued      Stage = "render-queued"
	StageRendering         Stage = "rendering"
	StageRenderFailed      Stage = "render-failed"
	StageCompleted         Stage = "completed"
)

// DaemonStopReason is recorded on renders interrupted by a daemon restart.
const DaemonStopReason = "render interrupted by daemon shutdown"

var transitions = map[Status][]Status{
	StatusQueued:    {StatusQueued, StatusAnalyzing, StatusRendering},
	StatusAnalyzing: {StatusAnalyzing, StatusReview, StatusFailed},
	StatusReview:    {StatusReview, StatusQueued},
	StatusRendering: {StatusRendering, StatusCompleted, StatusReview},
}

var stageProgress = map[Stage]int{
	StageAnalyzeQueued:     0,
	StageInputDownload:     6,
	StageVideoMetadata:     10,
	StageTranscription:     32,
	StageInsightExtraction: 58,
	StagePlanningOverlays:  72,
	StagePlanningScenes:    88,
	StageReviewReady:       100,
	StageRenderQueued:      0,
	StageRendering:         10,
	StageCompleted:         100,
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StageProgress returns the progress hint attached to stage.
func StageProgress(stage Stage) (int, bool) {
	value, ok := stageProgress[stage]
	return value, ok
}

// RenderProgress maps a compositor fraction in [0,1] onto the job progress
// scale. ok is false for non-finite input.
func RenderProgress(fraction float64) (int, bool) {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return 0, false
	}
	return min(95, 10+int(math.Round(fraction*85))), true
}

// Transition moves job to status/stage, raising progress to the stage's table
// value. Progress is never lowered here.
func Transition(job *Job, to Status, stage Stage) error {
	if !CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s (stage %s)", ErrIllegalTransition, job.Status, to, job.Stage)
	}
	job.Status = to
	job.Stage = stage
	if value, ok := stageProgress[stage]; ok && value > job.Progress {
		job.Progress = value
	}
	return nil
}

// QueueAnalysis parks a job for the analyze task.
func QueueAnalysis(job *Job) error {
	if job.Status != StatusQueued {
		return fmt.Errorf("%w: cannot queue analysis from %s", ErrIllegalTransition, job.Status)
	}
	job.Stage = StageAnalyzeQueued
	job.Progress = 0
	job.Error = ""
	return nil
}

// BeginAnalysis moves a queued job into analysis. Stale queue entries fail
// with ErrIllegalTransition.
func BeginAnalysis(job *Job) error {
	if job.Status != StatusQueued || job.Stage != StageAnalyzeQueued {
		return fmt.Errorf("%w: analysis not queued (status %s, stage %s)", ErrIllegalTransition, job.Status, job.Stage)
	}
	if err := Transition(job, StatusAnalyzing, StageVideoMetadata); err != nil {
		return err
	}
	job.Error = ""
	job.Output = nil
	return nil
}

// CompleteAnalysis parks an analyzed job in review.
func CompleteAnalysis(job *Job) error {
	if err := Transition(job, StatusReview, StageReviewReady); err != nil {
		return err
	}
	review := NewReviewState(job.OverlayPlan)
	job.ReviewState = &review
	job.Progress = 100
	job.Error = ""
	return nil
}

// CheckRefinable reports whether refine or override edits may run now.
func CheckRefinable(job *Job) error {
	if job.Stage == StageRenderQueued || job.Status == StatusRendering {
		return ErrRenderOutstanding
	}
	if job.Editing() {
		return ErrEditInProgress
	}
	if !job.Analyzed() || job.Status != StatusReview {
		return ErrNotAnalyzed
	}
	return nil
}

// CheckRenderable reports whether a render may be queued now.
func CheckRenderable(job *Job) error {
	if job.Stage == StageRenderQueued || job.Status == StatusRendering {
		return ErrRenderOutstanding
	}
	if job.Editing() {
		return ErrEditInProgress
	}
	if !job.Analyzed() || job.Status != StatusReview {
		return ErrNotAnalyzed
	}
	if len(job.OverlayPlan) == 0 && len(job.ScenePlan) == 0 {
		return ErrNothingToRender
	}
	return nil
}

// Editing reports whether a refine or visual override edit holds the job.
func (j *Job) Editing() bool {
	return j.Status == StatusReview && (j.Stage == StageRefining || j.Stage == StageApplyingOverrides)
}

// FinishEdit returns a job held by the edit at stage to review-ready. Any
// other state means the edit lost the job and ErrIllegalTransition is returned.
func FinishEdit(job *Job, stage Stage) error {
	if job.Status != StatusReview || job.Stage != stage {
		return fmt.Errorf("%w: edit %s no longer holds the job (status %s, stage %s)", ErrIllegalTransition, stage, job.Status, job.Stage)
	}
	return Transition(job, StatusReview, StageReviewReady)
}

// QueueRender applies the render guard and parks the job for the render task.
func QueueRender(job *Job) error {
	if err := CheckRenderable(job); err != nil {
		return err
	}
	if err := Transition(job, StatusQueued, StageRenderQueued); err != nil {
		return err
	}
	job.Progress = 0
	job.Error = ""
	return nil
}

// BeginRender moves a render-queued job into rendering.
func BeginRender(job *Job) error {
	if job.Status != StatusQueued || job.Stage != StageRenderQueued {
		return fmt.Errorf("%w: render not queued (status %s, stage %s)", ErrIllegalTransition, job.Status, job.Stage)
	}
	if err := Transition(job, StatusRendering, StageRendering); err != nil {
		return err
	}
	job.Error = ""
	return nil
}

// CompleteRender records the output and finishes the job.
func CompleteRender(job *Job, output Output) error {
	if err := Transition(job, StatusCompleted, StageCompleted); err != nil {
		return err
	}
	job.Output = &output
	job.Progress = 100
	return nil
}

// MarkFailed records a terminal analysis failure. The stage stays at the step
// that failed and progress is forced to 100.
func (j *Job) MarkFailed(stage Stage, err error) {
	j.Status = StatusFailed
	if stage != "" {
		j.Stage = stage
	}
	j.Progress = 100
	j.Error = errorMessage(err)
}

// MarkRenderFailed returns a rendering job to review. Plans are untouched so
// the user can adjust them and retry.
func (j *Job) MarkRenderFailed(err error) {
	j.Status = StatusReview
	j.Stage = StageRenderFailed
	j.Error = errorMessage(err)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// RecoverInterrupted repairs a job left mid-task by a daemon restart and
// reports the task to re-enqueue, if any. Interrupted analyses restart from
// analyze-queued; interrupted or still queued renders return to review with
// DaemonStopReason so the user decides whether to render again.
func RecoverInterrupted(job *Job) (requeue bool) {
	switch {
	case job.Status == StatusAnalyzing:
		job.Status = StatusQueued
		job.Stage = StageAnalyzeQueued
		job.Progress = 0
		job.Error = ""
		return true
	case job.Status == StatusQueued && job.Stage == StageAnalyzeQueued:
		return true
	case job.Status == StatusRendering, job.Status == StatusQueued && job.Stage == StageRenderQueued:
		job.MarkRenderFailed(errors.New(DaemonStopReason))
		return false
	case job.Status == StatusReview && (job.Stage == StageRefining || job.Stage == StageApplyingOverrides):
		job.Stage = StageReviewReady
		return false
	}
	return false
}
