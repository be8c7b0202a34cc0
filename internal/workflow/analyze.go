package workflow

import (
	"context"
	"log/slog"
	"time"

	"overlaystudio/internal/intel"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/services"
)

// DroppedWarningPrefix prefixes the warning recorded for each overlay the
// normalizer had to drop.
const DroppedWarningPrefix = "overlay-dropped:"

func (m *Manager) analyze(ctx context.Context, logger *slog.Logger, id string) error {
	job, err := m.begin(ctx, id, jobs.BeginAnalysis)
	if err != nil {
		return err
	}

	stage := jobs.StageInputDownload
	if err := m.runAnalysis(ctx, logger, job, &stage); err != nil {
		m.handleTaskFailure(withStage(ctx, stage), logger, TaskAnalyze, stage, id, err)
		return err
	}
	return nil
}

// runAnalysis executes the analysis steps in order, keeping *stage at the step
// in progress so a failure can be attributed to it.
func (m *Manager) runAnalysis(ctx context.Context, logger *slog.Logger, job *jobs.Job, stage *jobs.Stage) error {
	id := job.ID
	step := func(next jobs.Stage) error {
		*stage = next
		updated, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
			return jobs.Transition(j, jobs.StatusAnalyzing, next)
		})
		if err != nil {
			return err
		}
		job = updated
		logging.WithContext(withStage(ctx, next), logger).Debug("analysis step started",
			logging.String(logging.FieldEventType, "analysis_step"),
			logging.Int("progress", job.Progress),
		)
		return nil
	}
	record := func(patch func(*jobs.Job)) error {
		updated, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
			patch(j)
			return nil
		})
		if err == nil {
			job = updated
		}
		return err
	}

	if err := step(jobs.StageInputDownload); err != nil {
		return err
	}
	if !job.Input.Ready() || job.Input.Kind == jobs.SourceUpload {
		media, err := m.svc.Ingester.Fetch(withStage(ctx, jobs.StageInputDownload), id, job.Input)
		if err != nil {
			return err
		}
		if err := record(func(j *jobs.Job) {
			j.Input.Path = media.Path
			j.Input.SizeBytes = media.SizeBytes
			j.Input.MimeType = media.MimeType
			if j.Input.OriginalName == "" {
				j.Input.OriginalName = media.OriginalName
			}
		}); err != nil {
			return err
		}
	}
	if !job.Input.Ready() {
		return services.Wrap(services.ErrValidation, string(jobs.StageInputDownload), "resolve input", "no local video file for the job", nil)
	}

	if err := step(jobs.StageVideoMetadata); err != nil {
		return err
	}
	video, warnings := m.svc.Prober.Probe(withStage(ctx, jobs.StageVideoMetadata), job.Input.Path)
	if err := record(func(j *jobs.Job) {
		j.Video = &video
		j.AddWarnings(warnings...)
	}); err != nil {
		return err
	}

	if err := step(jobs.StageTranscription); err != nil {
		return err
	}
	transcript, warnings := m.svc.Transcriber.Transcribe(withStage(ctx, jobs.StageTranscription), job.Input.Path, job.Brief, video.DurationSec)
	if err := record(func(j *jobs.Job) {
		j.Transcript = &transcript
		j.AddWarnings(warnings...)
	}); err != nil {
		return err
	}

	material := intel.Material{Brief: job.Brief, Transcript: transcript, DurationSec: video.DurationSec}

	if err := step(jobs.StageInsightExtraction); err != nil {
		return err
	}
	insights, warnings := m.svc.Planner.Insights(withStage(ctx, jobs.StageInsightExtraction), material)
	if insights == nil {
		insights = []jobs.Insight{}
	}
	material.Insights = insights
	if err := record(func(j *jobs.Job) {
		j.AnalysisInsights = insights
		j.AddWarnings(warnings...)
	}); err != nil {
		return err
	}

	if err := step(jobs.StagePlanningOverlays); err != nil {
		return err
	}
	candidates, warnings := m.svc.Planner.PlanOverlays(withStage(ctx, jobs.StagePlanningOverlays), material)
	normalized := overlay.Normalize(candidates, video.DurationSec)
	warnings = append(warnings, droppedWarnings(normalized.Dropped)...)
	if len(normalized.Dropped) > 0 {
		logging.WarnWithContext(logging.WithContext(withStage(ctx, jobs.StagePlanningOverlays), logger),
			"overlays dropped by normalizer", "overlay_dropped",
			logging.Int("dropped", len(normalized.Dropped)),
			logging.Int("kept", len(normalized.Events)),
			logging.String(logging.FieldImpact, "overlapping or out-of-range overlays removed from the plan"),
		)
	}
	if err := record(func(j *jobs.Job) {
		j.OverlayPlan = normalized.Events
		j.AddWarnings(warnings...)
	}); err != nil {
		return err
	}

	if err := step(jobs.StagePlanningScenes); err != nil {
		return err
	}
	candidate, warnings := m.svc.Planner.PlanScenes(withStage(ctx, jobs.StagePlanningScenes), material)
	gated := m.gate.Optimize(sceneInput(candidate, normalized.Events, &transcript, video.DurationSec))

	_, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
		j.ScenePlan = gated.Scenes
		report := gated.Quality
		j.SceneQuality = &report
		j.AddWarnings(warnings...)
		j.AddWarnings(gated.Quality.Warnings...)
		return jobs.CompleteAnalysis(j)
	})
	if err != nil {
		return err
	}
	logger.Info("analysis complete",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("overlays", len(normalized.Events)),
		logging.Int("scenes", len(gated.Scenes)),
		logging.Float64("scene_quality", gated.Quality.AverageScore),
		logging.String("transcript_source", transcript.Source),
	)
	return nil
}

func droppedWarnings(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, DroppedWarningPrefix+id)
	}
	return out
}

func (m *Manager) stamp() time.Time {
	return m.now().UTC()
}
