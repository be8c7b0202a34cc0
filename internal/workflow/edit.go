package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"overlaystudio/internal/intel"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/services"
)

// OverridesInstruction is the history label recorded for visual editor saves.
const OverridesInstruction = "[visual editor] manual overlay selection and adjustments"

var (
	// ErrInstructionRequired indicates a refine request without instruction text.
	ErrInstructionRequired = errors.New("instruction is required")
	// ErrOverridesRequired indicates a visual editor save without overrides.
	ErrOverridesRequired = errors.New("at least one visual override is required")
)

// Refine rewrites one overlay according to instruction. The target is
// targetIndex when given, otherwise the overlay under the review cursor. The
// refined overlay keeps the target's id. Failures leave the job in review
// with the error recorded.
func (m *Manager) Refine(ctx context.Context, id, instruction string, targetIndex *int) (*jobs.Job, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, services.Wrap(services.ErrValidation, string(jobs.StageRefining), "validate", "refine request", ErrInstructionRequired)
	}
	ctx, logger := m.editLogger(ctx, id, "refine")

	job, err := m.enterEdit(ctx, id, jobs.StageRefining)
	if err != nil {
		return nil, err
	}

	index := cursorIndex(job, targetIndex)
	var current []overlay.Event
	if index < len(job.OverlayPlan) {
		current = []overlay.Event{job.OverlayPlan[index].Clone()}
	}
	refined, warnings := m.svc.Planner.Refine(ctx, materialFor(job), current, instruction)

	plan := overlay.CloneAll(job.OverlayPlan)
	if candidate := overlay.Normalize(first(refined), job.DurationSec()).Events; len(candidate) > 0 {
		replacement := candidate[0]
		if len(current) > 0 {
			replacement.ID = current[0].ID
			plan[index] = replacement
		} else {
			plan = append(plan, replacement)
		}
	}
	normalized := overlay.Normalize(plan, job.DurationSec())
	warnings = append(warnings, droppedWarnings(normalized.Dropped)...)

	entry := jobs.Refinement{
		At:          m.stamp(),
		Kind:        jobs.RefinementInstruction,
		Instruction: instruction,
		TargetIndex: &index,
		Overlays:    len(normalized.Events),
	}
	updated, err := m.leaveEdit(ctx, id, jobs.StageRefining, normalized.Events, entry, warnings)
	if err != nil {
		return nil, m.editFailed(ctx, logger, id, jobs.StageRefining, err)
	}
	logger.Info("overlay refined",
		logging.String(logging.FieldEventType, "overlay_refined"),
		logging.Int("target_index", index),
		logging.Int("overlays", len(normalized.Events)),
	)
	return updated, nil
}

// ApplyOverrides merges visual editor changes into the plan and
// re-normalizes it.
func (m *Manager) ApplyOverrides(ctx context.Context, id string, overrides []overlay.Override) (*jobs.Job, error) {
	overrides = overlay.SanitizeOverrides(overrides)
	if len(overrides) == 0 {
		return nil, services.Wrap(services.ErrValidation, string(jobs.StageApplyingOverrides), "validate", "visual overrides", ErrOverridesRequired)
	}
	ctx, logger := m.editLogger(ctx, id, "visual-overrides")

	job, err := m.enterEdit(ctx, id, jobs.StageApplyingOverrides)
	if err != nil {
		return nil, err
	}

	result := overlay.ApplyOverrides(job.OverlayPlan, overrides, job.DurationSec())
	entry := jobs.Refinement{
		At:          m.stamp(),
		Kind:        jobs.RefinementOverrides,
		Instruction: OverridesInstruction,
		Overlays:    len(result.Events),
	}
	updated, err := m.leaveEdit(ctx, id, jobs.StageApplyingOverrides, result.Events, entry, droppedWarnings(result.Dropped))
	if err != nil {
		return nil, m.editFailed(ctx, logger, id, jobs.StageApplyingOverrides, err)
	}
	logger.Info("visual overrides applied",
		logging.String(logging.FieldEventType, "overrides_applied"),
		logging.Int("overrides", len(overrides)),
		logging.Int("overlays", len(result.Events)),
	)
	return updated, nil
}

// AdvanceReview records a reviewer decision for the overlay under the cursor
// and moves the cursor forward.
func (m *Manager) AdvanceReview(ctx context.Context, id string, action jobs.ReviewAction) (*jobs.Job, error) {
	ctx, logger := m.editLogger(ctx, id, "review-advance")
	updated, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
		if err := jobs.CheckRefinable(j); err != nil {
			return err
		}
		state := jobs.NewReviewState(j.OverlayPlan)
		if j.ReviewState != nil {
			state = *j.ReviewState
		}
		next, err := state.Advance(action, j.OverlayPlan)
		if err != nil {
			return err
		}
		j.ReviewState = &next
		j.Stage = jobs.StageReviewReady
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("review advanced",
		logging.String("action", string(action)),
		logging.Int("cursor", updated.ReviewState.CurrentIndex),
		logging.Bool("completed", updated.ReviewState.Completed),
	)
	return updated, nil
}

func (m *Manager) enterEdit(ctx context.Context, id string, stage jobs.Stage) (*jobs.Job, error) {
	return m.store.Update(ctx, id, func(j *jobs.Job) error {
		if err := jobs.CheckRefinable(j); err != nil {
			return err
		}
		if err := jobs.Transition(j, jobs.StatusReview, stage); err != nil {
			return err
		}
		j.Error = ""
		return nil
	})
}

// leaveEdit stores the edited plan and returns the job to review-ready. It
// fails without touching the job when the edit stage was lost. The review
// cursor restarts when the sequence of overlay ids changed.
func (m *Manager) leaveEdit(ctx context.Context, id string, stage jobs.Stage, plan []overlay.Event, entry jobs.Refinement, warnings []string) (*jobs.Job, error) {
	return m.store.Update(ctx, id, func(j *jobs.Job) error {
		if err := jobs.FinishEdit(j, stage); err != nil {
			return err
		}
		if !slices.Equal(eventIDs(j.OverlayPlan), eventIDs(plan)) || j.ReviewState == nil {
			state := jobs.NewReviewState(plan)
			j.ReviewState = &state
		}
		j.OverlayPlan = plan
		j.RefinementHistory = append(j.RefinementHistory, entry)
		j.AddWarnings(warnings...)
		return nil
	})
}

// editFailed returns a job still held by the edit to review-ready with the
// error recorded, and returns the original error. Jobs that moved on are left
// alone.
func (m *Manager) editFailed(ctx context.Context, logger *slog.Logger, id string, stage jobs.Stage, cause error) error {
	logging.ErrorWithContext(logger, "plan edit failed", "edit_failure",
		logging.String("failed_stage", string(stage)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.Details(cause).Hint),
	)
	if _, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
		if j.Status != jobs.StatusReview || (j.Stage != stage && j.Stage != jobs.StageReviewReady) {
			return nil
		}
		j.Stage = jobs.StageReviewReady
		j.Error = cause.Error()
		return nil
	}); err != nil {
		logger.Error("failed to record edit failure", logging.Error(err))
	}
	return cause
}

func cursorIndex(job *jobs.Job, target *int) int {
	index := 0
	if target != nil {
		index = *target
	} else if job.ReviewState != nil {
		index = job.ReviewState.CurrentIndex
	}
	return max(0, min(index, len(job.OverlayPlan)-1))
}

func materialFor(job *jobs.Job) intel.Material {
	material := intel.Material{
		Brief:       job.Brief,
		DurationSec: job.DurationSec(),
		Insights:    job.AnalysisInsights,
	}
	if job.Transcript != nil {
		material.Transcript = *job.Transcript
	}
	return material
}

func first(events []overlay.Event) []overlay.Event {
	if len(events) > 1 {
		return events[:1]
	}
	return events
}

func eventIDs(events []overlay.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
