package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

// handleTaskFailure applies the failure transition for the task type and logs
// the classified error. Analysis failures are terminal; render failures
// return the job to review with its plans intact.
func (m *Manager) handleTaskFailure(ctx context.Context, logger *slog.Logger, task TaskType, stage jobs.Stage, id string, taskErr error) {
	if logger == nil {
		logger = m.logger
	}
	message := classifyFailure(stage, taskErr)

	var resolved jobs.Status
	_, err := m.store.Update(ctx, id, func(job *jobs.Job) error {
		if task == TaskRender {
			job.MarkRenderFailed(errors.New(message))
		} else {
			job.MarkFailed(stage, errors.New(message))
		}
		resolved = job.Status
		return nil
	})

	details := services.Details(taskErr)
	attrs := []logging.Attr{
		logging.String("resolved_status", string(resolved)),
		logging.String("failed_stage", string(stage)),
		logging.String("error_message", message),
		logging.Alert("task_failure"),
		logging.String("error_kind", details.Kind),
		logging.String("error_code", details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Error(taskErr),
	}
	logging.ErrorWithContext(logger, "task failed", "task_failure", attrs...)

	if err != nil {
		logger.Error("failed to persist task failure", logging.Error(err))
	}
}

func classifyFailure(stage jobs.Stage, err error) string {
	if err == nil {
		return string(stage) + " failed without error detail"
	}
	if message := strings.TrimSpace(services.Details(err).Message); message != "" {
		return message
	}
	return string(stage) + " failed"
}
