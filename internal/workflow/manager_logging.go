package workflow

import (
	"context"
	"log/slog"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

func withTaskContext(ctx context.Context, task Task, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if task.JobID != "" {
		ctx = services.WithJobID(ctx, task.JobID)
	}
	if task.Type != "" {
		ctx = services.WithTask(ctx, string(task.Type))
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func withStage(ctx context.Context, stage jobs.Stage) context.Context {
	return services.WithStage(ctx, string(stage))
}

func (m *Manager) taskLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = m.logger
	}
	return logging.WithContext(ctx, base)
}

// editLogger tags review-time edits that run on the caller's goroutine.
func (m *Manager) editLogger(ctx context.Context, id, operation string) (context.Context, *slog.Logger) {
	ctx = services.WithJobID(ctx, id)
	ctx = services.WithTask(ctx, operation)
	return ctx, logging.WithContext(ctx, m.logger)
}
