package workflow

import (
	"context"
	"slices"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
)

// Recover repairs jobs interrupted by the previous daemon run and re-enqueues
// pending analyses, oldest first. It must run before Start accepts new work.
func (m *Manager) Recover(ctx context.Context) error {
	all := m.store.List()
	slices.Reverse(all)

	var requeued, repaired int
	for _, job := range all {
		probe := job.Clone()
		requeue := jobs.RecoverInterrupted(probe)
		if probe.Status != job.Status || probe.Stage != job.Stage {
			if _, err := m.store.Update(ctx, job.ID, func(j *jobs.Job) error {
				jobs.RecoverInterrupted(j)
				return nil
			}); err != nil {
				return err
			}
			repaired++
			m.logger.Info("interrupted job repaired",
				logging.JobID(job.ID),
				logging.String("previous_status", string(job.Status)),
				logging.String("previous_stage", string(job.Stage)),
				logging.String("status", string(probe.Status)),
				logging.String("stage", string(probe.Stage)),
			)
		}
		if !requeue {
			continue
		}
		if err := m.push(Task{JobID: job.ID, Type: TaskAnalyze}); err != nil {
			logging.WarnWithContext(m.logger, "recovered analysis not queued", "recover_queue_full",
				logging.JobID(job.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job stays in analyze-queued until the next restart"),
			)
			continue
		}
		requeued++
	}
	if requeued > 0 || repaired > 0 {
		m.logger.Info("job recovery complete",
			logging.String(logging.FieldEventType, "recover_complete"),
			logging.Int("requeued", requeued),
			logging.Int("repaired", repaired),
		)
	}
	return nil
}
