package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
)

// errStaleTask marks a queue entry whose job has moved on since it was
// enqueued.
var errStaleTask = errors.New("stale task")

// Start launches the worker goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx, m.logger.With(logging.String("component", "workflow-worker")))
	return nil
}

// Stop terminates the worker and waits for the task in flight to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.tasks:
			// Tasks are not interrupted mid-way; Stop waits for them instead.
			m.processTask(context.WithoutCancel(ctx), logger, task)
		}
	}
}

// EnqueueAnalysis parks the job in analyze-queued and schedules the analyze
// task. When the queue is full the job is failed and ErrQueueFull returned.
func (m *Manager) EnqueueAnalysis(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := m.store.Update(ctx, id, jobs.QueueAnalysis)
	if err != nil {
		return nil, err
	}
	if err := m.push(Task{JobID: id, Type: TaskAnalyze}); err != nil {
		m.rejectTask(ctx, id, err, func(job *jobs.Job) error {
			job.MarkFailed(jobs.StageAnalyzeQueued, err)
			return nil
		})
		return nil, err
	}
	return job, nil
}

// EnqueueRender applies the render guard, parks the job in render-queued and
// schedules the render task. When the queue is full the job returns to review
// with stage render-failed and ErrQueueFull is returned.
func (m *Manager) EnqueueRender(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := m.store.Update(ctx, id, jobs.QueueRender)
	if err != nil {
		return nil, err
	}
	if err := m.push(Task{JobID: id, Type: TaskRender}); err != nil {
		m.rejectTask(ctx, id, err, func(job *jobs.Job) error {
			job.MarkRenderFailed(err)
			return nil
		})
		return nil, err
	}
	return job, nil
}

func (m *Manager) push(task Task) error {
	select {
	case m.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *Manager) rejectTask(ctx context.Context, id string, cause error, patch func(*jobs.Job) error) {
	logger := logging.WithContext(ctx, m.logger)
	logging.WarnWithContext(logger, "task queue full; request rejected", "queue_full",
		logging.JobID(id),
		logging.Int("queue_capacity", cap(m.tasks)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "retry once running tasks drain or raise workflow.queue_size"),
	)
	if _, err := m.store.Update(ctx, id, patch); err != nil {
		logger.Error("failed to record rejected task", logging.JobID(id), logging.Error(err))
	}
}

func (m *Manager) processTask(ctx context.Context, workerLogger *slog.Logger, task Task) {
	taskCtx := withTaskContext(ctx, task, uuid.NewString())
	logger := m.taskLogger(taskCtx, workerLogger)
	m.setLastJobID(task.JobID)

	started := time.Now()
	logger.Info("task started", logging.String(logging.FieldEventType, "task_start"))

	var err error
	switch task.Type {
	case TaskAnalyze:
		err = m.analyze(taskCtx, logger, task.JobID)
	case TaskRender:
		err = m.render(taskCtx, logger, task.JobID)
	default:
		logger.Warn("unknown task type; skipping",
			logging.String(logging.FieldEventType, "task_unknown"),
			logging.String(logging.FieldImpact, "queue entry dropped"),
		)
		return
	}

	switch {
	case errors.Is(err, errStaleTask):
		logger.Debug("stale queue entry skipped", logging.Error(err))
	case errors.Is(err, jobs.ErrNotFound):
		logger.Warn("queued job no longer exists", logging.Error(err), logging.String(logging.FieldEventType, "task_job_missing"))
	case err != nil:
		m.setLastError(err)
	default:
		logger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Duration("task_duration", time.Since(started)),
		)
	}
}

// begin applies a state machine entry step. Illegal transitions mean another
// entry for the same job already ran, so they are reported as stale.
func (m *Manager) begin(ctx context.Context, id string, step func(*jobs.Job) error) (*jobs.Job, error) {
	job, err := m.store.Update(ctx, id, step)
	if errors.Is(err, jobs.ErrIllegalTransition) {
		return nil, errors.Join(errStaleTask, err)
	}
	return job, err
}
