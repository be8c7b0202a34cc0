package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/scene"
	"overlaystudio/internal/services"
)

const defaultQueueSize = 64

// ErrQueueFull is returned when the task queue has no free slot. Callers
// should retry later.
var ErrQueueFull = fmt.Errorf("%w: task queue is full", services.ErrTransient)

// Manager coordinates the task queue and the review-time edits on jobs.
type Manager struct {
	cfg    *config.Config
	store  *jobs.Store
	logger *slog.Logger
	svc    Services
	gate   scene.Gate
	tasks  chan Task
	now    func() time.Time

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJobID string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the clock used for refinement history timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager around store. The queue capacity
// comes from [workflow] queue_size.
func NewManager(cfg *config.Config, store *jobs.Store, logger *slog.Logger, svc Services, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	size := cfg.Workflow.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow-manager"),
		svc:    svc,
		gate:   scene.NewGate(cfg.Workflow.QualityThreshold),
		tasks:  make(chan Task, size),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the job store the manager patches.
func (m *Manager) Store() *jobs.Store {
	return m.store
}
