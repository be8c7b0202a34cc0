package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds every job in memory and mirrors each patch to SQLite before it
// becomes visible to readers. A Store built by NewMemory has no mirror.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	mirror *mirror
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemory returns a Store without durable persistence.
func NewMemory(opts ...Option) *Store {
	s := &Store{jobs: make(map[string]*Job), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the SQLite mirror at path and loads every persisted job.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	ctx = ensureContext(ctx)
	m, err := openMirror(ctx, path)
	if err != nil {
		return nil, err
	}
	persisted, err := m.loadAll(ctx)
	if err != nil {
		_ = m.close()
		return nil, err
	}
	s := NewMemory(opts...)
	s.mirror = m
	for _, job := range persisted {
		s.jobs[job.ID] = job
	}
	return s, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.mirror.close()
}

// Path returns the SQLite file backing the store, or "" for memory stores.
func (s *Store) Path() string {
	if s == nil || s.mirror == nil {
		return ""
	}
	return s.mirror.path
}

// Create registers a new queued job.
func (s *Store) Create(ctx context.Context, input Input, brief string) (*Job, error) {
	now := s.now().UTC()
	job := &Job{
		ID:                uuid.NewString(),
		Status:            StatusQueued,
		Stage:             StageAnalyzeQueued,
		Brief:             strings.TrimSpace(brief),
		Input:             input,
		AnalysisInsights:  []Insight{},
		Warnings:          []string{},
		RefinementHistory: []Refinement{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	s.jobs[job.ID] = job
	return job.Clone(), nil
}

// Get returns a copy of the job with id.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job.Clone(), nil
}

// List returns copies of every job, newest first.
func (s *Store) List() []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update applies fn to a copy of the job, bumps UpdatedAt, persists the record
// and publishes it. When fn or persistence fails the stored job is unchanged.
func (s *Store) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now().UTC()
	if !next.UpdatedAt.After(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt.Add(time.Nanosecond)
	}
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *Store) persist(ctx context.Context, job *Job) error {
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.save(ensureContext(ctx), job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	return nil
}
