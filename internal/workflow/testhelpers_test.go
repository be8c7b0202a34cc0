package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/ingest"
	"overlaystudio/internal/intel"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/media/ffprobe"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/render"
	"overlaystudio/internal/testsupport"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls int
	err   error
	path  string
}

func (f *fakeIngester) Fetch(_ context.Context, _ string, input jobs.Input) (ingest.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ingest.Media{}, f.err
	}
	path := input.Path
	if path == "" {
		path = f.path
	}
	return ingest.Media{Path: path, OriginalName: filepath.Base(path), SizeBytes: 2048, MimeType: "video/mp4"}, nil
}

type fakeProber struct {
	warnings []string
}

func (f fakeProber) Probe(context.Context, string) (jobs.VideoInfo, []string) {
	return jobs.VideoInfo{DurationSec: 30, Width: 1920, Height: 1080}, f.warnings
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(context.Context, string, string, float64) (jobs.Transcript, []string) {
	return jobs.Transcript{
		Text: "welcome to the channel today we compare two cameras",
		Words: []jobs.Word{
			{Text: "welcome", StartSec: 0.5, EndSec: 1},
			{Text: "cameras", StartSec: 9, EndSec: 9.6},
		},
		Source: "test",
	}, nil
}

type fakePlanner struct {
	mu          sync.Mutex
	events      []overlay.Event
	refined     []overlay.Event
	planCalls   int
	refineCalls int
	lastCurrent []overlay.Event
	// onRefine runs inside Refine before the refined overlay is returned.
	onRefine func()
}

func (f *fakePlanner) Insights(context.Context, intel.Material) ([]jobs.Insight, []string) {
	return []jobs.Insight{{ID: "insight-1", TimeSec: 1, Topic: "Opening", NarrativeRole: overlay.IntentHook, Confidence: 0.8}}, nil
}

func (f *fakePlanner) PlanOverlays(context.Context, intel.Material) ([]overlay.Event, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planCalls++
	return overlay.ApplyDefaultsAll(overlay.CloneAll(f.events)), []string{intel.WarnOverlayFallback}
}

func (f *fakePlanner) Refine(_ context.Context, _ intel.Material, current []overlay.Event, _ string) ([]overlay.Event, []string) {
	f.mu.Lock()
	f.refineCalls++
	f.lastCurrent = overlay.CloneAll(current)
	refined := overlay.CloneAll(f.refined)
	hook := f.onRefine
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return overlay.ApplyDefaultsAll(refined), nil
}

func (f *fakePlanner) PlanScenes(context.Context, intel.Material) (json.RawMessage, []string) {
	return nil, nil
}

type fakeCompositor struct {
	mu     sync.Mutex
	calls  int
	props  []render.Props
	render func(call int, props render.Props, dest string, progress func(float64)) error
}

func (f *fakeCompositor) Render(_ context.Context, props render.Props, dest string, progress func(float64)) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.props = append(f.props, props)
	hook := f.render
	f.mu.Unlock()
	if hook != nil {
		return hook(call, props, dest, progress)
	}
	progress(0.5)
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func textEvent(id string, start float64, text string) overlay.Event {
	return overlay.Event{
		ID:          id,
		StartSec:    start,
		DurationSec: 2.5,
		Template:    overlay.TemplateTextPop,
		Payload:     overlay.Payload{Content: overlay.TextPop{Text: text}},
		Confidence:  0.8,
		Reasoning:   "Highlights " + text,
	}
}

type harness struct {
	cfg        *config.Config
	store      *jobs.Store
	manager    *Manager
	ingester   *fakeIngester
	planner    *fakePlanner
	compositor *fakeCompositor
	upload     string
}

func newHarness(t *testing.T, opts ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	upload := filepath.Join(cfg.Paths.UploadsDir, "clip.mp4")
	testsupport.WriteFile(t, upload, 2048)

	h := &harness{
		cfg:      cfg,
		store:    jobs.NewMemory(),
		ingester: &fakeIngester{path: upload},
		planner: &fakePlanner{
			events: []overlay.Event{
				textEvent("hook", 1, "Two cameras, one winner"),
				textEvent("proof", 10, "Sharper at night"),
			},
			refined: []overlay.Event{textEvent("refined", 1.2, "Rewritten hook")},
		},
		compositor: &fakeCompositor{},
		upload:     upload,
	}
	svc := Services{
		Ingester:    h.ingester,
		Prober:      fakeProber{warnings: []string{ffprobe.WarnMetadataDefault}},
		Transcriber: fakeTranscriber{},
		Planner:     h.planner,
		Compositor:  h.compositor,
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.manager = NewManager(cfg, h.store, nil, svc, WithClock(func() time.Time { return clock }))
	return h
}

func (h *harness) createUpload(t *testing.T) *jobs.Job {
	t.Helper()
	job, err := h.store.Create(context.Background(), jobs.Input{
		Kind:         jobs.SourceUpload,
		OriginalName: "clip.mp4",
		Path:         h.upload,
		MimeType:     "video/mp4",
	}, "compare two cameras and ask viewers to subscribe")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

// drain runs every queued task on the calling goroutine.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for {
		select {
		case task := <-h.manager.tasks:
			h.manager.processTask(context.Background(), h.manager.logger, task)
		default:
			return
		}
	}
}

func (h *harness) analyzed(t *testing.T) *jobs.Job {
	t.Helper()
	job := h.createUpload(t)
	if _, err := h.manager.EnqueueAnalysis(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue analysis: %v", err)
	}
	h.drain(t)
	return h.get(t, job.ID)
}

func (h *harness) get(t *testing.T, id string) *jobs.Job {
	t.Helper()
	job, err := h.store.Get(id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

var errCompositorCrashed = errors.New("compositor exited with status 1")
