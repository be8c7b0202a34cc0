package workflow

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/intel"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/media/ffprobe"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/render"
	"overlaystudio/internal/services"
)

func TestAnalyzeParksJobInReview(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)

	if job.Status != jobs.StatusReview || job.Stage != jobs.StageReviewReady {
		t.Fatalf("expected review/review-ready, got %s/%s (error %q)", job.Status, job.Stage, job.Error)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", job.Progress)
	}
	if job.Video == nil || job.Video.Width != 1920 || job.Transcript == nil || job.Transcript.Source != "test" {
		t.Fatalf("expected probe and transcript recorded, got %+v %+v", job.Video, job.Transcript)
	}
	if len(job.AnalysisInsights) != 1 {
		t.Fatalf("expected one insight, got %d", len(job.AnalysisInsights))
	}
	if len(job.OverlayPlan) != 2 || job.OverlayPlan[0].ID != "hook" {
		t.Fatalf("unexpected overlay plan: %+v", job.OverlayPlan)
	}
	if len(job.ScenePlan) == 0 || job.SceneQuality == nil {
		t.Fatal("expected scene plan and quality report")
	}
	if job.ReviewState == nil || job.ReviewState.Completed || job.ReviewState.CurrentIndex != 0 {
		t.Fatalf("expected open review at cursor 0, got %+v", job.ReviewState)
	}
	for _, code := range []string{ffprobe.WarnMetadataDefault, intel.WarnOverlayFallback} {
		if !slices.Contains(job.Warnings, code) {
			t.Fatalf("expected warning %q in %v", code, job.Warnings)
		}
	}
	if h.ingester.calls != 1 {
		t.Fatalf("expected upload to be resolved once, got %d", h.ingester.calls)
	}
}

func TestAnalyzeEmptyPlanCompletesReview(t *testing.T) {
	h := newHarness(t)
	h.planner.events = nil
	job := h.analyzed(t)

	if job.Status != jobs.StatusReview {
		t.Fatalf("expected review, got %s", job.Status)
	}
	if len(job.OverlayPlan) != 0 || job.ReviewState == nil || !job.ReviewState.Completed {
		t.Fatalf("expected completed review over an empty plan, got %+v", job.ReviewState)
	}
}

func TestAnalyzeRecordsDroppedOverlays(t *testing.T) {
	h := newHarness(t)
	h.planner.events = append(h.planner.events, textEvent("late", math.NaN(), "Never shown"))
	job := h.analyzed(t)

	if !slices.Contains(job.Warnings, DroppedWarningPrefix+"late") {
		t.Fatalf("expected dropped warning, got %v", job.Warnings)
	}
	if len(job.OverlayPlan) != 2 {
		t.Fatalf("expected 2 surviving overlays, got %d", len(job.OverlayPlan))
	}
}

func TestAnalyzeFailureFreezesStage(t *testing.T) {
	h := newHarness(t)
	h.ingester.err = services.Wrap(services.ErrExternalTool, "input-download", "yt-dlp", "download failed", errors.New("HTTP Error 403"))

	job, err := h.store.Create(context.Background(), jobs.Input{Kind: jobs.SourceYouTube, SourceURL: "https://youtu.be/abc"}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.manager.EnqueueAnalysis(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.drain(t)

	got := h.get(t, job.ID)
	if got.Status != jobs.StatusFailed || got.Stage != jobs.StageInputDownload {
		t.Fatalf("expected failed at input-download, got %s/%s", got.Status, got.Stage)
	}
	if got.Progress != 100 || !strings.Contains(got.Error, "HTTP Error 403") {
		t.Fatalf("unexpected failure fields: %d %q", got.Progress, got.Error)
	}
	if status := h.manager.Status(); status.LastError == "" || status.LastJobID != job.ID {
		t.Fatalf("expected status to record the failure, got %+v", status)
	}
}

func TestStaleQueueEntriesAreSkipped(t *testing.T) {
	h := newHarness(t)
	job := h.createUpload(t)
	if _, err := h.manager.EnqueueAnalysis(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := h.manager.push(Task{JobID: job.ID, Type: TaskAnalyze}); err != nil {
		t.Fatalf("push duplicate: %v", err)
	}
	if err := h.manager.push(Task{JobID: job.ID, Type: TaskRender}); err != nil {
		t.Fatalf("push stray render: %v", err)
	}
	h.drain(t)

	if h.planner.planCalls != 1 {
		t.Fatalf("expected analysis to run once, got %d", h.planner.planCalls)
	}
	if h.compositor.calls != 0 {
		t.Fatalf("stray render entry must not run, got %d calls", h.compositor.calls)
	}
	if got := h.get(t, job.ID); got.Status != jobs.StatusReview {
		t.Fatalf("expected review, got %s", got.Status)
	}
	if status := h.manager.Status(); status.LastError != "" {
		t.Fatalf("stale entries must not be reported as errors, got %q", status.LastError)
	}
}

func TestQueueFullIsReported(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Workflow.QueueSize = 1 })
	first := h.createUpload(t)
	second := h.createUpload(t)

	if _, err := h.manager.EnqueueAnalysis(context.Background(), first.ID); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	_, err := h.manager.EnqueueAnalysis(context.Background(), second.ID)
	if !errors.Is(err, ErrQueueFull) || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := h.get(t, second.ID); got.Status != jobs.StatusFailed {
		t.Fatalf("rejected job should not stay queued, got %s/%s", got.Status, got.Stage)
	}
	if status := h.manager.Status(); status.QueueDepth != 1 || status.QueueCapacity != 1 {
		t.Fatalf("unexpected queue status %+v", status)
	}
}

func TestRenderCompletesWithOutput(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)

	var seen []int
	h.compositor.render = func(_ int, _ render.Props, dest string, progress func(float64)) error {
		for _, fraction := range []float64{0.5, 0.2, math.NaN(), 1} {
			progress(fraction)
			seen = append(seen, h.get(t, job.ID).Progress)
		}
		return writeOutput(dest)
	}

	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue render: %v", err)
	}
	h.drain(t)

	got := h.get(t, job.ID)
	if got.Status != jobs.StatusCompleted || got.Stage != jobs.StageCompleted || got.Progress != 100 {
		t.Fatalf("expected completed at 100, got %s/%s %d", got.Status, got.Stage, got.Progress)
	}
	wantName := render.OutputName(job.ID)
	if got.Output == nil || got.Output.Filename != wantName {
		t.Fatalf("unexpected output %+v", got.Output)
	}
	if got.Output.Path != filepath.Join(h.cfg.Paths.RendersDir, wantName) {
		t.Fatalf("unexpected output path %q", got.Output.Path)
	}
	if got.Output.DownloadURL != "http://overlaystudio.test/renders/"+wantName {
		t.Fatalf("unexpected download url %q", got.Output.DownloadURL)
	}
	if want := []int{53, 53, 53, 95}; !slices.Equal(seen, want) {
		t.Fatalf("progress sequence %v, want %v", seen, want)
	}

	props := h.compositor.props[0]
	if props.VideoURL != "http://overlaystudio.test/media/clip.mp4" {
		t.Fatalf("unexpected video url %q", props.VideoURL)
	}
	if len(props.Events) != 2 || props.Scenes != nil {
		t.Fatalf("expected events props, got %d events %d scenes", len(props.Events), len(props.Scenes))
	}
	if props.FPS != 30 || props.DurationInFrames != 900 || props.Width != 1920 {
		t.Fatalf("unexpected geometry %+v", props)
	}
}

func TestRenderFailureReturnsToReviewAndRetries(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)
	h.compositor.render = func(call int, _ render.Props, dest string, _ func(float64)) error {
		if call == 1 {
			return errCompositorCrashed
		}
		return writeOutput(dest)
	}

	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue render: %v", err)
	}
	h.drain(t)

	failed := h.get(t, job.ID)
	if failed.Status != jobs.StatusReview || failed.Stage != jobs.StageRenderFailed {
		t.Fatalf("expected review/render-failed, got %s/%s", failed.Status, failed.Stage)
	}
	if !strings.Contains(failed.Error, errCompositorCrashed.Error()) {
		t.Fatalf("expected compositor error, got %q", failed.Error)
	}
	if len(failed.OverlayPlan) != len(job.OverlayPlan) || len(failed.ScenePlan) != len(job.ScenePlan) {
		t.Fatal("render failure must leave plans untouched")
	}

	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); err != nil {
		t.Fatalf("re-render should be accepted, got %v", err)
	}
	h.drain(t)
	if got := h.get(t, job.ID); got.Status != jobs.StatusCompleted || got.Error != "" {
		t.Fatalf("expected completed retry, got %s %q", got.Status, got.Error)
	}
}

func TestRenderGuardRejectsOutstandingRender(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)

	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue render: %v", err)
	}
	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); !errors.Is(err, jobs.ErrRenderOutstanding) {
		t.Fatalf("expected ErrRenderOutstanding, got %v", err)
	}
	if _, err := h.manager.Refine(context.Background(), job.ID, "shorter", nil); !errors.Is(err, jobs.ErrRenderOutstanding) {
		t.Fatalf("expected refine to be rejected, got %v", err)
	}
}

func TestRenderUsesApprovedOverlaysAndScenes(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Render.UseSceneGraph = true })
	job := h.analyzed(t)

	if _, err := h.manager.AdvanceReview(context.Background(), job.ID, jobs.ActionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := h.manager.AdvanceReview(context.Background(), job.ID, jobs.ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := h.manager.EnqueueRender(context.Background(), job.ID); err != nil {
		t.Fatalf("enqueue render: %v", err)
	}
	h.drain(t)

	props := h.compositor.props[0]
	if props.Events != nil || len(props.Scenes) != 1 || props.Scenes[0].ID != "proof" {
		t.Fatalf("expected the approved overlay lowered to one scene, got %+v", props.Scenes)
	}
	// No words fall near 10s-12.5s, so alignment keeps the span and adds the speech pad.
	if got := props.Scenes[0]; got.StartSec != 10 || got.DurationSec != 2.75 {
		t.Fatalf("expected the lowered scene aligned to 10s/2.75s, got %.2f/%.2f", got.StartSec, got.DurationSec)
	}
}

func TestRefineReplacesTargetKeepingID(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)

	updated, err := h.manager.Refine(context.Background(), job.ID, "  make the hook punchier ", nil)
	if err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if len(h.planner.lastCurrent) != 1 || h.planner.lastCurrent[0].ID != "hook" {
		t.Fatalf("expected the cursor overlay as refine target, got %+v", h.planner.lastCurrent)
	}
	if updated.Stage != jobs.StageReviewReady || updated.Status != jobs.StatusReview {
		t.Fatalf("expected review-ready, got %s/%s", updated.Status, updated.Stage)
	}
	if len(updated.OverlayPlan) != 2 || updated.OverlayPlan[0].ID != "hook" || updated.OverlayPlan[0].Headline() != "Rewritten hook" {
		t.Fatalf("expected hook rewritten in place, got %+v", updated.OverlayPlan)
	}
	if len(updated.RefinementHistory) != 1 {
		t.Fatalf("expected one history entry, got %d", len(updated.RefinementHistory))
	}
	entry := updated.RefinementHistory[0]
	if entry.Kind != jobs.RefinementInstruction || entry.Instruction != "make the hook punchier" ||
		entry.TargetIndex == nil || *entry.TargetIndex != 0 || entry.Overlays != 2 {
		t.Fatalf("unexpected history entry %+v", entry)
	}
	if !entry.At.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected history timestamp %s", entry.At)
	}
}

func TestRefineTargetsExplicitIndex(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)
	h.planner.refined = []overlay.Event{textEvent("x", 10.5, "Night shots win")}

	target := 7
	updated, err := h.manager.Refine(context.Background(), job.ID, "stress low light", &target)
	if err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if h.planner.lastCurrent[0].ID != "proof" {
		t.Fatalf("expected clamped index to target the last overlay, got %s", h.planner.lastCurrent[0].ID)
	}
	if updated.OverlayPlan[1].ID != "proof" || updated.OverlayPlan[1].Headline() != "Night shots win" {
		t.Fatalf("unexpected plan %+v", updated.OverlayPlan)
	}
	if *updated.RefinementHistory[0].TargetIndex != 1 {
		t.Fatalf("expected recorded index 1, got %d", *updated.RefinementHistory[0].TargetIndex)
	}
}

func TestRefineValidation(t *testing.T) {
	h := newHarness(t)
	job := h.createUpload(t)

	if _, err := h.manager.Refine(context.Background(), job.ID, "   ", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.manager.Refine(context.Background(), job.ID, "shorter", nil); !errors.Is(err, jobs.ErrNotAnalyzed) {
		t.Fatalf("expected ErrNotAnalyzed, got %v", err)
	}
	if _, err := h.manager.Refine(context.Background(), "missing", "shorter", nil); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEditBlocksRenderAndOtherEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.analyzed(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.planner.onRefine = func() {
		close(entered)
		<-release
	}
	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Refine(ctx, job.ID, "make the hook punchier", nil)
		done <- err
	}()
	<-entered

	disabled := false
	cases := []struct {
		name string
		call func() error
	}{
		{"render", func() error { _, err := h.manager.EnqueueRender(ctx, job.ID); return err }},
		{"refine", func() error { _, err := h.manager.Refine(ctx, job.ID, "shorter", nil); return err }},
		{"overrides", func() error {
			_, err := h.manager.ApplyOverrides(ctx, job.ID, []overlay.Override{{ID: "proof", Enabled: &disabled}})
			return err
		}},
		{"review", func() error { _, err := h.manager.AdvanceReview(ctx, job.ID, jobs.ActionApprove); return err }},
	}
	for _, tc := range cases {
		if err := tc.call(); !errors.Is(err, jobs.ErrEditInProgress) {
			t.Fatalf("%s during refine: expected ErrEditInProgress, got %v", tc.name, err)
		}
	}
	if got := h.get(t, job.ID); got.Status != jobs.StatusReview || got.Stage != jobs.StageRefining {
		t.Fatalf("expected the refine to hold the job, got %s/%s", got.Status, got.Stage)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Refine returned error: %v", err)
	}
	if _, err := h.manager.EnqueueRender(ctx, job.ID); err != nil {
		t.Fatalf("enqueue render after refine: %v", err)
	}
	h.drain(t)

	final := h.get(t, job.ID)
	if final.Status != jobs.StatusCompleted || final.Output == nil {
		t.Fatalf("expected completed render, got %s/%s (error %q)", final.Status, final.Stage, final.Error)
	}
	if h.compositor.calls != 1 {
		t.Fatalf("expected exactly one render, got %d", h.compositor.calls)
	}
}

func TestRefineFailureWhenJobMovesOn(t *testing.T) {
	cases := []struct {
		name      string
		move      func(*jobs.Job)
		status    jobs.Status
		stage     jobs.Stage
		wantError bool
	}{
		{
			name:      "repaired to review-ready",
			move:      func(j *jobs.Job) { j.Stage = jobs.StageReviewReady },
			status:    jobs.StatusReview,
			stage:     jobs.StageReviewReady,
			wantError: true,
		},
		{
			name: "rendering",
			move: func(j *jobs.Job) {
				j.Status = jobs.StatusRendering
				j.Stage = jobs.StageRendering
			},
			status: jobs.StatusRendering,
			stage:  jobs.StageRendering,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			job := h.analyzed(t)
			h.planner.onRefine = func() {
				if _, err := h.store.Update(ctx, job.ID, func(j *jobs.Job) error {
					tc.move(j)
					return nil
				}); err != nil {
					t.Errorf("move job: %v", err)
				}
			}

			if _, err := h.manager.Refine(ctx, job.ID, "make the hook punchier", nil); !errors.Is(err, jobs.ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
			got := h.get(t, job.ID)
			if got.Status != tc.status || got.Stage != tc.stage {
				t.Fatalf("expected %s/%s, got %s/%s", tc.status, tc.stage, got.Status, got.Stage)
			}
			if (got.Error != "") != tc.wantError {
				t.Fatalf("unexpected error field %q", got.Error)
			}
			if len(got.RefinementHistory) != 0 || got.OverlayPlan[0].Headline() != "Two cameras, one winner" {
				t.Fatalf("failed refine must leave the plan untouched, got %+v", got.OverlayPlan)
			}
		})
	}
}

func TestApplyOverridesRemovesAndResetsReview(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)
	if _, err := h.manager.AdvanceReview(context.Background(), job.ID, jobs.ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	disabled := false
	updated, err := h.manager.ApplyOverrides(context.Background(), job.ID, []overlay.Override{{ID: "hook", Enabled: &disabled}})
	if err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if len(updated.OverlayPlan) != 1 || updated.OverlayPlan[0].ID != "proof" {
		t.Fatalf("expected hook removed, got %+v", updated.OverlayPlan)
	}
	if updated.ReviewState.CurrentIndex != 0 || len(updated.ReviewState.ApprovedIDs) != 0 {
		t.Fatalf("expected review restarted, got %+v", updated.ReviewState)
	}
	last := updated.RefinementHistory[len(updated.RefinementHistory)-1]
	if last.Kind != jobs.RefinementOverrides || last.Instruction != OverridesInstruction || last.Overlays != 1 {
		t.Fatalf("unexpected history entry %+v", last)
	}

	if _, err := h.manager.ApplyOverrides(context.Background(), job.ID, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty overrides, got %v", err)
	}
}

func TestAdvanceReviewWalksPlan(t *testing.T) {
	h := newHarness(t)
	job := h.analyzed(t)

	first, err := h.manager.AdvanceReview(context.Background(), job.ID, jobs.ActionApprove)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if first.ReviewState.CurrentIndex != 1 || first.ReviewState.Completed {
		t.Fatalf("unexpected review state %+v", first.ReviewState)
	}
	second, err := h.manager.AdvanceReview(context.Background(), job.ID, jobs.ActionSkip)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !second.ReviewState.Completed || second.ReviewState.CurrentIndex != 1 {
		t.Fatalf("expected completed review on last overlay, got %+v", second.ReviewState)
	}
	if !slices.Equal(second.ReviewState.ApprovedIDs, []string{"hook"}) || !slices.Equal(second.ReviewState.RejectedIDs, []string{"proof"}) {
		t.Fatalf("unexpected decisions %+v", second.ReviewState)
	}
}

func TestRecoverRepairsInterruptedJobs(t *testing.T) {
	h := newHarness(t)
	analyzing := h.createUpload(t)
	rendering := h.analyzed(t)
	ctx := context.Background()

	if _, err := h.store.Update(ctx, analyzing.ID, func(j *jobs.Job) error {
		j.Status = jobs.StatusAnalyzing
		j.Stage = jobs.StageTranscription
		return nil
	}); err != nil {
		t.Fatalf("seed analyzing: %v", err)
	}
	if _, err := h.store.Update(ctx, rendering.ID, func(j *jobs.Job) error {
		j.Status = jobs.StatusRendering
		j.Stage = jobs.StageRendering
		return nil
	}); err != nil {
		t.Fatalf("seed rendering: %v", err)
	}

	if err := h.manager.Recover(ctx); err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if depth := h.manager.Status().QueueDepth; depth != 1 {
		t.Fatalf("expected one requeued analysis, got %d", depth)
	}
	if got := h.get(t, rendering.ID); got.Stage != jobs.StageRenderFailed || got.Error != jobs.DaemonStopReason {
		t.Fatalf("expected interrupted render to return to review, got %s %q", got.Stage, got.Error)
	}
	h.drain(t)
	if got := h.get(t, analyzing.ID); got.Status != jobs.StatusReview {
		t.Fatalf("expected recovered analysis to finish, got %s", got.Status)
	}
}

func TestStartProcessesQueueUntilStopped(t *testing.T) {
	h := newHarness(t)
	job := h.createUpload(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.manager.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := h.manager.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !h.manager.Status().Running {
		t.Fatal("expected running status")
	}
	if _, err := h.manager.EnqueueAnalysis(ctx, job.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		got, err := h.store.Get(job.ID)
		return err == nil && got.Status == jobs.StatusReview
	})

	h.manager.Stop()
	if h.manager.Status().Running {
		t.Fatal("expected stopped status")
	}
}

func writeOutput(dest string) error {
	return os.WriteFile(dest, []byte("video"), 0o644)
}
