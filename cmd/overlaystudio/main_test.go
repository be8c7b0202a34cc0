package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overlaystudio/internal/api"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/testsupport"
)

func TestSubmitReviewRenderFlow(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(t.TempDir(), "demo.mp4")
	testsupport.WriteFile(t, video, 4096)

	out, _, err := runCLI(t, []string{"submit", video, "--brief", "subscribe for weekly reviews"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "queued (demo.mp4)")
	fields := strings.Fields(out)
	if len(fields) < 2 {
		t.Fatalf("unexpected submit output %q", out)
	}
	id := fields[1]
	analyzed := waitForJob(t, env.store, id, jobs.StatusReview)

	out, _, err = runCLI(t, []string{"jobs"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "review")

	out, _, err = runCLI(t, []string{"show", id}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "<- current")
	requireContains(t, out, analyzed.OverlayPlan[0].ID)

	out, _, err = runCLI(t, []string{"review", id, "approve"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(analyzed.OverlayPlan) == 1 {
		requireContains(t, out, "Review complete: 1 approved, 0 rejected")
	} else {
		requireContains(t, out, "Next overlay 2/")
	}

	out, _, err = runCLI(t, []string{"render", id}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "Render queued")
	done := waitForJob(t, env.store, id, jobs.StatusCompleted)
	if done.Output == nil {
		t.Fatal("expected render output")
	}

	_, _, err = runCLI(t, []string{"render", id}, env.apiURL, env.configPath)
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for completed job, got %v", err)
	}
}

func TestSubmitRejectsUnsupportedURL(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit", "https://example.com/video.mp4"}, env.apiURL, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "HTTP 400") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReviewRejectsUnknownActionLocally(t *testing.T) {
	_, configPath := newCLIConfig(t)
	_, _, err := runCLI(t, []string{"review", "some-job", "maybe"}, "http://127.0.0.1:1", configPath)
	if err == nil || strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("expected local validation error, got %v", err)
	}
}

func TestJobsFallsBackToStore(t *testing.T) {
	cfg, configPath := newCLIConfig(t)
	store, err := jobs.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	job, err := store.Create(context.Background(), jobs.Input{Kind: jobs.SourceYouTube, SourceURL: "https://youtu.be/abc"}, "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "--json"}, "http://127.0.0.1:1", configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode jobs output %q: %v", out, err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != job.ID || resp.Items[0].Source != "https://youtu.be/abc" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
}

func TestShowWithoutDaemonExplainsHowToStart(t *testing.T) {
	_, configPath := newCLIConfig(t)
	_, _, err := runCLI(t, []string{"show", "some-job"}, "http://127.0.0.1:1", configPath)
	if err == nil || !strings.Contains(err.Error(), "overlaystudio serve") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestStatusReportsDaemonAndDependencies(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Running (pid")
	requireContains(t, out, "FFprobe")
	requireContains(t, out, "Missing dependencies")

	_, configPath := newCLIConfig(t)
	out, _, err = runCLI(t, []string{"status"}, "http://127.0.0.1:1", configPath)
	if err != nil {
		t.Fatalf("status without daemon: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
}

func TestConfigInitAndValidate(t *testing.T) {
	_, configPath := newCLIConfig(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}
