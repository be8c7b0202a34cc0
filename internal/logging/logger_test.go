package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overlaystudio/internal/config"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "overlaystudio.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	noColor := false
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
		Color:       &noColor,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "workflow").Info("stage started",
		logging.String(logging.FieldStage, "transcription"),
		logging.String("detail", "two words"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO", "[workflow]", "stage started", "stage=transcription", `detail="two words"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithTask(ctx, "render")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "render fell back", "render_fallback",
		logging.Error(errors.New("boom")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	checks := map[string]string{
		"level":                 "warn",
		logging.FieldJobID:      "job-1",
		logging.FieldTask:       "render",
		logging.FieldEventType:  "render_fallback",
		logging.FieldErrorHint:  "inspect the job record and the daemon log",
		logging.FieldImpact:     "processing continues with reduced output",
		"error":                 "boom",
	}
	for key, want := range checks {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("expected %s=%q, got %v", key, want, payload[key])
		}
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts field, got %v", payload)
	}
}

func TestWarnKeepsCallerFieldsAndDecision(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "decision.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	attrs := append(logging.Decision("transcript_source", "synthetic", "disabled"),
		logging.JobID("job-7"),
		logging.String(logging.FieldErrorHint, "enable transcription"),
	)
	logging.WarnWithContext(logger, "synthetic transcript", "transcription_fallback", attrs...)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(content), logging.FieldErrorHint) != 1 {
		t.Fatalf("expected a single error_hint field, got %q", content)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	checks := map[string]string{
		logging.FieldJobID:        "job-7",
		logging.FieldErrorHint:    "enable transcription",
		logging.FieldDecisionType: "transcript_source",
		"decision_result":         "synthetic",
		"decision_reason":         "disabled",
		logging.FieldEventType:    "transcription_fallback",
	}
	for key, want := range checks {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("expected %s=%q, got %v", key, want, payload[key])
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 8) {
		t.Fatal("expected nop logger to be disabled")
	}
	logging.ErrorWithContext(nil, "ignored", "noop")
}
