package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"overlaystudio/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]deps.Status{
		{Name: "FFprobe", Available: false},
		{Name: "yt-dlp", Available: true, Command: "yt-dlp"},
		{Name: "uvx", Available: false, Optional: true, Detail: "not found"},
	}, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	cases := []struct {
		index int
		want  string
	}{
		{0, "[ERROR] not available"},
		{1, "[OK] Ready (command: yt-dlp)"},
		{2, "[WARN] not found"},
		{3, "[WARN] FFprobe"},
	}
	for _, tc := range cases {
		if !strings.Contains(lines[tc.index], tc.want) {
			t.Fatalf("line %d: expected %q in %q", tc.index, tc.want, lines[tc.index])
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"ID", "Status"}, [][]string{{"job-1"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "job-1") || !strings.Contains(out, "Status") {
		t.Fatalf("unexpected table %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty table without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}
