package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// YTDLP downloads videos with yt-dlp.
type YTDLP struct {
	binary string
	dir    string
	run    CommandRunner
	now    func() time.Time
}

// NewYTDLP returns a strategy writing into dir.
func NewYTDLP(binary, dir string) *YTDLP {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{binary: binary, dir: dir, run: runCommand, now: time.Now}
}

// WithRunner overrides command execution (for testing).
func (y *YTDLP) WithRunner(run CommandRunner) *YTDLP {
	if run != nil {
		y.run = run
	}
	return y
}

// Name implements Strategy.
func (y *YTDLP) Name() string { return "yt-dlp" }

// Supports implements Strategy. Remote links fall back to yt-dlp when the
// direct download fails.
func (y *YTDLP) Supports(kind jobs.SourceKind) bool {
	return kind == jobs.SourceYouTube || kind == jobs.SourceRemote
}

// Fetch implements Strategy.
func (y *YTDLP) Fetch(ctx context.Context, req Request) (Media, error) {
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return Media{}, fmt.Errorf("yt-dlp: ensure uploads dir: %w", err)
	}
	token := fmt.Sprintf("yt-%s-%s", req.JobID, stamp(y.now()))
	args := []string{
		"--no-playlist",
		"--merge-output-format", "mp4",
		"-f", "bestvideo+bestaudio/best",
		"--restrict-filenames",
		"--newline",
		"-o", filepath.Join(y.dir, token+".%(ext)s"),
		req.SourceURL,
	}
	if err := y.run(ctx, y.binary, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Media{}, services.Wrap(services.ErrConfiguration, "input-download", "yt-dlp", "yt-dlp not found on PATH (install it to ingest YouTube links)", err)
		}
		return Media{}, services.Wrap(services.ErrExternalTool, "input-download", "yt-dlp", "download failed", err)
	}
	path, err := newestWithPrefix(y.dir, token)
	if err != nil {
		return Media{}, services.Wrap(services.ErrExternalTool, "input-download", "yt-dlp", "yt-dlp finished but no file was written", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, fmt.Errorf("yt-dlp: stat download: %w", err)
	}
	name := filepath.Base(path)
	return Media{Path: path, OriginalName: name, SizeBytes: info.Size(), MimeType: "video/mp4"}, nil
}

// newestWithPrefix skips yt-dlp's .part and per-format intermediates.
func newestWithPrefix(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", errNotFound
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
