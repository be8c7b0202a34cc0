package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

// HTTPDownloader streams blob URLs straight to disk.
type HTTPDownloader struct {
	dir      string
	client   *http.Client
	maxBytes int64
	now      func() time.Time
}

// NewHTTPDownloader builds the strategy from the [ingest] section.
func NewHTTPDownloader(dir string, cfg config.Ingest) *HTTPDownloader {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPDownloader{
		dir:      dir,
		client:   &http.Client{Timeout: timeout},
		maxBytes: int64(cfg.MaxDownloadMiB) << 20,
		now:      time.Now,
	}
}

// WithHTTPClient overrides the HTTP client.
func (d *HTTPDownloader) WithHTTPClient(client *http.Client) *HTTPDownloader {
	if client != nil {
		d.client = client
	}
	return d
}

// Name implements Strategy.
func (d *HTTPDownloader) Name() string { return "http" }

// Supports implements Strategy.
func (d *HTTPDownloader) Supports(kind jobs.SourceKind) bool {
	return kind == jobs.SourceRemote
}

// Fetch implements Strategy. A body larger than the configured limit is
// discarded.
func (d *HTTPDownloader) Fetch(ctx context.Context, req Request) (Media, error) {
	parsed, err := url.Parse(req.SourceURL)
	if err != nil {
		return Media{}, services.Wrap(services.ErrValidation, "input-download", "http", "invalid remote url", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Media{}, services.Wrap(services.ErrValidation, "input-download", "http", "invalid remote url", err)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Media{}, services.Wrap(services.ErrTransient, "input-download", "http", "remote download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Media{}, services.Wrap(services.ErrExternalTool, "input-download", "http", fmt.Sprintf("remote download failed (HTTP %d)", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Media{}, fmt.Errorf("http download: ensure uploads dir: %w", err)
	}
	name := fmt.Sprintf("remote-%s-%s%s", req.JobID, stamp(d.now()), videoExtension(parsed.Path))
	path := filepath.Join(d.dir, name)
	written, err := d.copyBody(path, resp.Body)
	if err != nil {
		_ = os.Remove(path)
		return Media{}, err
	}
	return Media{
		Path:         path,
		OriginalName: name,
		SizeBytes:    written,
		MimeType:     mimeFor(path, resp.Header.Get("Content-Type")),
	}, nil
}

func (d *HTTPDownloader) copyBody(path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("http download: create %s: %w", path, err)
	}
	defer file.Close()

	reader := body
	if d.maxBytes > 0 {
		reader = io.LimitReader(body, d.maxBytes+1)
	}
	written, err := io.Copy(file, reader)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "input-download", "http", "remote download interrupted", err)
	}
	if d.maxBytes > 0 && written > d.maxBytes {
		return 0, services.Wrap(services.ErrValidation, "input-download", "http", fmt.Sprintf("remote video exceeds %d MiB", d.maxBytes>>20), nil)
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("http download: sync: %w", err)
	}
	return written, nil
}
