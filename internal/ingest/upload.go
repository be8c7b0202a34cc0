package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

// Upload is a video received from a client.
type Upload struct {
	Name     string
	MimeType string
	Body     io.Reader
}

// SaveUpload writes upload into dir under a random name and returns the job
// input describing it. Bodies larger than maxBytes are rejected and removed.
func SaveUpload(dir string, upload Upload, maxBytes int64) (jobs.Input, error) {
	name := strings.TrimSpace(filepath.Base(upload.Name))
	if !acceptsUpload(name, upload.MimeType) {
		return jobs.Input{}, services.Wrap(services.ErrValidation, "submit", "upload", "unsupported video type", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jobs.Input{}, fmt.Errorf("upload: ensure uploads dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+videoExtension(name))
	written, err := writeLimited(path, upload.Body, maxBytes)
	if err != nil {
		_ = os.Remove(path)
		return jobs.Input{}, err
	}
	if written == 0 {
		_ = os.Remove(path)
		return jobs.Input{}, services.Wrap(services.ErrValidation, "submit", "upload", "uploaded video is empty", nil)
	}
	if name == "" || name == "." {
		name = filepath.Base(path)
	}
	return jobs.Input{
		Kind:         jobs.SourceUpload,
		OriginalName: name,
		Path:         path,
		SizeBytes:    written,
		MimeType:     mimeFor(path, upload.MimeType),
	}, nil
}

func acceptsUpload(name, mimeType string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range videoExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

func writeLimited(path string, body io.Reader, maxBytes int64) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("upload: create %s: %w", path, err)
	}
	defer file.Close()

	reader := body
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}
	written, err := io.Copy(file, reader)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "submit", "upload", "upload interrupted", err)
	}
	if maxBytes > 0 && written > maxBytes {
		return 0, services.Wrap(services.ErrValidation, "submit", "upload", fmt.Sprintf("video exceeds %d MiB", maxBytes>>20), nil)
	}
	return written, nil
}
