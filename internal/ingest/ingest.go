package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

// Media is a video available on local disk.
type Media struct {
	Path         string
	OriginalName string
	SizeBytes    int64
	MimeType     string
}

// Request identifies what to fetch.
type Request struct {
	JobID     string
	Kind      jobs.SourceKind
	SourceURL string
}

// Strategy fetches one family of sources.
type Strategy interface {
	Name() string
	Supports(kind jobs.SourceKind) bool
	Fetch(ctx context.Context, req Request) (Media, error)
}

// Ingester tries strategies in registration order.
type Ingester struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewIngester composes strategies in the order they should be tried.
func NewIngester(logger *slog.Logger, strategies ...Strategy) *Ingester {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingester{strategies: strategies, logger: logging.NewComponentLogger(logger, "ingest")}
}

// FromConfig wires the strategies the configuration enables: direct HTTP for
// blob hosts, yt-dlp for YouTube and as a generic fallback, and object
// storage when [storage] is enabled.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Ingester, error) {
	strategies := []Strategy{
		NewHTTPDownloader(cfg.Paths.UploadsDir, cfg.Ingest),
		NewYTDLP(cfg.Ingest.YTDLPBinary, cfg.Paths.UploadsDir),
	}
	if cfg.Storage.Enabled {
		objects, err := NewObjectFetcher(cfg.Storage, cfg.Paths.UploadsDir)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, objects)
	}
	return NewIngester(logger, strategies...), nil
}

// Fetch brings input to local disk. Uploads are already local and are only
// stat'ed.
func (i *Ingester) Fetch(ctx context.Context, jobID string, input jobs.Input) (Media, error) {
	if input.Kind == jobs.SourceUpload || (input.Ready() && input.SourceURL == "") {
		return localMedia(input)
	}
	req := Request{JobID: jobID, Kind: input.Kind, SourceURL: input.SourceURL}
	logger := logging.WithContext(ctx, i.logger)

	var lastErr error
	for _, strategy := range i.strategies {
		if !strategy.Supports(input.Kind) {
			continue
		}
		started := time.Now()
		media, err := strategy.Fetch(ctx, req)
		if err == nil {
			logger.Info("source ingested",
				logging.String("strategy", strategy.Name()),
				logging.String("path", media.Path),
				logging.Int64("size_bytes", media.SizeBytes),
				logging.Duration("elapsed", time.Since(started)),
			)
			return media, nil
		}
		lastErr = err
		logging.WarnWithContext(logger, "ingest strategy failed", "ingest_strategy_failed",
			logging.String("strategy", strategy.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "trying the next strategy"),
		)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrConfiguration, "input-download", "fetch", fmt.Sprintf("no ingest strategy handles %q sources", input.Kind), nil)
	}
	return Media{}, lastErr
}

func localMedia(input jobs.Input) (Media, error) {
	info, err := os.Stat(input.Path)
	if err != nil {
		return Media{}, services.Wrap(services.ErrValidation, "input-download", "stat upload", "uploaded file missing", err)
	}
	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = mimeFor(input.Path, "")
	}
	name := input.OriginalName
	if name == "" {
		name = filepath.Base(input.Path)
	}
	return Media{Path: input.Path, OriginalName: name, SizeBytes: info.Size(), MimeType: mimeType}, nil
}

var videoExtensions = []string{".mp4", ".mov", ".webm", ".mkv"}

// videoExtension keeps known container extensions and defaults to .mp4.
func videoExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range videoExtensions {
		if ext == known {
			return ext
		}
	}
	return ".mp4"
}

func mimeFor(path, reported string) string {
	if reported = strings.TrimSpace(reported); reported != "" {
		if media, _, err := mime.ParseMediaType(reported); err == nil {
			return media
		}
	}
	if guessed := mime.TypeByExtension(filepath.Ext(path)); guessed != "" {
		if media, _, err := mime.ParseMediaType(guessed); err == nil {
			return media
		}
	}
	return "video/mp4"
}

func stamp(now time.Time) string {
	return fmt.Sprintf("%d", now.UnixMilli())
}

var errNotFound = errors.New("downloaded file not found")
