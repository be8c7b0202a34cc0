package ffprobe

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
)

// WarnMetadataDefault is recorded when the defaults stood in for probed metadata.
const WarnMetadataDefault = "video-metadata-default"

// Defaults replace metadata ffprobe cannot supply.
type Defaults struct {
	Width       int
	Height      int
	DurationSec float64
}

// Prober reads video geometry.
type Prober struct {
	binary   string
	defaults Defaults
	run      Runner
	logger   *slog.Logger
}

// NewProber builds a prober from the [media] config section.
func NewProber(cfg config.Media, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	defaults := Defaults{Width: cfg.DefaultWidth, Height: cfg.DefaultHeight, DurationSec: cfg.DefaultDurationSeconds}
	if defaults.Width <= 0 {
		defaults.Width = 1920
	}
	if defaults.Height <= 0 {
		defaults.Height = 1080
	}
	if defaults.DurationSec <= 0 {
		defaults.DurationSec = 30
	}
	return &Prober{
		binary:   cfg.FFprobeBinary,
		defaults: defaults,
		run:      execRunner,
		logger:   logging.NewComponentLogger(logger, "ffprobe"),
	}
}

// WithRunner overrides command execution (for testing).
func (p *Prober) WithRunner(run Runner) {
	if run != nil {
		p.run = run
	}
}

// Probe returns the duration and frame size of path. Missing dimensions fall
// back to the defaults silently; a failed probe or unusable duration returns
// the defaults together with WarnMetadataDefault.
func (p *Prober) Probe(ctx context.Context, path string) (jobs.VideoInfo, []string) {
	info, err := p.probe(ctx, path)
	if err == nil {
		return info, nil
	}
	logging.WarnWithContext(logging.WithContext(ctx, p.logger), "video metadata unavailable, using defaults", "metadata_default",
		logging.Error(err),
		logging.String("path", path),
		logging.String(logging.FieldErrorHint, "install ffprobe or set media.ffprobe_binary"),
		logging.String(logging.FieldImpact, "overlay timing assumes the default duration"),
	)
	return jobs.VideoInfo{
		DurationSec: p.defaults.DurationSec,
		Width:       p.defaults.Width,
		Height:      p.defaults.Height,
	}, []string{WarnMetadataDefault}
}

func (p *Prober) probe(ctx context.Context, path string) (jobs.VideoInfo, error) {
	result, err := inspectWith(ctx, p.run, p.binary, path)
	if err != nil {
		return jobs.VideoInfo{}, err
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return jobs.VideoInfo{}, fmt.Errorf("ffprobe: duration not found in output")
	}
	info := jobs.VideoInfo{DurationSec: duration, Width: p.defaults.Width, Height: p.defaults.Height}
	if stream, ok := result.VideoStream(); ok {
		if stream.Width > 0 {
			info.Width = stream.Width
		}
		if stream.Height > 0 {
			info.Height = stream.Height
		}
	}
	p.logger.Debug("video metadata probed",
		logging.Float64("duration_sec", info.DurationSec),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Int("audio_streams", result.AudioStreamCount()),
	)
	return info, nil
}
