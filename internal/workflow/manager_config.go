package workflow

import (
	"fmt"
	"log/slog"

	"overlaystudio/internal/config"
	"overlaystudio/internal/ingest"
	"overlaystudio/internal/intel"
	"overlaystudio/internal/media/ffprobe"
	"overlaystudio/internal/render"
	"overlaystudio/internal/services/llm"
	"overlaystudio/internal/transcribe"
)

var (
	_ Ingester          = (*ingest.Ingester)(nil)
	_ Prober            = (*ffprobe.Prober)(nil)
	_ Transcriber       = (*transcribe.Service)(nil)
	_ Planner           = (*intel.Planner)(nil)
	_ render.Compositor = (*render.Command)(nil)
)

// ServicesFromConfig builds the production collaborators. The LLM provider is
// only wired when [llm] is enabled; otherwise the heuristic answers directly.
func ServicesFromConfig(cfg *config.Config, logger *slog.Logger) (Services, error) {
	ingester, err := ingest.FromConfig(cfg, logger)
	if err != nil {
		return Services{}, fmt.Errorf("configure ingest: %w", err)
	}

	var primary intel.Provider
	if cfg.LLM.Enabled {
		primary = intel.NewLLM(llm.NewClient(llm.FromConfig(cfg.LLM)))
	}

	return Services{
		Ingester:    ingester,
		Prober:      ffprobe.NewProber(cfg.Media, logger),
		Transcriber: transcribe.NewService(transcribe.FromConfig(cfg), logger),
		Planner:     intel.WithFallback(primary, intel.NewHeuristic(), logger),
		Compositor:  render.NewCommand(cfg, logger),
	}, nil
}
