package intel

import (
	"context"
	"encoding/json"
	"log/slog"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/overlay"
)

// Warning codes recorded on the job when the primary provider fails.
const (
	WarnInsightsFallback = "insights-heuristic-fallback"
	WarnOverlayFallback  = "overlay-plan-heuristic-fallback"
	WarnRefineFallback   = "refine-heuristic-fallback"
	WarnSceneFallback    = "scene-plan-heuristic-fallback"
)

// Material is what a provider knows about the video.
type Material struct {
	Brief       string
	Transcript  jobs.Transcript
	DurationSec float64
	Insights    []jobs.Insight
}

// Provider produces planning artifacts for a video.
type Provider interface {
	Insights(ctx context.Context, m Material) ([]jobs.Insight, error)
	PlanOverlays(ctx context.Context, m Material) ([]overlay.Event, error)
	Refine(ctx context.Context, m Material, current []overlay.Event, instruction string) ([]overlay.Event, error)
	PlanScenes(ctx context.Context, m Material) (json.RawMessage, error)
}

// Planner runs a primary provider and falls back to the heuristic one. Every
// method returns the warning codes describing the fallbacks taken.
type Planner struct {
	primary   Provider
	heuristic *Heuristic
	logger    *slog.Logger
}

// WithFallback composes primary with heuristic. A nil primary means the
// heuristic answers directly and no warning is emitted.
func WithFallback(primary Provider, heuristic *Heuristic, logger *slog.Logger) *Planner {
	if heuristic == nil {
		heuristic = NewHeuristic()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{primary: primary, heuristic: heuristic, logger: logger}
}

// Insights returns narrative insights ordered by time.
func (p *Planner) Insights(ctx context.Context, m Material) ([]jobs.Insight, []string) {
	if p.primary != nil {
		insights, err := p.primary.Insights(ctx, m)
		if err == nil && len(insights) > 0 {
			return insights, nil
		}
		p.logFallback(ctx, "insights", WarnInsightsFallback, err)
		insights, _ = p.heuristic.Insights(ctx, m)
		return insights, []string{WarnInsightsFallback}
	}
	insights, _ := p.heuristic.Insights(ctx, m)
	return insights, nil
}

// PlanOverlays proposes overlay events, tops them up from the insights and
// makes sure an explicit subscribe request is covered. Events are returned
// with toolkit defaults applied but not yet normalized.
func (p *Planner) PlanOverlays(ctx context.Context, m Material) ([]overlay.Event, []string) {
	var (
		events   []overlay.Event
		warnings []string
	)
	if p.primary != nil {
		planned, err := p.primary.PlanOverlays(ctx, m)
		if err == nil {
			events = planned
		} else {
			p.logFallback(ctx, "overlay_plan", WarnOverlayFallback, err)
			warnings = append(warnings, WarnOverlayFallback)
		}
	}
	if events == nil {
		events, _ = p.heuristic.PlanOverlays(ctx, m)
	}
	events = overlay.ApplyDefaultsAll(events)
	events = enrichWithInsights(events, m.Insights, m.DurationSec)
	events = ensureStrategicCoverage(events, m, "")
	return events, warnings
}

// Refine rewrites current according to instruction.
func (p *Planner) Refine(ctx context.Context, m Material, current []overlay.Event, instruction string) ([]overlay.Event, []string) {
	var (
		events   []overlay.Event
		warnings []string
	)
	if p.primary != nil {
		refined, err := p.primary.Refine(ctx, m, current, instruction)
		if err == nil {
			events = refined
		} else {
			p.logFallback(ctx, "refine", WarnRefineFallback, err)
			warnings = append(warnings, WarnRefineFallback)
		}
	}
	if events == nil {
		events, _ = p.heuristic.Refine(ctx, m, current, instruction)
	}
	events = overlay.ApplyDefaultsAll(events)
	return ensureStrategicCoverage(events, m, instruction), warnings
}

// PlanScenes drafts a raw scene-graph candidate for the quality gate.
func (p *Planner) PlanScenes(ctx context.Context, m Material) (json.RawMessage, []string) {
	if p.primary != nil {
		raw, err := p.primary.PlanScenes(ctx, m)
		if err == nil && len(raw) > 0 {
			return raw, nil
		}
		p.logFallback(ctx, "scene_plan", WarnSceneFallback, err)
		raw, _ = p.heuristic.PlanScenes(ctx, m)
		return raw, []string{WarnSceneFallback}
	}
	raw, _ := p.heuristic.PlanScenes(ctx, m)
	return raw, nil
}

func (p *Planner) logFallback(ctx context.Context, step, code string, err error) {
	attrs := logging.Decision("intel_fallback", "heuristic", code)
	attrs = append(attrs,
		logging.String("step", step),
		logging.String(logging.FieldErrorHint, "check llm api key, model and quota"),
		logging.String(logging.FieldImpact, "heuristic plan used instead of model output"),
	)
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(logging.WithContext(ctx, p.logger), "llm step failed; using heuristic", "intel_fallback", attrs...)
}
