package scene

import (
	"encoding/json"

	"overlaystudio/internal/overlay"
)

// DefaultQualityThreshold is the mean score below which a plan is replaced.
const DefaultQualityThreshold = 0.62

// FallbackReason names the path a plan took when the primary step failed.
type FallbackReason string

// Warning codes recorded in QualityReport.Warnings.
const (
	ReasonInvalidSchema      FallbackReason = "scene-plan-invalid-schema"
	ReasonFallbackFromEvents FallbackReason = "scene-plan-fallback-from-events"
	ReasonLowQuality         FallbackReason = "scene-plan-low-quality-fallback"
	ReasonEmpty              FallbackReason = "scene-plan-empty"
)

// Plan is a scene list together with the fallback reason that produced it.
// Reason is empty when the primary step succeeded.
type Plan struct {
	Scenes []Scene
	Reason FallbackReason
}

// Step produces a scene list or fails.
type Step func() ([]Scene, error)

// WithFallback runs primary and, when it fails, runs fallback and tags the
// result with reason. The error is returned only when both steps fail.
func WithFallback(primary, fallback Step, reason FallbackReason) (Plan, error) {
	scenes, err := primary()
	if err == nil {
		return Plan{Scenes: scenes}, nil
	}
	scenes, fallbackErr := fallback()
	if fallbackErr != nil {
		return Plan{Reason: reason}, fallbackErr
	}
	return Plan{Scenes: scenes, Reason: reason}, nil
}

// GateInput carries everything the quality gate needs.
type GateInput struct {
	Candidate      json.RawMessage
	FallbackEvents []overlay.Event
	Words          []Span
	DurationSec    float64
}

// GateResult is the plan the gate settled on and the report that justified it.
type GateResult struct {
	Scenes  []Scene
	Quality QualityReport
}

// Gate compiles candidate plans and replaces them wholesale with the event
// lowering when they are invalid or score below Threshold.
type Gate struct {
	Threshold float64
}

// NewGate returns a gate using threshold, or DefaultQualityThreshold when
// threshold is not positive.
func NewGate(threshold float64) Gate {
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	return Gate{Threshold: threshold}
}

// Optimize compiles the candidate, applies anti-clutter and speech alignment,
// scores the result and falls back to the event lowering when needed.
func (g Gate) Optimize(in GateInput) GateResult {
	threshold := g.Threshold
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	var warnings []string

	fromEvents := func() ([]Scene, error) {
		return CompileScenes(FromEvents(in.FallbackEvents), in.DurationSec)
	}
	plan, err := WithFallback(
		func() ([]Scene, error) { return Compile(in.Candidate, in.DurationSec) },
		fromEvents,
		ReasonInvalidSchema,
	)
	if plan.Reason != "" {
		warnings = append(warnings, string(plan.Reason))
		if err != nil {
			warnings = append(warnings, string(ReasonEmpty))
			return GateResult{Scenes: []Scene{}, Quality: QualityReport{SceneScores: []SceneScore{}, Warnings: warnings}}
		}
		warnings = append(warnings, string(ReasonFallbackFromEvents))
	}

	scenes := g.polish(plan.Scenes, in)
	report := Assess(scenes)

	if report.AverageScore < threshold && len(in.FallbackEvents) > 0 {
		if replacement, err := fromEvents(); err == nil {
			warnings = append(warnings, string(ReasonLowQuality))
			scenes = g.polish(replacement, in)
		}
	}
	if warnings == nil {
		warnings = []string{}
	}
	report.Warnings = warnings
	return GateResult{Scenes: scenes, Quality: report}
}

func (Gate) polish(scenes []Scene, in GateInput) []Scene {
	out := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		out = append(out, AlignToSpeech(AntiClutter(s), in.Words, in.DurationSec))
	}
	return out
}
