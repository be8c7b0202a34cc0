package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Plan bounds enforced by Compile.
const (
	MaxScenes        = 20
	MaxLayers        = 20
	MinSceneDuration = 0.4
	MaxSceneDuration = 20
)

// Compile validates a raw candidate plan and returns the stabilised scenes.
// Any invalid scene fails the whole batch with ErrInvalidScenePlan.
func Compile(raw []byte, durationSec float64) ([]Scene, error) {
	doc, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenePlan, err)
	}
	var plan struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenePlan, err)
	}
	return stabilise(plan.Scenes, durationSec), nil
}

// CompileScenes re-validates typed scenes through the same contract as Compile.
func CompileScenes(scenes []Scene, durationSec float64) ([]Scene, error) {
	raw, err := json.Marshal(map[string]any{"scenes": scenes})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenePlan, err)
	}
	return Compile(raw, durationSec)
}

func stabilise(scenes []Scene, durationSec float64) []Scene {
	maxStart := math.Max(0, durationSec-0.5)
	maxDuration := MaxSceneDuration * 1.0
	if durationSec > 0 {
		maxDuration = math.Min(MaxSceneDuration, durationSec)
	}

	out := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		s = s.Clone()
		s.StartSec = round2(clamp(s.StartSec, 0, maxStart))
		s.DurationSec = round2(clamp(s.DurationSec, MinSceneDuration, maxDuration))
		sort.SliceStable(s.Layers, func(i, j int) bool {
			return s.Layers[i].ZIndex() < s.Layers[j].ZIndex()
		})
		for i := range s.Layers {
			if s.Layers[i].ID == "" {
				s.Layers[i].ID = fmt.Sprintf("%s-layer-%d", s.ID, i+1)
			}
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartSec < out[j].StartSec
	})
	if len(out) > MaxScenes {
		out = out[:MaxScenes]
	}
	return out
}

func clamp(value, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, value))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
