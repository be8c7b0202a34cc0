package scene

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"overlaystudio/internal/overlay"
	"overlaystudio/internal/textutil"
)

// CTAPhrases are the words that make a text layer read as a call to action.
var CTAPhrases = []string{
	"actua", "ahora", "reserva", "llama", "empieza", "haz",
	"subscribe", "follow", "sign up", "book", "call", "start", "join", "download", "buy", "click", "try",
}

// QualityReport summarises scene scores for a plan.
type QualityReport struct {
	AverageScore float64      `json:"averageScore"`
	SceneScores  []SceneScore `json:"sceneScores"`
	Warnings     []string     `json:"warnings"`
}

type SceneScore struct {
	SceneID    string         `json:"sceneId"`
	Intent     overlay.Intent `json:"intent"`
	Score      float64        `json:"score"`
	LayerCount int            `json:"layerCount"`
	Rationale  string         `json:"rationale,omitempty"`
}

// Score rates a compiled scene in [0,1]. earlier holds the scenes that precede
// it in the plan and is used to penalise structural repetition.
func Score(s Scene, earlier []Scene) float64 {
	var texts []*TextBody
	var shapes, metrics, loops int
	for _, layer := range s.Layers {
		switch body := layer.Body.(type) {
		case *TextBody:
			texts = append(texts, body)
		case *ShapeBody:
			shapes++
		case *MetricBody:
			metrics++
		}
		if layer.Loop != nil {
			loops++
		}
	}

	score := 1.0
	if len(s.Layers) > 8 {
		score -= 0.25
	}
	if len(texts) > 3 {
		score -= 0.18
	}
	if loops > 2 {
		score -= 0.16
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Rationale)) < 16 {
		score -= 0.08
	}
	for _, text := range texts {
		if utf8.RuneCountInString(strings.TrimSpace(text.Text)) > 120 {
			score -= 0.08
		}
		if text.Style.FontSize < 26 {
			score -= 0.08
		}
		if text.Style.MaxWidth > 0.9 {
			score -= 0.05
		}
	}
	if s.Intent == overlay.IntentProof && metrics == 0 {
		score -= 0.15
	}
	if s.Intent == overlay.IntentCTA && !hasCallToAction(texts) {
		score -= 0.1
	}

	fingerprint := structure(s)
	duplicates := 0
	for _, other := range earlier {
		if structure(other) == fingerprint {
			duplicates++
		}
	}
	if duplicates > 0 {
		score -= min(0.2, float64(duplicates)*0.08)
	}
	if shapes == 0 && metrics == 0 {
		score -= 0.08
	}
	return clamp(round3(score), 0, 1)
}

// Assess scores every scene against the scenes before it.
func Assess(scenes []Scene) QualityReport {
	report := QualityReport{SceneScores: make([]SceneScore, 0, len(scenes)), Warnings: []string{}}
	total := 0.0
	for i, s := range scenes {
		score := Score(s, scenes[:i])
		total += score
		report.SceneScores = append(report.SceneScores, SceneScore{
			SceneID:    s.ID,
			Intent:     s.Intent,
			Score:      score,
			LayerCount: len(s.Layers),
			Rationale:  s.Rationale,
		})
	}
	if len(scenes) > 0 {
		report.AverageScore = round3(total / float64(len(scenes)))
	}
	return report
}

func hasCallToAction(texts []*TextBody) bool {
	for _, text := range texts {
		if textutil.ContainsAnyWord(text.Text, CTAPhrases) {
			return true
		}
	}
	return false
}

// structure fingerprints the ordered layer geometry of a scene.
func structure(s Scene) string {
	var b strings.Builder
	for _, layer := range s.Layers {
		var shape string
		var x, y, w, h float64
		if body, ok := layer.Body.(*ShapeBody); ok {
			shape = body.Shape
		}
		if layer.Body != nil {
			base := layer.Body.Base()
			x, y = base.X, base.Y
			if base.W != nil {
				w = *base.W
			}
			if base.H != nil {
				h = *base.H
			}
		}
		fmt.Fprintf(&b, "%s/%s/%g/%g/%g/%g|", layer.Kind(), shape, x, y, w, h)
	}
	return b.String()
}
