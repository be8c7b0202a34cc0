package scene

import (
	"fmt"

	"overlaystudio/internal/overlay"
	"overlaystudio/internal/textutil"
)

const (
	titleLimit    = 84
	subtitleLimit = 120
)

// FromEvents lowers overlay events one-to-one into scenes: a background pill,
// a title and, when the event has supporting copy, a subtitle. Output depends
// only on the events, so repeated calls produce identical plans.
func FromEvents(events []overlay.Event) []Scene {
	if len(events) > MaxScenes {
		events = events[:MaxScenes]
	}
	scenes := make([]Scene, 0, len(events))
	for i, event := range events {
		id := event.ID
		if id == "" {
			id = fmt.Sprintf("scene-%d", i+1)
		}
		title := textutil.Clip(event.Headline(), titleLimit)
		if title == "" {
			title = "Key moment"
		}
		subtitle := textutil.Clip(event.Detail(), subtitleLimit)

		layers := []Layer{backgroundLayer(id, subtitle != ""), titleLayer(id, title, subtitle != "")}
		if subtitle != "" {
			layers = append(layers, subtitleLayer(id, subtitle))
		}

		intent := event.Payload.Animation.Intent
		if _, ok := overlay.ParseIntent(string(intent)); !ok {
			intent = overlay.IntentExplanation
		}
		stylePack := event.Payload.StylePack
		if stylePack == "" {
			stylePack = "clean"
		}
		energy := event.Payload.Design.Energy
		if energy == "" {
			energy = "balanced"
		}
		start := event.StartSec
		if start < 0 || !finite(start) {
			start = 0
		}
		duration := event.DurationSec
		if duration <= 0 || !finite(duration) {
			duration = 3
		}

		scenes = append(scenes, Scene{
			ID:          id,
			StartSec:    start,
			DurationSec: clamp(duration, MinSceneDuration, MaxSceneDuration),
			Intent:      intent,
			StylePack:   stylePack,
			Energy:      energy,
			Rationale:   textutil.Clip(event.Reasoning, 220),
			Layers:      layers,
		})
	}
	return scenes
}

func backgroundLayer(id string, withSubtitle bool) Layer {
	w, h := 0.86, 0.18
	if withSubtitle {
		h = 0.24
	}
	return Layer{
		ID: id + "-bg",
		Body: &ShapeBody{
			Shape: "pill",
			Style: ShapeStyle{
				BaseStyle:    BaseStyle{X: 0.5, Y: 0.82, W: &w, H: &h, Opacity: 0.86, ZIndex: 5},
				Fill:         "#0f172a",
				BorderRadius: 40,
			},
		},
	}
}

func titleLayer(id, title string, withSubtitle bool) Layer {
	y, size := 0.82, 60.0
	if withSubtitle {
		y, size = 0.78, 54
	}
	return Layer{
		ID: id + "-title",
		Body: &TextBody{
			Text: title,
			Style: TextStyle{
				BaseStyle:  BaseStyle{X: 0.5, Y: y, Opacity: 1, ZIndex: 20},
				FontSize:   size,
				FontWeight: 800,
				Color:      "#f8fafc",
				Align:      "center",
				MaxWidth:   0.82,
				Shadow:     true,
			},
		},
		Enter: &Animation{Kind: "pop", DurationSec: 0.45, Easing: "spring"},
	}
}

func subtitleLayer(id, subtitle string) Layer {
	return Layer{
		ID: id + "-subtitle",
		Body: &TextBody{
			Text: subtitle,
			Style: TextStyle{
				BaseStyle:  BaseStyle{X: 0.5, Y: 0.87, Opacity: 0.96, ZIndex: 21},
				FontSize:   30,
				FontWeight: 600,
				Color:      "#cbd5e1",
				Align:      "center",
				MaxWidth:   0.84,
			},
		},
		Enter: &Animation{Kind: "fade", FromSec: 0.1, DurationSec: 0.35, Easing: "ease-out"},
	}
}
