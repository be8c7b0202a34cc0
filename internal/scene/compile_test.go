package scene

import (
	"errors"
	"testing"
)

func TestCompileSortsLayersAndAssignsIDs(t *testing.T) {
	raw := []byte(`{"scenes":[
		{"id":"late","startSec":40,"durationSec":20,"layers":[{"type":"text","text":"Late"}]},
		{"id":"intro","startSec":0,"durationSec":0.4,"layers":[
			{"type":"text","text":"Top","style":{"zIndex":30}},
			{"id":"bg","type":"shape","shape":"rect","style":{"zIndex":5}},
			{"type":"metric","label":"Views","value":"12k"}
		]}
	]}`)

	scenes, err := Compile(raw, 30)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(scenes) != 2 || scenes[0].ID != "intro" || scenes[1].ID != "late" {
		t.Fatalf("expected scenes sorted by start, got %+v", scenes)
	}

	intro := scenes[0]
	if intro.StartSec != 0 || intro.DurationSec != 0.4 {
		t.Fatalf("unexpected intro timing, got %v/%v", intro.StartSec, intro.DurationSec)
	}
	if intro.Intent != "explanation" || intro.StylePack != "clean" || intro.Energy != "balanced" {
		t.Fatalf("expected scene defaults, got %+v", intro)
	}
	wantIDs := []string{"bg", "intro-layer-2", "intro-layer-3"}
	wantKinds := []Kind{KindShape, KindMetric, KindText}
	for i, layer := range intro.Layers {
		if layer.ID != wantIDs[i] || layer.Kind() != wantKinds[i] {
			t.Fatalf("layer %d = %s/%s, want %s/%s", i, layer.ID, layer.Kind(), wantIDs[i], wantKinds[i])
		}
		if i > 0 && intro.Layers[i-1].ZIndex() > layer.ZIndex() {
			t.Fatalf("layers not in paint order: %d before %d", intro.Layers[i-1].ZIndex(), layer.ZIndex())
		}
	}
	metric := intro.Layers[1].Body.(*MetricBody)
	if metric.Value.String() != "12k" || metric.Style.Accent != "#22d3ee" || metric.Style.ZIndex != 10 {
		t.Fatalf("expected metric defaults, got %+v", metric)
	}

	late := scenes[1]
	if late.StartSec != 29.5 || late.DurationSec != 20 {
		t.Fatalf("expected late scene clamped to 29.5/20, got %v/%v", late.StartSec, late.DurationSec)
	}
	text := late.Layers[0].Body.(*TextBody)
	if text.Style.FontSize != 56 || text.Style.FontWeight != 700 || !text.Style.Shadow || text.Style.MaxWidth != 0.8 {
		t.Fatalf("expected text style defaults, got %+v", text.Style)
	}
}

func TestCompileIsAtomic(t *testing.T) {
	cases := map[string]string{
		"unknown layer type": `{"scenes":[
			{"id":"ok","startSec":0,"durationSec":2,"layers":[{"type":"text","text":"Fine"}]},
			{"id":"bad","startSec":3,"durationSec":2,"layers":[{"type":"video","src":"x"}]}
		]}`,
		"shape without kind":   `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"shape"}]}]`,
		"text too long":        `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"text","text":"` + repeat("x", 181) + `"}]}]`,
		"bad colour":           `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"text","text":"x","style":{"color":"red"}}]}]`,
		"foreign style field":  `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"shape","shape":"rect","style":{"fontSize":20}}]}]`,
		"no layers":            `[{"id":"a","startSec":0,"durationSec":2,"layers":[]}]`,
		"unknown scene field":  `[{"id":"a","startSec":0,"durationSec":2,"mood":"sad","layers":[{"type":"text","text":"x"}]}]`,
		"fractional z-index":   `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"text","text":"x","style":{"zIndex":1.5}}]}]`,
		"empty plan":           `{"scenes":[]}`,
		"not json":             `{"scenes":`,
		"missing duration":     `[{"id":"a","startSec":0,"layers":[{"type":"text","text":"x"}]}]`,
		"bad animation easing": `[{"id":"a","startSec":0,"durationSec":2,"layers":[{"type":"text","text":"x","enter":{"kind":"pop","easing":"bounce"}}]}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			scenes, err := Compile([]byte(raw), 30)
			if !errors.Is(err, ErrInvalidScenePlan) {
				t.Fatalf("expected ErrInvalidScenePlan, got %v", err)
			}
			if scenes != nil {
				t.Fatalf("expected no scenes on failure, got %d", len(scenes))
			}
		})
	}
}

func TestCompileScenesRoundTripsFallback(t *testing.T) {
	scenes := FromEvents(sampleEvents())
	compiled, err := CompileScenes(scenes, 30)
	if err != nil {
		t.Fatalf("CompileScenes: %v", err)
	}
	if len(compiled) != len(scenes) {
		t.Fatalf("expected %d scenes, got %d", len(scenes), len(compiled))
	}
	for _, s := range compiled {
		for i := 1; i < len(s.Layers); i++ {
			if s.Layers[i-1].ZIndex() > s.Layers[i].ZIndex() {
				t.Fatalf("scene %s not in paint order", s.ID)
			}
		}
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
