package intel

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/scene"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func wordsAt(start float64, text string) []jobs.Word {
	fields := strings.Fields(text)
	words := make([]jobs.Word, 0, len(fields))
	for i, f := range fields {
		s := start + float64(i)*0.5
		words = append(words, jobs.Word{Text: f, StartSec: s, EndSec: s + 0.3})
	}
	return words
}

func templatesOf(events []overlay.Event) []overlay.Template {
	out := make([]overlay.Template, 0, len(events))
	for _, e := range events {
		out = append(out, e.Template)
	}
	return out
}

func TestHeuristicInsightsScoresSegments(t *testing.T) {
	words := append(wordsAt(0, "hola bienvenidos al canal"), wordsAt(20, "este dato es importante 10k vs 25k resultado")...)
	h := &Heuristic{newID: sequentialIDs()}
	insights, err := h.Insights(context.Background(), Material{
		Transcript:  jobs.Transcript{Words: words},
		DurationSec: 60,
	})
	if err != nil {
		t.Fatalf("Insights returned error: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	first, second := insights[0], insights[1]
	if first.TimeSec != 0 || second.TimeSec != 18 {
		t.Fatalf("expected insights at 0 and 18, got %v and %v", first.TimeSec, second.TimeSec)
	}
	if first.NarrativeRole != overlay.IntentHook {
		t.Fatalf("expected hook role, got %q", first.NarrativeRole)
	}
	if second.NarrativeRole != overlay.IntentProof || second.SuggestedTemplate != overlay.TemplateStatCompare {
		t.Fatalf("expected proof/stat-compare, got %q/%q", second.NarrativeRole, second.SuggestedTemplate)
	}
	if second.Confidence != 0.95 {
		t.Fatalf("expected confidence capped at 0.95, got %v", second.Confidence)
	}
	if first.Confidence != 0.45 {
		t.Fatalf("expected base confidence 0.45, got %v", first.Confidence)
	}
	if second.Topic != "Key moment near 00:18" {
		t.Fatalf("unexpected topic %q", second.Topic)
	}
}

func TestHeuristicInsightsWithoutWords(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	insights, _ := h.Insights(context.Background(), Material{Brief: "  Launch   video ", DurationSec: 30})
	if len(insights) != 1 {
		t.Fatalf("expected a single fallback insight, got %d", len(insights))
	}
	if insights[0].NarrativeRole != overlay.IntentHook || insights[0].TranscriptSnippet != "Launch video" {
		t.Fatalf("unexpected fallback insight: %+v", insights[0])
	}
}

func TestHeuristicKeywordPlan(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	events, err := h.PlanOverlays(context.Background(), Material{
		Brief:       "compare 10k vs 25k, remember to subscribe and leave a comment",
		DurationSec: 60,
	})
	if err != nil {
		t.Fatalf("PlanOverlays returned error: %v", err)
	}
	want := []overlay.Template{
		overlay.TemplateLowerThird,
		overlay.TemplateStatCompare,
		overlay.TemplateSubscribeSticker,
		overlay.TemplateCTABanner,
	}
	got := templatesOf(events)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("templates = %v, want %v", got, want)
	}
	compare, ok := events[1].Payload.Content.(overlay.StatCompare)
	if !ok || compare.LeftValue != "10k" || compare.RightValue != "25k" {
		t.Fatalf("unexpected compare content: %#v", events[1].Payload.Content)
	}
	if math.Abs(events[1].StartSec-21) > 1e-9 {
		t.Fatalf("expected compare at 35%% of duration, got %v", events[1].StartSec)
	}
	if events[2].StartSec != 52 || events[3].StartSec != 54 {
		t.Fatalf("unexpected closing starts %v and %v", events[2].StartSec, events[3].StartSec)
	}
}

func TestHeuristicKeywordPlanUsesSpokenTiming(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	words := wordsAt(30, "please subscribe now")
	events, _ := h.PlanOverlays(context.Background(), Material{
		Transcript:  jobs.Transcript{Text: "please subscribe now", Words: words},
		DurationSec: 60,
	})
	if len(events) != 2 || events[1].Template != overlay.TemplateSubscribeSticker {
		t.Fatalf("unexpected plan: %v", templatesOf(events))
	}
	if events[1].StartSec != 30.5 {
		t.Fatalf("expected sticker at the spoken word, got %v", events[1].StartSec)
	}
}

func TestHeuristicPlanFromInsights(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	events, _ := h.PlanOverlays(context.Background(), Material{
		DurationSec: 60,
		Insights: []jobs.Insight{{
			ID:                "i1",
			TimeSec:           100,
			Topic:             "Revenue 10k vs 30k",
			SuggestedTemplate: overlay.TemplateStatCompare,
			NarrativeRole:     overlay.IntentProof,
			Confidence:        0.8,
		}},
	})
	if len(events) != 1 {
		t.Fatalf("expected one event per insight, got %d", len(events))
	}
	e := events[0]
	if e.StartSec != 59.4 || e.DurationSec != 4.8 {
		t.Fatalf("unexpected timing start=%v duration=%v", e.StartSec, e.DurationSec)
	}
	content, ok := e.Payload.Content.(overlay.StatCompare)
	if !ok || content.LeftValue != "10k" || content.RightValue != "30k" {
		t.Fatalf("unexpected content %#v", e.Payload.Content)
	}
	if e.Confidence != 0.8 {
		t.Fatalf("expected insight confidence, got %v", e.Confidence)
	}
}

func TestHeuristicRefine(t *testing.T) {
	base := func() []overlay.Event {
		return overlay.ApplyDefaultsAll([]overlay.Event{
			{ID: "a", StartSec: 1, DurationSec: 3, Template: overlay.TemplateLowerThird, Payload: overlay.Payload{Content: overlay.LowerThird{Title: "Intro"}}},
			{ID: "b", StartSec: 10, DurationSec: 4, Template: overlay.TemplateStatCompare, Payload: overlay.Payload{Content: overlay.StatCompare{Title: "Numbers"}}},
			{ID: "c", StartSec: 20, DurationSec: 4, Template: overlay.TemplateCTABanner, Payload: overlay.Payload{Content: overlay.CTABanner{Text: "Comment below"}}},
		})
	}
	cases := []struct {
		name        string
		instruction string
		check       func(t *testing.T, events []overlay.Event)
	}{
		{
			name:        "drop comparisons",
			instruction: "sin comparativas",
			check: func(t *testing.T, events []overlay.Event) {
				if fmt.Sprint(templatesOf(events)) != fmt.Sprint([]overlay.Template{overlay.TemplateLowerThird, overlay.TemplateCTABanner}) {
					t.Fatalf("unexpected templates %v", templatesOf(events))
				}
			},
		},
		{
			name:        "trim",
			instruction: "Quita algunos overlays",
			check: func(t *testing.T, events []overlay.Event) {
				if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
					t.Fatalf("expected first two events kept, got %v", templatesOf(events))
				}
			},
		},
		{
			name:        "energetic",
			instruction: "Más dinámico por favor",
			check: func(t *testing.T, events []overlay.Event) {
				// "más" also asks for an extra overlay.
				if len(events) != 4 || events[3].Template != overlay.TemplateTextPop {
					t.Fatalf("expected an added text-pop, got %v", templatesOf(events))
				}
				for _, e := range events[:3] {
					if e.Payload.Design.Energy != "high" {
						t.Fatalf("event %s energy = %q", e.ID, e.Payload.Design.Energy)
					}
				}
				if events[2].Payload.Motion.Exit != "swipe-right" || events[0].Payload.Motion.Enter != "stamp" {
					t.Fatalf("unexpected motion %+v / %+v", events[2].Payload.Motion, events[0].Payload.Motion)
				}
			},
		},
		{
			name:        "calm",
			instruction: "hazlo suave",
			check: func(t *testing.T, events []overlay.Event) {
				if events[0].Payload.Motion.Enter != "slide-up" || events[1].Payload.Motion.Enter != "spring-pop" {
					t.Fatalf("unexpected enter animations %q %q", events[0].Payload.Motion.Enter, events[1].Payload.Motion.Enter)
				}
				if events[1].Payload.Design.Energy != "calm" {
					t.Fatalf("expected calm energy, got %q", events[1].Payload.Design.Energy)
				}
			},
		},
		{
			name:        "subscribe",
			instruction: "recuerda suscribirse",
			check: func(t *testing.T, events []overlay.Event) {
				last := events[len(events)-1]
				if len(events) != 4 || last.Template != overlay.TemplateSubscribeSticker || last.StartSec != 54 {
					t.Fatalf("expected appended sticker at 54s, got %v", templatesOf(events))
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Heuristic{newID: sequentialIDs()}
			current := base()
			events, err := h.Refine(context.Background(), Material{DurationSec: 60}, current, tc.instruction)
			if err != nil {
				t.Fatalf("Refine returned error: %v", err)
			}
			tc.check(t, events)
			if len(current) != 3 || current[0].Payload.Design.Energy != "balanced" {
				t.Fatalf("Refine mutated its input")
			}
		})
	}
}

func TestHeuristicRefineRemoveSubscribeDoesNotReAdd(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	current := overlay.ApplyDefaultsAll([]overlay.Event{
		{ID: "a", StartSec: 1, DurationSec: 3, Template: overlay.TemplateLowerThird, Payload: overlay.Payload{Content: overlay.LowerThird{Title: "Intro"}}},
		{ID: "b", StartSec: 10, DurationSec: 4, Template: overlay.TemplateSubscribeSticker, Payload: overlay.Payload{Content: overlay.SubscribeSticker{Text: "Join"}}},
	})
	events, _ := h.Refine(context.Background(), Material{DurationSec: 60}, current, "sin suscripción")
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("expected only the lower-third to remain, got %v", templatesOf(events))
	}
}

func TestHeuristicRefineEmptyPlanRebuilds(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	events, _ := h.Refine(context.Background(), Material{DurationSec: 40}, nil, "add a subscribe reminder")
	if len(events) != 2 || events[1].Template != overlay.TemplateSubscribeSticker {
		t.Fatalf("unexpected rebuilt plan %v", templatesOf(events))
	}
}

func TestHeuristicScenesCompile(t *testing.T) {
	h := &Heuristic{newID: sequentialIDs()}
	material := Material{
		DurationSec: 60,
		Insights: []jobs.Insight{
			{ID: "i1", TimeSec: 2, Topic: "Opening", NarrativeRole: overlay.IntentHook, ExpectedImpact: "Better retention at the start.", WhyImportant: "First seconds decide retention."},
			{ID: "i2", TimeSec: 20, Topic: "Plan 10k vs 25k", NarrativeRole: overlay.IntentProof},
			{ID: "i3", TimeSec: 45, Topic: "Subscribe", NarrativeRole: "unknown"},
		},
	}
	raw, err := h.PlanScenes(context.Background(), material)
	if err != nil {
		t.Fatalf("PlanScenes returned error: %v", err)
	}
	scenes, err := scene.Compile(raw, material.DurationSec)
	if err != nil {
		t.Fatalf("heuristic scenes failed to compile: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	if scenes[1].Intent != overlay.IntentProof || scenes[1].StylePack != "comic-blue" {
		t.Fatalf("unexpected proof scene %+v", scenes[1])
	}
	var metrics int
	for _, layer := range scenes[1].Layers {
		if layer.Kind() == scene.KindMetric {
			metrics++
		}
	}
	if metrics != 1 {
		t.Fatalf("expected a metric layer on the proof scene, got %d", metrics)
	}
	if scenes[2].Intent != overlay.IntentExplanation {
		t.Fatalf("expected unknown role to fall back to explanation, got %q", scenes[2].Intent)
	}

	empty, _ := h.PlanScenes(context.Background(), Material{DurationSec: 10})
	if _, err := scene.Compile(empty, 10); err != nil {
		t.Fatalf("opening scene failed to compile: %v", err)
	}
}
