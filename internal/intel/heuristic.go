package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/scene"
	"overlaystudio/internal/textutil"
)

const (
	heuristicSegmentSec = 18
	maxHeuristicInsight = 8
	maxInsights         = 12
	maxInsightOverlays  = 10
	maxRefinedOverlays  = 10
)

// Heuristic plans overlays from keyword rules. It never returns an error.
type Heuristic struct {
	newID func() string
}

// NewHeuristic returns a heuristic provider that assigns random ids.
func NewHeuristic() *Heuristic {
	return &Heuristic{newID: uuid.NewString}
}

func (h *Heuristic) id() string {
	if h == nil || h.newID == nil {
		return uuid.NewString()
	}
	return h.newID()
}

type segment struct {
	startSec float64
	text     string
	score    int
}

// segmentWords buckets words into fixed windows and drops empty windows.
func segmentWords(words []jobs.Word, durationSec, size float64) []segment {
	if len(words) == 0 {
		return nil
	}
	size = math.Max(10, size)
	count := int(math.Max(1, math.Ceil(math.Max(1, durationSec)/size)))
	buckets := make([][]string, count)
	for _, w := range words {
		idx := int(math.Floor(w.StartSec / size))
		idx = max(0, min(count-1, idx))
		buckets[idx] = append(buckets[idx], w.Text)
	}
	segments := make([]segment, 0, count)
	for i, bucket := range buckets {
		text := strings.Join(strings.Fields(strings.Join(bucket, " ")), " ")
		if text == "" {
			continue
		}
		segments = append(segments, segment{startSec: float64(i) * size, text: text})
	}
	return segments
}

// Insights scores 18 second transcript segments and keeps the strongest eight
// in time order. Without any words a single opening hook is returned.
func (h *Heuristic) Insights(_ context.Context, m Material) ([]jobs.Insight, error) {
	segments := segmentWords(m.Transcript.Words, m.DurationSec, heuristicSegmentSec)
	for i := range segments {
		segments[i].score = segmentScore(segments[i].text)
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].score > segments[j].score })
	if len(segments) > maxHeuristicInsight {
		segments = segments[:maxHeuristicInsight]
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].startSec < segments[j].startSec })

	insights := make([]jobs.Insight, 0, len(segments))
	for _, seg := range segments {
		template := templateFor(seg.text)
		role := narrativeRole(seg.text)
		insights = append(insights, jobs.Insight{
			ID:                   h.id(),
			TimeSec:              round2(seg.startSec),
			Topic:                "Key moment near " + formatClock(seg.startSec),
			NarrativeRole:        role,
			TranscriptSnippet:    firstWords(seg.text, 22),
			WhyImportant:         "This stretch carries signals that matter for retention or comprehension.",
			ExpectedImpact:       impactFor(role),
			AnimationDescription: animationFor(template),
			SuggestedTemplate:    template,
			Confidence:           math.Min(0.95, 0.45+float64(seg.score)*0.08),
		})
	}
	if len(insights) > 0 {
		return insights, nil
	}

	fallback := firstNonBlank(m.Brief, m.Transcript.Text, "No content detected.")
	return []jobs.Insight{{
		ID:                   h.id(),
		Topic:                "Content introduction",
		NarrativeRole:        overlay.IntentHook,
		TranscriptSnippet:    textutil.Clip(fallback, 160),
		WhyImportant:         "A visual guide from the start improves comprehension.",
		ExpectedImpact:       "Better retention in the opening of the video.",
		AnimationDescription: "Open with a lower-third that sets the context.",
		SuggestedTemplate:    overlay.TemplateLowerThird,
		Confidence:           0.5,
	}}, nil
}

// PlanOverlays derives one overlay per insight, or applies keyword rules to
// the brief and transcript when there are no insights.
func (h *Heuristic) PlanOverlays(_ context.Context, m Material) ([]overlay.Event, error) {
	if events := h.fromInsights(m.Insights, m.DurationSec); len(events) > 0 {
		return events, nil
	}
	return h.keywordPlan(m.Brief, m), nil
}

func (h *Heuristic) fromInsights(insights []jobs.Insight, durationSec float64) []overlay.Event {
	if len(insights) == 0 {
		return nil
	}
	if len(insights) > maxInsightOverlays {
		insights = insights[:maxInsightOverlays]
	}
	maxStart := math.Max(0, math.Max(1, durationSec)-0.6)
	events := make([]overlay.Event, 0, len(insights))
	for _, in := range insights {
		template := templateForInsight(in)
		topic := textutil.Clip(firstNonBlank(in.Topic, "Key moment"), 64)
		snippet := textutil.Clip(in.TranscriptSnippet, 100)
		impact := textutil.Clip(firstNonBlank(in.ExpectedImpact, "Better clarity and retention."), 120)
		role := strings.ToUpper(firstNonBlank(string(in.NarrativeRole), "highlight"))

		var content overlay.Content
		switch template {
		case overlay.TemplateStatCompare:
			left, right, ok := parseCompareValues(topic + " " + snippet)
			if !ok {
				left, right = "10k", "20k"
			}
			content = overlay.StatCompare{
				Title:      firstNonBlank(textutil.Clip(topic, 34), "Key comparison"),
				LeftLabel:  "Value A",
				LeftValue:  left,
				RightLabel: "Value B",
				RightValue: right,
			}
		case overlay.TemplateSubscribe:
			content = overlay.Subscribe{
				Title:    firstNonBlank(textutil.Clip(topic, 42), "Subscribe for more"),
				Subtitle: textutil.Clip(impact, 56),
			}
		case overlay.TemplateSubscribeSticker:
			content = overlay.SubscribeSticker{
				Text:    firstNonBlank(textutil.Clip(topic, 42), "Subscribe for more"),
				Caption: textutil.Clip(impact, 56),
			}
		case overlay.TemplateCTABanner:
			content = overlay.CTABanner{
				Text:       firstNonBlank(textutil.Clip(topic, 44), "Follow for more"),
				Subtitle:   textutil.Clip(impact, 72),
				ButtonText: "Follow +",
			}
		case overlay.TemplateTextPop:
			content = overlay.TextPop{Text: firstNonBlank(textutil.Clip(topic, 34), "Key point"), Chip: role}
		default:
			content = overlay.LowerThird{
				Title:    firstNonBlank(textutil.Clip(topic, 50), "Important moment"),
				Subtitle: textutil.Clip(impact, 76),
				Kicker:   role,
			}
		}

		confidence := in.Confidence
		if confidence <= 0 {
			confidence = 0.62
		}
		events = append(events, overlay.Event{
			ID:          h.id(),
			StartSec:    clamp(in.TimeSec, 0, maxStart),
			DurationSec: clamp(overlay.DurationFor(template), 2.4, 8),
			Template:    template,
			Payload:     overlay.Payload{Content: content},
			Reasoning:   firstNonBlank(in.WhyImportant, "Moment with narrative value.") + " Expected impact: " + impact,
			Confidence:  confidence,
		})
	}
	return events
}

// keywordPlan opens with a branded lower-third and adds one overlay for each
// rule that fires on the brief and transcript.
func (h *Heuristic) keywordPlan(brief string, m Material) []overlay.Event {
	d := m.DurationSec
	words := m.Transcript.Words
	text := textutil.Fold(brief + " " + m.Transcript.Text)

	events := []overlay.Event{{
		ID:          h.id(),
		StartSec:    0.4,
		DurationSec: math.Min(4, math.Max(2.5, d*0.12)),
		Template:    overlay.TemplateLowerThird,
		Payload: overlay.Payload{Content: overlay.LowerThird{
			Title:    "Featured content",
			Subtitle: "Smart visual summary",
			Kicker:   "HOOK",
		}},
		Confidence: 0.6,
		Reasoning:  "Opening template for branding.",
	}}

	if left, right, ok := parseCompareValues(text); ok {
		events = append(events, overlay.Event{
			ID:          h.id(),
			StartSec:    findWordTime(words, []string{"vs", "versus", "contra"}, d*0.35),
			DurationSec: 5,
			Template:    overlay.TemplateStatCompare,
			Payload: overlay.Payload{Content: overlay.StatCompare{
				Title:      "Key comparison",
				LeftLabel:  "Metric A",
				LeftValue:  left,
				RightLabel: "Metric B",
				RightValue: right,
			}},
			Confidence: 0.72,
			Reasoning:  "Numeric comparison pattern detected.",
		})
	}
	if subscribePattern.MatchString(text) {
		events = append(events, h.subscribeSticker(
			findWordTime(words, []string{"suscrib", "subscribe"}, math.Max(2, d-8)),
			0.88, "Subscribe call detected; sticker format prioritised."))
	}
	if keyPointPattern.MatchString(text) {
		events = append(events, overlay.Event{
			ID:          h.id(),
			StartSec:    findWordTime(words, []string{"importante", "important", "clave", "key", "tip", "truco", "trick", "ojo"}, d*0.55),
			DurationSec: 3,
			Template:    overlay.TemplateTextPop,
			Payload:     overlay.Payload{Content: overlay.TextPop{Text: "Key point", Chip: "IMPORTANT"}},
			Confidence:  0.65,
			Reasoning:   "Informative trigger word detected.",
		})
	}
	if engagementPattern.MatchString(text) {
		events = append(events, overlay.Event{
			ID:          h.id(),
			StartSec:    math.Max(2, d-6),
			DurationSec: 4,
			Template:    overlay.TemplateCTABanner,
			Payload: overlay.Payload{Content: overlay.CTABanner{
				Text:       "Leave a comment and share",
				Subtitle:   "Saving this video boosts its reach",
				ButtonText: "Follow +",
			}},
			Confidence: 0.7,
			Reasoning:  "Engagement call detected.",
		})
	}
	return events
}

func (h *Heuristic) subscribeSticker(start, confidence float64, reasoning string) overlay.Event {
	return overlay.Event{
		ID:          h.id(),
		StartSec:    start,
		DurationSec: 4,
		Template:    overlay.TemplateSubscribeSticker,
		Payload:     overlay.Payload{Content: subscribeCopy()},
		Confidence:  confidence,
		Reasoning:   reasoning,
	}
}

func subscribeCopy() overlay.SubscribeSticker {
	return overlay.SubscribeSticker{Text: "Subscribe to the channel", Badge: "you", Caption: "<subscribe />"}
}

// Refine applies instruction keywords to current: trimming, removing
// subscribe or comparison overlays, raising or lowering energy and adding
// overlays. An empty plan is rebuilt from the brief plus the instruction.
func (h *Heuristic) Refine(_ context.Context, m Material, current []overlay.Event, instruction string) ([]overlay.Event, error) {
	d := m.DurationSec
	ask := textutil.Fold(instruction)
	if len(current) == 0 {
		return h.keywordPlan(m.Brief+" "+instruction, m), nil
	}
	events := overlay.CloneAll(current)

	if removePattern.MatchString(ask) && len(events) > 1 {
		keep := max(1, int(math.Ceil(float64(len(events))*0.6)))
		events = events[:keep]
	}
	dropSubscribe := noSubscribePattern.MatchString(ask)
	if dropSubscribe {
		events = filterEvents(events, func(e overlay.Event) bool { return !isSubscribeTemplate(e.Template) })
	}
	if noComparePattern.MatchString(ask) {
		events = filterEvents(events, func(e overlay.Event) bool { return e.Template != overlay.TemplateStatCompare })
	}
	if energeticPattern.MatchString(ask) {
		for i := range events {
			e := &events[i]
			e.Payload.Design.Energy = "high"
			e.Payload.Motion.Effects = []string{"pulse", "wiggle", "glow", "saturate"}
			e.Payload.Motion.Enter = "stamp"
			if e.Template == overlay.TemplateSubscribeSticker {
				e.Payload.Motion.Enter = "whip-left"
			}
			e.Payload.Motion.Exit = "fade"
			if e.Template == overlay.TemplateCTABanner {
				e.Payload.Motion.Exit = "swipe-right"
			}
		}
	}
	if calmPattern.MatchString(ask) {
		for i := range events {
			e := &events[i]
			e.Payload.Design.Energy = "calm"
			e.Payload.Motion.Effects = []string{"float", "glow"}
			e.Payload.Motion.Enter = "spring-pop"
			if e.Template == overlay.TemplateLowerThird {
				e.Payload.Motion.Enter = "slide-up"
			}
			e.Payload.Motion.Exit = "fade"
		}
	}
	if addPattern.MatchString(ask) && len(events) < maxRefinedOverlays {
		events = append(events, overlay.Event{
			ID:          h.id(),
			StartSec:    d * 0.5,
			DurationSec: 3,
			Template:    overlay.TemplateTextPop,
			Payload:     overlay.Payload{Content: overlay.TextPop{Text: "Key point"}},
			Confidence:  0.55,
			Reasoning:   "Manual adjustment requested by the user.",
		})
	}
	if !dropSubscribe && subscribePattern.MatchString(ask) && !hasSubscribe(events) {
		events = append(events, h.subscribeSticker(math.Max(2, d-6), 0.7, "Manual adjustment requested by the user."))
	}
	return events, nil
}

// PlanScenes lowers up to eight insights into layered scenes: a backing
// pill, a title, an optional subtitle and, for proof moments with a numeric
// comparison, a metric badge.
func (h *Heuristic) PlanScenes(_ context.Context, m Material) (json.RawMessage, error) {
	d := math.Max(1, m.DurationSec)
	maxStart := math.Max(0, d-0.6)
	insights := m.Insights
	if len(insights) > maxHeuristicInsight {
		insights = insights[:maxHeuristicInsight]
	}

	scenes := make([]scene.Scene, 0, max(1, len(insights)))
	if len(insights) == 0 {
		scenes = append(scenes, scene.Scene{
			ID:          "scene-opening",
			StartSec:    0.4,
			DurationSec: math.Min(4, math.Max(2.5, d*0.15)),
			Intent:      overlay.IntentHook,
			StylePack:   "clean",
			Energy:      "balanced",
			Layers: []scene.Layer{
				pillLayer("scene-opening", false),
				textLayer("scene-opening-title", "Key moment of the video", 0.82, 60, 800, "#f8fafc", 20),
			},
		})
	}
	for i, in := range insights {
		id := fmt.Sprintf("scene-%d", i+1)
		if in.ID != "" {
			id = "scene-" + in.ID
		}
		intent := in.NarrativeRole
		if _, ok := overlay.ParseIntent(string(intent)); !ok {
			intent = overlay.IntentExplanation
		}
		title := textutil.Clip(firstNonBlank(in.Topic, in.TranscriptSnippet, "Important moment"), 84)
		subtitle := textutil.Clip(firstNonBlank(in.ExpectedImpact, in.WhyImportant), 120)
		duration := 3.8
		if intent == overlay.IntentProof {
			duration = 4.8
		}
		stylePack := "clean"
		switch intent {
		case overlay.IntentCTA:
			stylePack = "retro-red"
		case overlay.IntentProof:
			stylePack = "comic-blue"
		}

		titleY, titleSize := 0.85, 60.0
		if subtitle != "" {
			titleY, titleSize = 0.78, 54
		}
		layers := []scene.Layer{
			pillLayer(id, subtitle != ""),
			textLayer(id+"-title", title, titleY, titleSize, 800, "#f8fafc", 20),
		}
		if subtitle != "" {
			sub := textLayer(id+"-subtitle", subtitle, 0.88, 30, 600, "#cbd5e1", 21)
			sub.Enter = &scene.Animation{Kind: "fade", FromSec: 0.1, DurationSec: 0.35, Easing: "ease-out"}
			layers = append(layers, sub)
		}
		if intent == overlay.IntentProof {
			if left, right, ok := parseCompareValues(in.Topic + " " + in.TranscriptSnippet); ok {
				layers = append(layers, metricLayer(id+"-metric", left+" vs "+right))
			}
		}

		scenes = append(scenes, scene.Scene{
			ID:          id,
			StartSec:    clamp(in.TimeSec, 0, maxStart),
			DurationSec: duration,
			Intent:      intent,
			StylePack:   stylePack,
			Energy:      "balanced",
			Rationale:   textutil.Clip(in.WhyImportant, 220),
			Layers:      layers,
		})
	}
	return json.Marshal(map[string]any{"scenes": scenes})
}

func pillLayer(id string, tall bool) scene.Layer {
	y, h := 0.85, 0.18
	if tall {
		y, h = 0.82, 0.24
	}
	w := 0.86
	return scene.Layer{
		ID: id + "-bg",
		Body: &scene.ShapeBody{
			Shape: "pill",
			Style: scene.ShapeStyle{
				BaseStyle:    scene.BaseStyle{X: 0.5, Y: y, W: &w, H: &h, Opacity: 0.86, ZIndex: 5},
				Fill:         "#0f172a",
				BorderRadius: 44,
			},
		},
	}
}

func textLayer(id, text string, y, size float64, weight int, color string, z int) scene.Layer {
	return scene.Layer{
		ID: id,
		Body: &scene.TextBody{
			Text: text,
			Style: scene.TextStyle{
				BaseStyle:  scene.BaseStyle{X: 0.5, Y: y, Opacity: 1, ZIndex: z},
				FontSize:   size,
				FontWeight: weight,
				Color:      color,
				Align:      "center",
				MaxWidth:   0.84,
				Shadow:     weight >= 700,
			},
		},
		Enter: &scene.Animation{Kind: "pop", DurationSec: 0.45, Easing: "spring"},
	}
}

func metricLayer(id, value string) scene.Layer {
	return scene.Layer{
		ID: id,
		Body: &scene.MetricBody{
			Label: "Comparison",
			Value: scene.TextValue(value),
			Style: scene.MetricStyle{
				BaseStyle: scene.BaseStyle{X: 0.5, Y: 0.3, Opacity: 1, ZIndex: 30},
				Color:     "#ffffff",
				Accent:    "#22d3ee",
			},
		},
		Enter: &scene.Animation{Kind: "scale", DurationSec: 0.5, Easing: "ease-out"},
	}
}

func filterEvents(events []overlay.Event, keep func(overlay.Event) bool) []overlay.Event {
	out := events[:0]
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func isSubscribeTemplate(t overlay.Template) bool {
	return t == overlay.TemplateSubscribe || t == overlay.TemplateSubscribeSticker
}

func hasSubscribe(events []overlay.Event) bool {
	for _, e := range events {
		if isSubscribeTemplate(e.Template) || overlay.HasSubscribeIntent(e) {
			return true
		}
	}
	return false
}

func impactFor(role overlay.Intent) string {
	switch role {
	case overlay.IntentCTA:
		return "Higher click and follow rate by reinforcing the action in context."
	case overlay.IntentProof:
		return "Clearer data and a more credible argument."
	case overlay.IntentHook:
		return "Better retention in the first seconds of the video."
	case overlay.IntentObjection:
		return "Less drop-off by answering doubts at the friction point."
	case overlay.IntentSummary:
		return "A clearer close that makes the final message easier to recall."
	default:
		return "More narrative clarity and visual rhythm in this segment."
	}
}

func animationFor(t overlay.Template) string {
	switch t {
	case overlay.TemplateStatCompare:
		return "Animated comparison bars that make the numeric gap obvious."
	case overlay.TemplateSubscribeSticker:
		return "Energetic subscribe sticker reinforcing the call to action."
	case overlay.TemplateCTABanner:
		return "CTA banner in the safe area to convert at the end of the block."
	case overlay.TemplateTextPop:
		return "Punchy stamped text that pins down the main idea."
	default:
		return "Lower-third that gives context to the point being made."
	}
}

func formatClock(sec float64) string {
	total := int(math.Max(0, math.Floor(sec)))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func clamp(value, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, value))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
