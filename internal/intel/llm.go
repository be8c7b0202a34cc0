package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/services"
	"overlaystudio/internal/services/llm"
)

const (
	llmSegmentSec      = 15
	maxDigestSegments  = 90
	maxTranscriptChars = 12000
	maxPromptInsights  = 10
)

// Completer is the chat-completion surface the LLM provider needs.
type Completer interface {
	CompleteJSON(ctx context.Context, req llm.Request) (string, error)
}

// LLM asks a chat-completion model for JSON plans.
type LLM struct {
	client Completer
	newID  func() string
}

// NewLLM wraps client.
func NewLLM(client Completer) *LLM {
	return &LLM{client: client, newID: uuid.NewString}
}

func (p *LLM) id() string {
	if p.newID == nil {
		return uuid.NewString()
	}
	return p.newID()
}

type insightReply struct {
	ID                   string   `json:"id"`
	TimeSec              float64  `json:"timeSec"`
	Topic                string   `json:"topic"`
	TranscriptSnippet    string   `json:"transcriptSnippet"`
	NarrativeRole        string   `json:"narrativeRole"`
	WhyImportant         string   `json:"whyImportant"`
	ExpectedImpact       string   `json:"expectedImpact"`
	AnimationDescription string   `json:"animationDescription"`
	TemplateSuggestion   string   `json:"templateSuggestion"`
	Confidence           *float64 `json:"confidence"`
}

// Insights asks the model for timeline insights and sanitises them: blank
// ids are filled, whitespace collapsed, missing roles inferred, and the list
// sorted by time and capped at twelve.
func (p *LLM) Insights(ctx context.Context, m Material) ([]jobs.Insight, error) {
	system := strings.Join([]string{
		"You are the lead motion editor for a YouTube channel.",
		"Analyse the video timeline exhaustively and propose visual animation opportunities.",
		`Respond with JSON only, shaped as {"insights":[...]}.`,
		"Each insight must include: timeSec, topic, transcriptSnippet, narrativeRole, whyImportant, expectedImpact, animationDescription, templateSuggestion, confidence.",
		"Allowed templateSuggestion: " + joinTemplates() + ".",
		"Allowed narrativeRole: " + joinIntents() + ".",
		"Write in the language of the transcript, oriented to editing decisions.",
		"Do not invent content outside the given timeline.",
		"At most 12 insights.",
	}, " ")
	user := strings.Join([]string{
		"User brief: " + orNone(m.Brief, "No brief."),
		fmt.Sprintf("Video duration: %.2f seconds.", m.DurationSec),
		"Full transcript: " + orNone(truncate(collapse(m.Transcript.Text), maxTranscriptChars), "Not available."),
		"Timeline digest:\n" + orNone(timelineDigest(m), "Not available."),
		`Goal: proposals like "At mm:ss you talk about X; add animation Y because Z".`,
	}, "\n\n")

	content, err := p.client.CompleteJSON(ctx, llm.Request{System: system, User: user, Temperature: 0.15})
	if err != nil {
		return nil, err
	}
	body, err := validateReply(content, insightsSchema)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "intel", "insights", "reply rejected", err)
	}
	var reply struct {
		Insights []insightReply `json:"insights"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "intel", "insights", "decode reply", err)
	}

	insights := make([]jobs.Insight, 0, len(reply.Insights))
	for _, item := range reply.Insights {
		role, ok := overlay.ParseIntent(item.NarrativeRole)
		if !ok {
			role = narrativeRole(firstNonBlank(item.Topic, item.TranscriptSnippet))
		}
		confidence := 0.62
		if item.Confidence != nil {
			confidence = *item.Confidence
		}
		insights = append(insights, jobs.Insight{
			ID:                   firstNonBlank(item.ID, p.id()),
			TimeSec:              item.TimeSec,
			Topic:                collapse(item.Topic),
			NarrativeRole:        role,
			TranscriptSnippet:    collapse(item.TranscriptSnippet),
			WhyImportant:         collapse(item.WhyImportant),
			ExpectedImpact:       firstNonBlank(collapse(item.ExpectedImpact), "Clearer message and better retention in this stretch."),
			AnimationDescription: collapse(item.AnimationDescription),
			SuggestedTemplate:    overlay.Template(item.TemplateSuggestion),
			Confidence:           confidence,
		})
	}
	sort.SliceStable(insights, func(i, j int) bool { return insights[i].TimeSec < insights[j].TimeSec })
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights, nil
}

// PlanOverlays asks the model for a strategic overlay plan.
func (p *LLM) PlanOverlays(ctx context.Context, m Material) ([]overlay.Event, error) {
	system := strings.Join([]string{
		"You are a senior motion graphics director for YouTube content.",
		"Choose strategic overlays and the best animation strategy for each one.",
		`Return ONLY valid JSON shaped as {"events":[...]}.`,
		"Allowed templates: " + joinTemplates() + ".",
		toolkitPrompt(),
		"Each event must include: template, startSec, durationSec, payload, reasoning, confidence.",
		"In payload always include motion {enter, exit, effects}, stylePack, design {typography, energy, position} and animationSpec {intent, layout, emphasis}.",
		"Design premium overlays: high contrast, layered, energetic and legible.",
		"If there is a subscribe call, prefer the subscribe-sticker template with an expressive style.",
		"At most 8 events. Avoid heavy overlaps and keep the frame clear.",
		fmt.Sprintf("Stay within the total video duration (%.2f seconds).", m.DurationSec),
	}, " ")
	user := strings.Join([]string{
		"User brief: " + orNone(m.Brief, "No extra brief."),
		"Full transcript: " + orNone(m.Transcript.Text, "No transcript."),
		"Prior strategic insights: " + insightsJSON(m.Insights),
		fmt.Sprintf("Video duration: %.2f seconds.", m.DurationSec),
		"Prioritise the opening hook, numeric comparisons, key phrases and the final call to action.",
	}, "\n")
	return p.completeEvents(ctx, "plan_overlays", llm.Request{System: system, User: user, Temperature: 0.2})
}

// Refine asks the model to adjust current according to instruction.
func (p *LLM) Refine(ctx context.Context, m Material, current []overlay.Event, instruction string) ([]overlay.Event, error) {
	plan, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode current plan: %w", err)
	}
	system := strings.Join([]string{
		"You are a senior motion graphics editor.",
		"You receive an existing overlay plan and an adjustment instruction from the user.",
		`Return ONLY JSON shaped as {"events":[...]}.`,
		"Allowed templates: " + joinTemplates() + ".",
		toolkitPrompt(),
		"Typographies: " + strings.Join(overlay.Typographies, ", ") + ".",
		"Energy levels: " + strings.Join(overlay.EnergyLevels, ", ") + ".",
		"Positions: " + strings.Join(overlay.Positions, ", ") + ".",
		"Include motion, stylePack, design and animationSpec in every payload.",
		"Keep a premium look and place overlays strategically without excessive overlap.",
		fmt.Sprintf("Do not exceed the video duration (%.2f seconds).", m.DurationSec),
		"At most 10 events.",
	}, " ")
	user := strings.Join([]string{
		"Original brief: " + orNone(m.Brief, "No brief."),
		"User instruction: " + instruction,
		fmt.Sprintf("Video duration: %.2f seconds.", m.DurationSec),
		"Current plan (JSON): " + string(plan),
		"Transcript: " + orNone(m.Transcript.Text, "No transcript."),
	}, "\n")
	return p.completeEvents(ctx, "refine", llm.Request{System: system, User: user, Temperature: 0.2})
}

// PlanScenes asks the model for a layered scene graph. The reply is returned
// raw; the quality gate validates it.
func (p *LLM) PlanScenes(ctx context.Context, m Material) (json.RawMessage, error) {
	system := strings.Join([]string{
		"You are a motion graphics director for social video.",
		`Return ONLY valid JSON shaped as {"scenes":[...]}.`,
		"Each scene must have: id, startSec, durationSec, intent, stylePack, layers[].",
		"Allowed layer types: text, shape, metric.",
		"Allowed shapes: rect, circle, pill.",
		"Do NOT use templates. Build scenes from layers.",
		"At most 10 scenes and 8 layers per scene.",
		fmt.Sprintf("Maximum video duration: %.2f seconds.", m.DurationSec),
	}, " ")
	user := strings.Join([]string{
		"Brief: " + orNone(m.Brief, "No extra brief."),
		"Transcript: " + truncate(m.Transcript.Text, 10000),
		"Insights: " + insightsJSON(m.Insights),
		"Prioritise visual clarity, legibility and narrative timing.",
	}, "\n\n")

	content, err := p.client.CompleteJSON(ctx, llm.Request{System: system, User: user, Temperature: 0.2})
	if err != nil {
		return nil, err
	}
	body := llm.ExtractJSON(content)
	if !json.Valid([]byte(body)) {
		return nil, services.Wrap(services.ErrExternalTool, "intel", "plan_scenes", "reply is not JSON", ErrUnusableReply)
	}
	return json.RawMessage(body), nil
}

func (p *LLM) completeEvents(ctx context.Context, op string, req llm.Request) ([]overlay.Event, error) {
	content, err := p.client.CompleteJSON(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := validateReply(content, overlayPlanSchema)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "intel", op, "reply rejected", err)
	}
	events, _, err := overlay.ParseEvents(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "intel", op, "decode reply", err)
	}
	return events, nil
}

func timelineDigest(m Material) string {
	segments := segmentWords(m.Transcript.Words, m.DurationSec, llmSegmentSec)
	if len(segments) > maxDigestSegments {
		segments = segments[:maxDigestSegments]
	}
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		end := min(seg.startSec+llmSegmentSec, max(1, m.DurationSec))
		lines = append(lines, fmt.Sprintf("[%s-%s] %s", formatClock(seg.startSec), formatClock(end), firstWords(seg.text, 30)))
	}
	return strings.Join(lines, "\n")
}

func toolkitPrompt() string {
	return strings.Join([]string{
		"Motion toolbox (payload.motion): enter=" + strings.Join(overlay.EnterAnimations, ", "),
		"exit=" + strings.Join(overlay.ExitAnimations, ", "),
		"effects=" + strings.Join(overlay.Effects, ", ") + ".",
		"Style packs (payload.stylePack): " + strings.Join(overlay.StylePacks, ", ") + ".",
		"Animation intents: " + joinIntents() + ".",
		"Animation layouts: " + strings.Join(overlay.Layouts, ", ") + ".",
	}, "; ")
}

func joinTemplates() string {
	names := make([]string, 0, len(overlay.Templates))
	for _, t := range overlay.Templates {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func joinIntents() string {
	names := make([]string, 0, len(overlay.Intents))
	for _, i := range overlay.Intents {
		names = append(names, string(i))
	}
	return strings.Join(names, ", ")
}

func insightsJSON(insights []jobs.Insight) string {
	if len(insights) > maxPromptInsights {
		insights = insights[:maxPromptInsights]
	}
	if insights == nil {
		insights = []jobs.Insight{}
	}
	data, err := json.Marshal(insights)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, limit int) string {
	if r := []rune(text); len(r) > limit {
		return string(r[:limit])
	}
	return text
}

func orNone(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
