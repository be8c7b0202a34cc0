package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Event is a single timed overlay.
type Event struct {
	ID          string
	StartSec    float64
	DurationSec float64
	Template    Template
	Payload     Payload
	Reasoning   string
	Confidence  float64
}

// EndSec returns the second at which the overlay leaves the screen.
func (e Event) EndSec() float64 {
	return e.StartSec + e.DurationSec
}

// Headline returns the event's primary copy.
func (e Event) Headline() string {
	if e.Payload.Content == nil {
		return ""
	}
	return e.Payload.Content.Headline()
}

// Detail returns the event's supporting copy.
func (e Event) Detail() string {
	if e.Payload.Content == nil {
		return ""
	}
	return e.Payload.Content.Detail()
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	e.Payload.Motion.Effects = append([]string(nil), e.Payload.Motion.Effects...)
	return e
}

// CloneAll deep-copies a plan.
func CloneAll(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, event := range events {
		out[i] = event.Clone()
	}
	return out
}

// Payload holds template copy and presentation settings.
type Payload struct {
	Content   Content
	StylePack string
	Motion    Motion
	Design    Design
	Animation AnimationSpec
}

// Motion selects enter/exit animations, looping effects and the energy profile.
type Motion struct {
	Enter   string   `json:"enter,omitempty"`
	Exit    string   `json:"exit,omitempty"`
	Effects []string `json:"effects,omitempty"`
	MotionProfile
}

type Design struct {
	Typography   string `json:"typography,omitempty"`
	Energy       string `json:"energy,omitempty"`
	Position     string `json:"position,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
	AccentColor  string `json:"accentColor,omitempty"`
	TextColor    string `json:"textColor,omitempty"`
}

type AnimationSpec struct {
	Intent   Intent `json:"intent,omitempty"`
	Layout   string `json:"layout,omitempty"`
	Emphasis string `json:"emphasis,omitempty"`
}

type eventJSON struct {
	ID          string   `json:"id"`
	StartSec    float64  `json:"startSec"`
	DurationSec float64  `json:"durationSec"`
	Template    Template `json:"template"`
	Payload     Payload  `json:"payload"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// MarshalJSON encodes the event in the compositor's camelCase shape.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON(e))
}

// UnmarshalJSON decodes an event leniently: numeric fields may arrive as
// strings, payload fields may use aliases. Unknown templates are rejected.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	event, err := eventFromMap(raw)
	if err != nil {
		return err
	}
	*e = event
	return nil
}

// MarshalJSON flattens the template copy beside the presentation blocks.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if p.Content != nil {
		for key, value := range p.Content.fields() {
			out[key] = value
		}
	}
	if p.StylePack != "" {
		out["stylePack"] = p.StylePack
	}
	if p.Motion.Enter != "" || p.Motion.Exit != "" || len(p.Motion.Effects) > 0 || p.Motion.MotionProfile != (MotionProfile{}) {
		out["motion"] = p.Motion
	}
	if p.Design != (Design{}) {
		out["design"] = p.Design
	}
	if p.Animation != (AnimationSpec{}) {
		out["animationSpec"] = p.Animation
	}
	return json.Marshal(out)
}

var errMissingTemplate = errors.New("overlay template is required")

func eventFromMap(raw map[string]any) (Event, error) {
	template := Template(strings.ToLower(pick(raw, "template")))
	if template == "" {
		return Event{}, errMissingTemplate
	}
	if !template.Valid() {
		return Event{}, fmt.Errorf("unknown template %q", template)
	}
	payloadRaw, _ := raw["payload"].(map[string]any)
	payload, err := payloadFromMap(template, payloadRaw)
	if err != nil {
		return Event{}, err
	}
	confidence := 0.5
	if value, ok := raw["confidence"]; ok && value != nil {
		confidence = coerceNumber(value, 0.5)
	}
	return Event{
		ID:          pick(raw, "id", "uuid"),
		StartSec:    coerceNumber(raw["startSec"], 0),
		DurationSec: coerceNumber(raw["durationSec"], 1),
		Template:    template,
		Payload:     payload,
		Reasoning:   pick(raw, "reasoning"),
		Confidence:  confidence,
	}, nil
}

func payloadFromMap(template Template, raw map[string]any) (Payload, error) {
	content, err := decodeContent(template, raw)
	if err != nil {
		return Payload{}, err
	}
	payload := Payload{Content: content, StylePack: pick(raw, "stylePack")}
	if motion, ok := raw["motion"].(map[string]any); ok {
		payload.Motion = Motion{
			Enter:   pick(motion, "enter"),
			Exit:    pick(motion, "exit"),
			Effects: stringList(motion["effects"]),
			MotionProfile: MotionProfile{
				PulseAmp:    coerceNumber(motion["pulseAmp"], 0),
				FloatPx:     coerceNumber(motion["floatPx"], 0),
				WiggleDeg:   coerceNumber(motion["wiggleDeg"], 0),
				ShakePx:     coerceNumber(motion["shakePx"], 0),
				EnterWindow: coerceNumber(motion["enterWindow"], 0),
				ExitWindow:  coerceNumber(motion["exitWindow"], 0),
			},
		}
		if !finiteProfile(payload.Motion.MotionProfile) {
			payload.Motion.MotionProfile = MotionProfile{}
		}
	}
	if design, ok := raw["design"].(map[string]any); ok {
		payload.Design = Design{
			Typography:   pick(design, "typography"),
			Energy:       pick(design, "energy"),
			Position:     pick(design, "position"),
			PrimaryColor: pick(design, "primaryColor"),
			AccentColor:  pick(design, "accentColor"),
			TextColor:    pick(design, "textColor"),
		}
	}
	if spec, ok := raw["animationSpec"].(map[string]any); ok {
		payload.Animation = AnimationSpec{
			Intent:   Intent(pick(spec, "intent")),
			Layout:   pick(spec, "layout"),
			Emphasis: pick(spec, "emphasis"),
		}
	}
	return payload, nil
}

func finiteProfile(p MotionProfile) bool {
	for _, v := range []float64{p.PulseAmp, p.FloatPx, p.WiggleDeg, p.ShakePx, p.EnterWindow, p.ExitWindow} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text := stringify(item); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// coerceNumber reads a loosely typed numeric field. Missing, zero and empty
// values yield fallback; values that cannot be read as a number yield NaN.
func coerceNumber(value any, fallback float64) float64 {
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		if v == 0 {
			return fallback
		}
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return math.NaN()
		}
		if f == 0 {
			return fallback
		}
		return f
	case string:
		trimmed := strings.TrimSpace(v)
		if v == "" {
			return fallback
		}
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		if f == 0 {
			return fallback
		}
		return f
	case bool:
		if !v {
			return fallback
		}
		return 1
	default:
		return math.NaN()
	}
}
