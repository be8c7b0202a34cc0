package overlay

import (
	"math"

	"github.com/google/uuid"
)

// MaxOverrides bounds a single visual editor submission.
const MaxOverrides = 60

// Override is one visual editor change. It either patches the overlay with the
// same id, removes it (Enabled false) or adds a new manual overlay (IsNew, or
// an id that is not in the plan).
type Override struct {
	ID           string   `json:"id"`
	Enabled      *bool    `json:"enabled,omitempty"`
	IsNew        bool     `json:"isNew,omitempty"`
	Template     string   `json:"template,omitempty"`
	StylePack    string   `json:"stylePack,omitempty"`
	Enter        string   `json:"enter,omitempty"`
	Exit         string   `json:"exit,omitempty"`
	Effects      []string `json:"effects,omitempty"`
	Typography   string   `json:"typography,omitempty"`
	Energy       string   `json:"energy,omitempty"`
	Position     string   `json:"position,omitempty"`
	Intent       string   `json:"intent,omitempty"`
	Layout       string   `json:"layout,omitempty"`
	PrimaryColor string   `json:"primaryColor,omitempty"`
	AccentColor  string   `json:"accentColor,omitempty"`
	TextColor    string   `json:"textColor,omitempty"`
	StartSec     *float64 `json:"startSec,omitempty"`
	DurationSec  *float64 `json:"durationSec,omitempty"`
	Title        string   `json:"title,omitempty"`
	Subtitle     string   `json:"subtitle,omitempty"`
}

func (o Override) enabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// SanitizeOverrides drops overrides without an id, caps the list at
// MaxOverrides and blanks every field that is not in the catalogue.
func SanitizeOverrides(in []Override) []Override {
	if len(in) > MaxOverrides {
		in = in[:MaxOverrides]
	}
	out := make([]Override, 0, len(in))
	for _, o := range in {
		if o.ID == "" {
			continue
		}
		if !Template(o.Template).Valid() {
			o.Template = ""
		}
		o.StylePack = enumOr(o.StylePack, StylePacks, "")
		o.Enter = enumOr(o.Enter, EnterAnimations, "")
		o.Exit = enumOr(o.Exit, ExitAnimations, "")
		o.Typography = enumOr(o.Typography, Typographies, "")
		o.Energy = enumOr(o.Energy, EnergyLevels, "")
		o.Position = enumOr(o.Position, Positions, "")
		o.Layout = enumOr(o.Layout, Layouts, "")
		if _, ok := ParseIntent(o.Intent); !ok {
			o.Intent = ""
		}
		if o.Effects != nil {
			o.Effects = filterEffects(o.Effects)
		}
		o.PrimaryColor = NormalizeHex(o.PrimaryColor)
		o.AccentColor = NormalizeHex(o.AccentColor)
		o.TextColor = NormalizeHex(o.TextColor)
		o.StartSec = finitePtr(o.StartSec)
		o.DurationSec = finitePtr(o.DurationSec)
		out = append(out, o)
	}
	return out
}

// ApplyOverrides merges visual editor changes into plan and returns the
// re-normalized result. Overrides are sanitized first.
func ApplyOverrides(plan []Event, overrides []Override, durationSec float64) NormalizeResult {
	overrides = SanitizeOverrides(overrides)
	byID := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		byID[o.ID] = o
	}
	existing := make(map[string]bool, len(plan))
	for _, event := range plan {
		existing[event.ID] = true
	}

	patched := make([]Event, 0, len(plan)+len(overrides))
	for _, event := range plan {
		o, ok := byID[event.ID]
		if !ok {
			patched = append(patched, event.Clone())
			continue
		}
		if !o.enabled() {
			continue
		}
		patched = append(patched, patchEvent(event.Clone(), o))
	}
	for _, o := range overrides {
		if !o.enabled() || (!o.IsNew && existing[o.ID]) {
			continue
		}
		patched = append(patched, manualOverlay(o, durationSec))
	}
	return Normalize(ApplyDefaultsAll(patched), durationSec)
}

func patchEvent(event Event, o Override) Event {
	p := &event.Payload
	if o.StylePack != "" {
		p.StylePack = o.StylePack
	}
	if o.Enter != "" {
		p.Motion.Enter = o.Enter
	}
	if o.Exit != "" {
		p.Motion.Exit = o.Exit
	}
	if o.Effects != nil {
		p.Motion.Effects = append([]string(nil), o.Effects...)
	}
	if o.Typography != "" {
		p.Design.Typography = o.Typography
	}
	if o.Energy != "" {
		p.Design.Energy = o.Energy
	}
	if o.Position != "" {
		p.Design.Position = o.Position
	}
	if o.PrimaryColor != "" {
		p.Design.PrimaryColor = o.PrimaryColor
	}
	if o.AccentColor != "" {
		p.Design.AccentColor = o.AccentColor
	}
	if o.TextColor != "" {
		p.Design.TextColor = o.TextColor
	}
	if o.Intent != "" {
		p.Animation.Intent = Intent(o.Intent)
	}
	if o.Layout != "" {
		p.Animation.Layout = o.Layout
	}

	requested := event.Template
	if o.Template != "" {
		requested = Template(o.Template)
	}
	event.Template = TemplateForVisual(requested, p.Animation.Layout, p.Animation.Intent)
	p.Content = convertContent(p.Content, event.Template).withCopy(o.Title, o.Subtitle)

	if o.StartSec != nil {
		event.StartSec = *o.StartSec
	}
	if o.DurationSec != nil {
		event.DurationSec = *o.DurationSec
	}
	return event
}

func manualOverlay(o Override, durationSec float64) Event {
	intent := IntentExplanation
	if o.Intent != "" {
		intent = Intent(o.Intent)
	}
	layout := orDefault(o.Layout, "quote-focus")
	template := TemplateForVisual(Template(o.Template), layout, intent)
	title := orDefault(o.Title, "New key point")
	subtitle := orDefault(o.Subtitle, "Visual reinforcement added manually.")

	var content Content
	switch template {
	case TemplateStatCompare:
		content = StatCompare{Title: title, LeftLabel: "Before", RightLabel: "After", LeftValue: "10k", RightValue: "20k"}
	case TemplateLowerThird:
		content = LowerThird{Title: title, Subtitle: subtitle, Kicker: "HIGHLIGHT"}
	case TemplateSubscribeSticker:
		content = SubscribeSticker{Text: title, Badge: "you", Caption: subtitle}
	case TemplateCTABanner:
		content = CTABanner{Text: title, Subtitle: subtitle, ButtonText: "Follow +"}
	case TemplateSubscribe:
		content = Subscribe{Title: title, Subtitle: subtitle}
	default:
		content = TextPop{Text: title, Subtitle: subtitle, Chip: "KEY"}
	}

	maxStart := math.Max(0, math.Max(1, durationSec)-0.6)
	start := 0.0
	if o.StartSec != nil {
		start = clamp(*o.StartSec, 0, maxStart)
	}
	duration := 3.0
	if o.DurationSec != nil {
		duration = *o.DurationSec
	}
	energy := orDefault(o.Energy, "balanced")

	return Event{
		ID:          uuid.NewString(),
		StartSec:    start,
		DurationSec: duration,
		Template:    template,
		Payload: Payload{
			Content:   content,
			StylePack: orDefault(o.StylePack, "clean"),
			Motion: Motion{
				Enter:   orDefault(o.Enter, "spring-pop"),
				Exit:    orDefault(o.Exit, "fade"),
				Effects: append([]string(nil), o.Effects...),
			},
			Design: Design{
				Typography:   orDefault(o.Typography, "display-bold"),
				Energy:       energy,
				Position:     orDefault(o.Position, "center"),
				PrimaryColor: o.PrimaryColor,
				AccentColor:  o.AccentColor,
				TextColor:    o.TextColor,
			},
			Animation: AnimationSpec{Intent: intent, Layout: layout, Emphasis: energy},
		},
		Reasoning:  "Overlay added manually in the visual editor.",
		Confidence: 0.6,
	}
}

func finitePtr(value *float64) *float64 {
	if value == nil || !finite(*value) {
		return nil
	}
	return value
}
