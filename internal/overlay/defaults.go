package overlay

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	subscribeIntentPattern = regexp.MustCompile(`suscrib|subscribe|subscr|canal`)
	hexColorPattern        = regexp.MustCompile(`^#(?:[0-9a-f]{3}|[0-9a-f]{6})$`)
)

// ApplyDefaults fills presentation defaults for the event's template, coerces
// every catalogue field to a known value and derives the motion profile from
// the energy level. Events whose copy or reasoning mention subscribing are
// promoted to the sticker template.
func ApplyDefaults(event Event) Event {
	event = event.Clone()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if !event.Template.Valid() {
		event.Template = TemplateTextPop
	}
	if event.Template != TemplateSubscribe && event.Template != TemplateSubscribeSticker && hasSubscribeIntent(event) {
		event.Template = TemplateSubscribeSticker
	}

	p := &event.Payload
	p.Content = convertContent(p.Content, event.Template).withDefaults()

	d := defaultsFor(event.Template)
	p.StylePack = enumOr(lower(p.StylePack), StylePacks, d.stylePack)
	p.Design.Typography = enumOr(lower(p.Design.Typography), Typographies, d.typography)
	p.Design.Energy = enumOr(lower(p.Design.Energy), EnergyLevels, d.energy)
	p.Design.Position = enumOr(lower(p.Design.Position), Positions, d.position)
	p.Design.PrimaryColor = NormalizeHex(p.Design.PrimaryColor)
	p.Design.AccentColor = NormalizeHex(p.Design.AccentColor)
	p.Design.TextColor = NormalizeHex(p.Design.TextColor)

	p.Motion.Enter = enumOr(lower(p.Motion.Enter), EnterAnimations, d.enter)
	p.Motion.Exit = enumOr(lower(p.Motion.Exit), ExitAnimations, d.exit)
	p.Motion.Effects = filterEffects(p.Motion.Effects)
	if len(p.Motion.Effects) == 0 {
		p.Motion.Effects = append([]string(nil), d.effects...)
	}
	p.Motion.MotionProfile = EnergyProfile(p.Design.Energy)

	intent, ok := ParseIntent(lower(string(p.Animation.Intent)))
	if !ok {
		intent = IntentFor(event.Template)
	}
	p.Animation.Intent = intent
	p.Animation.Layout = enumOr(lower(p.Animation.Layout), Layouts, LayoutFor(intent))
	p.Animation.Emphasis = enumOr(lower(p.Animation.Emphasis), EnergyLevels, p.Design.Energy)
	return event
}

// ApplyDefaultsAll applies ApplyDefaults to every event in a plan.
func ApplyDefaultsAll(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, event := range events {
		out = append(out, ApplyDefaults(event))
	}
	return out
}

// NormalizeHex returns a lowercase #rrggbb colour, expanding #rgb, or "" when
// value is not a hex colour.
func NormalizeHex(value string) string {
	v := lower(value)
	if !hexColorPattern.MatchString(v) {
		return ""
	}
	if len(v) == 4 {
		return string([]byte{'#', v[1], v[1], v[2], v[2], v[3], v[3]})
	}
	return v
}

// HasSubscribeIntent reports whether the event's copy or reasoning asks the
// viewer to subscribe.
func HasSubscribeIntent(event Event) bool {
	return hasSubscribeIntent(event)
}

func hasSubscribeIntent(event Event) bool {
	var digest strings.Builder
	if event.Payload.Content != nil {
		if data, err := json.Marshal(event.Payload.Content.fields()); err == nil {
			digest.Write(data)
		}
	}
	digest.WriteByte(' ')
	digest.WriteString(event.Reasoning)
	return subscribeIntentPattern.MatchString(strings.ToLower(digest.String()))
}

func filterEffects(effects []string) []string {
	out := make([]string, 0, len(effects))
	for _, effect := range effects {
		effect = lower(effect)
		if contains(Effects, effect) && !contains(out, effect) {
			out = append(out, effect)
		}
	}
	return out
}

func lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
