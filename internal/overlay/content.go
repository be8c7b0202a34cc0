package overlay

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Content is the template-specific copy carried by an overlay payload. The
// concrete types are LowerThird, Subscribe, SubscribeSticker, StatCompare,
// TextPop and CTABanner.
type Content interface {
	Template() Template
	// Headline is the primary line a viewer reads first.
	Headline() string
	// Detail is the supporting line, empty when the template has none.
	Detail() string

	withDefaults() Content
	withCopy(title, subtitle string) Content
	fields() map[string]any
}

type LowerThird struct {
	Title    string
	Subtitle string
	Kicker   string
}

type Subscribe struct {
	Title    string
	Subtitle string
	Eyebrow  string
}

type SubscribeSticker struct {
	Text    string
	Badge   string
	Caption string
}

type StatCompare struct {
	Title      string
	LeftLabel  string
	LeftValue  string
	RightLabel string
	RightValue string
}

type TextPop struct {
	Text     string
	Subtitle string
	Chip     string
}

type CTABanner struct {
	Text       string
	Subtitle   string
	ButtonText string
}

func (LowerThird) Template() Template       { return TemplateLowerThird }
func (Subscribe) Template() Template        { return TemplateSubscribe }
func (SubscribeSticker) Template() Template { return TemplateSubscribeSticker }
func (StatCompare) Template() Template      { return TemplateStatCompare }
func (TextPop) Template() Template          { return TemplateTextPop }
func (CTABanner) Template() Template        { return TemplateCTABanner }

func (c LowerThird) Headline() string       { return c.Title }
func (c Subscribe) Headline() string        { return c.Title }
func (c SubscribeSticker) Headline() string { return c.Text }
func (c StatCompare) Headline() string      { return c.Title }
func (c TextPop) Headline() string          { return c.Text }
func (c CTABanner) Headline() string        { return c.Text }

func (c LowerThird) Detail() string       { return c.Subtitle }
func (c Subscribe) Detail() string        { return c.Subtitle }
func (c SubscribeSticker) Detail() string { return c.Caption }
func (c TextPop) Detail() string          { return c.Subtitle }
func (c CTABanner) Detail() string        { return c.Subtitle }

func (c StatCompare) Detail() string {
	if c.LeftValue == "" && c.RightValue == "" {
		return ""
	}
	return fmt.Sprintf("%s %s vs %s %s", c.LeftLabel, c.LeftValue, c.RightLabel, c.RightValue)
}

func (c LowerThird) withDefaults() Content {
	c.Title = orDefault(c.Title, "Key headline")
	c.Subtitle = orDefault(c.Subtitle, "Strategic insight")
	c.Kicker = orDefault(c.Kicker, "HIGHLIGHT")
	return c
}

func (c Subscribe) withDefaults() Content {
	c.Title = orDefault(c.Title, "Subscribe for more")
	c.Subtitle = orDefault(c.Subtitle, "New videos every week")
	c.Eyebrow = orDefault(c.Eyebrow, "Creator growth trigger")
	return c
}

func (c SubscribeSticker) withDefaults() Content {
	c.Text = orDefault(c.Text, "subscribe to my channel")
	c.Badge = orDefault(c.Badge, "you")
	c.Caption = orDefault(c.Caption, "<subscribe />")
	return c
}

func (c StatCompare) withDefaults() Content {
	c.Title = orDefault(c.Title, "Comparison")
	c.LeftLabel = orDefault(c.LeftLabel, "A")
	c.RightLabel = orDefault(c.RightLabel, "B")
	c.LeftValue = orDefault(c.LeftValue, "0")
	c.RightValue = orDefault(c.RightValue, "0")
	return c
}

func (c TextPop) withDefaults() Content {
	c.Text = orDefault(c.Text, "Key point")
	c.Chip = orDefault(c.Chip, "IMPORTANT")
	return c
}

func (c CTABanner) withDefaults() Content {
	c.Text = orDefault(c.Text, "Follow for more")
	c.Subtitle = orDefault(c.Subtitle, "Comment, save and share this video")
	c.ButtonText = orDefault(c.ButtonText, "Follow +")
	return c
}

func (c LowerThird) withCopy(title, subtitle string) Content {
	c.Title = orDefault(title, c.Title)
	c.Subtitle = orDefault(subtitle, c.Subtitle)
	return c
}

func (c Subscribe) withCopy(title, subtitle string) Content {
	c.Title = orDefault(title, c.Title)
	c.Subtitle = orDefault(subtitle, c.Subtitle)
	return c
}

func (c SubscribeSticker) withCopy(title, subtitle string) Content {
	c.Text = orDefault(title, c.Text)
	c.Caption = orDefault(subtitle, c.Caption)
	return c
}

func (c StatCompare) withCopy(title, _ string) Content {
	c.Title = orDefault(title, c.Title)
	return c
}

func (c TextPop) withCopy(title, subtitle string) Content {
	c.Text = orDefault(title, c.Text)
	c.Subtitle = orDefault(subtitle, c.Subtitle)
	return c
}

func (c CTABanner) withCopy(title, subtitle string) Content {
	c.Text = orDefault(title, c.Text)
	c.Subtitle = orDefault(subtitle, c.Subtitle)
	return c
}

func (c LowerThird) fields() map[string]any {
	return compact(map[string]any{"title": c.Title, "subtitle": c.Subtitle, "kicker": c.Kicker})
}

func (c Subscribe) fields() map[string]any {
	return compact(map[string]any{"title": c.Title, "subtitle": c.Subtitle, "eyebrow": c.Eyebrow})
}

func (c SubscribeSticker) fields() map[string]any {
	return compact(map[string]any{"text": c.Text, "badge": c.Badge, "caption": c.Caption})
}

func (c StatCompare) fields() map[string]any {
	return compact(map[string]any{
		"title":      c.Title,
		"leftLabel":  c.LeftLabel,
		"leftValue":  c.LeftValue,
		"rightLabel": c.RightLabel,
		"rightValue": c.RightValue,
	})
}

func (c TextPop) fields() map[string]any {
	return compact(map[string]any{"text": c.Text, "subtitle": c.Subtitle, "chip": c.Chip})
}

func (c CTABanner) fields() map[string]any {
	return compact(map[string]any{"text": c.Text, "subtitle": c.Subtitle, "buttonText": c.ButtonText})
}

// decodeContent builds the content for template t from loosely typed payload
// fields, honouring the aliases upstream generators use.
func decodeContent(t Template, raw map[string]any) (Content, error) {
	switch t {
	case TemplateLowerThird:
		return LowerThird{
			Title:    pick(raw, "title", "text"),
			Subtitle: pick(raw, "subtitle", "caption"),
			Kicker:   pick(raw, "kicker"),
		}, nil
	case TemplateSubscribe:
		return Subscribe{
			Title:    pick(raw, "title", "text"),
			Subtitle: pick(raw, "subtitle", "caption"),
			Eyebrow:  pick(raw, "eyebrow"),
		}, nil
	case TemplateSubscribeSticker:
		return SubscribeSticker{
			Text:    pick(raw, "text", "title"),
			Badge:   pick(raw, "badge"),
			Caption: pick(raw, "caption"),
		}, nil
	case TemplateStatCompare:
		return StatCompare{
			Title:      pick(raw, "title", "description"),
			LeftLabel:  pick(raw, "leftLabel", "label1", "seriesA"),
			LeftValue:  pick(raw, "leftValue", "stat1", "valueA", "a"),
			RightLabel: pick(raw, "rightLabel", "label2", "seriesB"),
			RightValue: pick(raw, "rightValue", "stat2", "valueB", "b"),
		}, nil
	case TemplateTextPop:
		return TextPop{
			Text:     pick(raw, "text", "title"),
			Subtitle: pick(raw, "subtitle", "caption"),
			Chip:     pick(raw, "chip"),
		}, nil
	case TemplateCTABanner:
		return CTABanner{
			Text:       pick(raw, "text", "title"),
			Subtitle:   pick(raw, "subtitle", "caption"),
			ButtonText: pick(raw, "buttonText", "cta"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown template %q", t)
	}
}

// convertContent re-homes copy from one template's content onto another.
func convertContent(c Content, to Template) Content {
	if c == nil {
		next, _ := decodeContent(to, nil)
		return next
	}
	if c.Template() == to {
		return c
	}
	next, _ := decodeContent(to, nil)
	return next.withCopy(c.Headline(), c.Detail())
}

func pick(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if text := stringify(value); text != "" {
				return text
			}
		}
	}
	return ""
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func compact(fields map[string]any) map[string]any {
	for key, value := range fields {
		if s, ok := value.(string); ok && s == "" {
			delete(fields, key)
		}
	}
	return fields
}
