package scene

import (
	"encoding/json"
	"fmt"
	"strconv"

	"overlaystudio/internal/overlay"
)

// Scene is a timed layer group.
type Scene struct {
	ID          string         `json:"id"`
	StartSec    float64        `json:"startSec"`
	DurationSec float64        `json:"durationSec"`
	Intent      overlay.Intent `json:"intent"`
	StylePack   string         `json:"stylePack"`
	Energy      string         `json:"energy"`
	Rationale   string         `json:"rationale,omitempty"`
	Layers      []Layer        `json:"layers"`
}

// UnmarshalJSON applies scene-level defaults for absent fields.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type plain Scene
	decoded := plain{Intent: overlay.IntentExplanation, StylePack: "clean", Energy: "balanced"}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Scene(decoded)
	return nil
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	layers := make([]Layer, len(s.Layers))
	for i, layer := range s.Layers {
		layers[i] = layer.Clone()
	}
	s.Layers = layers
	return s
}

// CloneAll deep-copies a scene plan.
func CloneAll(scenes []Scene) []Scene {
	if scenes == nil {
		return nil
	}
	out := make([]Scene, len(scenes))
	for i, s := range scenes {
		out[i] = s.Clone()
	}
	return out
}

// Kind discriminates layer bodies.
type Kind string

const (
	KindText   Kind = "text"
	KindShape  Kind = "shape"
	KindMetric Kind = "metric"
)

// Layer is one primitive visual. Body is a *TextBody, *ShapeBody or
// *MetricBody.
type Layer struct {
	ID    string
	Body  Body
	Enter *Animation
	Loop  *Animation
	Exit  *Animation
}

// Body is the kind-specific part of a layer.
type Body interface {
	Kind() Kind
	Base() *BaseStyle
	clone() Body
}

// Kind returns the layer's discriminator, or "" for a layer without a body.
func (l Layer) Kind() Kind {
	if l.Body == nil {
		return ""
	}
	return l.Body.Kind()
}

// ZIndex returns the paint order of the layer.
func (l Layer) ZIndex() int {
	if l.Body == nil {
		return 0
	}
	return l.Body.Base().ZIndex
}

// Clone returns a deep copy of the layer.
func (l Layer) Clone() Layer {
	if l.Body != nil {
		l.Body = l.Body.clone()
	}
	l.Enter = l.Enter.clone()
	l.Loop = l.Loop.clone()
	l.Exit = l.Exit.clone()
	return l
}

// BaseStyle holds placement shared by every layer kind. Coordinates are
// fractions of the frame.
type BaseStyle struct {
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	W           *float64 `json:"w,omitempty"`
	H           *float64 `json:"h,omitempty"`
	Opacity     float64  `json:"opacity"`
	RotationDeg float64  `json:"rotationDeg"`
	ZIndex      int      `json:"zIndex"`
}

func defaultBase() BaseStyle {
	return BaseStyle{X: 0.5, Y: 0.5, Opacity: 1, ZIndex: 10}
}

func (b BaseStyle) clone() BaseStyle {
	if b.W != nil {
		w := *b.W
		b.W = &w
	}
	if b.H != nil {
		h := *b.H
		b.H = &h
	}
	return b
}

type TextStyle struct {
	BaseStyle
	FontSize   float64 `json:"fontSize"`
	FontWeight int     `json:"fontWeight"`
	Color      string  `json:"color"`
	Align      string  `json:"align"`
	MaxWidth   float64 `json:"maxWidth"`
	Shadow     bool    `json:"shadow"`
}

type ShapeStyle struct {
	BaseStyle
	Fill         string  `json:"fill"`
	BorderRadius float64 `json:"borderRadius"`
	Blur         float64 `json:"blur"`
}

type MetricStyle struct {
	BaseStyle
	Color  string `json:"color"`
	Accent string `json:"accent"`
}

type TextBody struct {
	Text  string
	Style TextStyle
}

type ShapeBody struct {
	Shape string
	Style ShapeStyle
}

type MetricBody struct {
	Label string
	Value MetricValue
	Style MetricStyle
}

func (*TextBody) Kind() Kind   { return KindText }
func (*ShapeBody) Kind() Kind  { return KindShape }
func (*MetricBody) Kind() Kind { return KindMetric }

func (b *TextBody) Base() *BaseStyle   { return &b.Style.BaseStyle }
func (b *ShapeBody) Base() *BaseStyle  { return &b.Style.BaseStyle }
func (b *MetricBody) Base() *BaseStyle { return &b.Style.BaseStyle }

func (b *TextBody) clone() Body {
	c := *b
	c.Style.BaseStyle = b.Style.BaseStyle.clone()
	return &c
}

func (b *ShapeBody) clone() Body {
	c := *b
	c.Style.BaseStyle = b.Style.BaseStyle.clone()
	return &c
}

func (b *MetricBody) clone() Body {
	c := *b
	c.Style.BaseStyle = b.Style.BaseStyle.clone()
	return &c
}

func defaultTextStyle() TextStyle {
	return TextStyle{BaseStyle: defaultBase(), FontSize: 56, FontWeight: 700, Color: "#ffffff", Align: "center", MaxWidth: 0.8, Shadow: true}
}

func defaultShapeStyle() ShapeStyle {
	return ShapeStyle{BaseStyle: defaultBase(), Fill: "#2f6bff", BorderRadius: 20}
}

func defaultMetricStyle() MetricStyle {
	return MetricStyle{BaseStyle: defaultBase(), Color: "#ffffff", Accent: "#22d3ee"}
}

// MetricValue is a metric reading that is either numeric or free text.
type MetricValue struct {
	Number  float64
	Text    string
	Numeric bool
}

// NumberValue returns a numeric metric value.
func NumberValue(v float64) MetricValue { return MetricValue{Number: v, Numeric: true} }

// TextValue returns a textual metric value.
func TextValue(v string) MetricValue { return MetricValue{Text: v} }

func (v MetricValue) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

func (v MetricValue) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*v = NumberValue(number)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("metric value must be a number or string: %w", err)
	}
	*v = TextValue(text)
	return nil
}

// Animation is one enter, loop or exit slot of a layer.
type Animation struct {
	Kind        string             `json:"kind"`
	FromSec     float64            `json:"fromSec"`
	DurationSec float64            `json:"durationSec"`
	Easing      string             `json:"easing"`
	Params      map[string]float64 `json:"params,omitempty"`
}

func (a *Animation) UnmarshalJSON(data []byte) error {
	type plain Animation
	decoded := plain{DurationSec: 0.6, Easing: "ease-out"}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = Animation(decoded)
	return nil
}

func (a *Animation) clone() *Animation {
	if a == nil {
		return nil
	}
	c := *a
	if a.Params != nil {
		c.Params = make(map[string]float64, len(a.Params))
		for k, v := range a.Params {
			c.Params[k] = v
		}
	}
	return &c
}

type layerJSON struct {
	ID    string          `json:"id,omitempty"`
	Type  Kind            `json:"type"`
	Text  string          `json:"text,omitempty"`
	Shape string          `json:"shape,omitempty"`
	Label string          `json:"label,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Style json.RawMessage `json:"style,omitempty"`
	Enter *Animation      `json:"enter,omitempty"`
	Loop  *Animation      `json:"loop,omitempty"`
	Exit  *Animation      `json:"exit,omitempty"`
}

// MarshalJSON encodes the layer with its "type" discriminator.
func (l Layer) MarshalJSON() ([]byte, error) {
	wire := layerJSON{ID: l.ID, Type: l.Kind(), Enter: l.Enter, Loop: l.Loop, Exit: l.Exit}
	var style any
	switch body := l.Body.(type) {
	case *TextBody:
		wire.Text = body.Text
		style = body.Style
	case *ShapeBody:
		wire.Shape = body.Shape
		style = body.Style
	case *MetricBody:
		wire.Label = body.Label
		value, err := body.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		wire.Value = value
		style = body.Style
	default:
		return nil, fmt.Errorf("layer %q has no body", l.ID)
	}
	encoded, err := json.Marshal(style)
	if err != nil {
		return nil, err
	}
	wire.Style = encoded
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a layer by its "type", filling style defaults for
// absent fields.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var wire layerJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	layer := Layer{ID: wire.ID, Enter: wire.Enter, Loop: wire.Loop, Exit: wire.Exit}
	switch wire.Type {
	case KindText:
		body := &TextBody{Text: wire.Text, Style: defaultTextStyle()}
		if err := decodeStyle(wire.Style, &body.Style); err != nil {
			return err
		}
		layer.Body = body
	case KindShape:
		body := &ShapeBody{Shape: wire.Shape, Style: defaultShapeStyle()}
		if err := decodeStyle(wire.Style, &body.Style); err != nil {
			return err
		}
		layer.Body = body
	case KindMetric:
		body := &MetricBody{Label: wire.Label, Style: defaultMetricStyle()}
		if len(wire.Value) > 0 {
			if err := body.Value.UnmarshalJSON(wire.Value); err != nil {
				return err
			}
		}
		if err := decodeStyle(wire.Style, &body.Style); err != nil {
			return err
		}
		layer.Body = body
	default:
		return fmt.Errorf("unknown layer type %q", wire.Type)
	}
	*l = layer
	return nil
}

func decodeStyle(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode layer style: %w", err)
	}
	return nil
}
