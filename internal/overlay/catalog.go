package overlay

// Template identifies the overlay component an event renders with.
type Template string

const (
	TemplateLowerThird       Template = "lower-third"
	TemplateSubscribe        Template = "subscribe"
	TemplateSubscribeSticker Template = "subscribe-sticker"
	TemplateStatCompare      Template = "stat-compare"
	TemplateTextPop          Template = "text-pop"
	TemplateCTABanner        Template = "cta-banner"
)

// Templates lists every supported template in catalogue order.
var Templates = []Template{
	TemplateLowerThird,
	TemplateSubscribe,
	TemplateSubscribeSticker,
	TemplateStatCompare,
	TemplateTextPop,
	TemplateCTABanner,
}

// Valid reports whether t is a known template.
func (t Template) Valid() bool {
	for _, candidate := range Templates {
		if candidate == t {
			return true
		}
	}
	return false
}

// Intent is the narrative role an overlay or scene plays.
type Intent string

const (
	IntentHook        Intent = "hook"
	IntentProof       Intent = "proof"
	IntentExplanation Intent = "explanation"
	IntentObjection   Intent = "objection"
	IntentCTA         Intent = "cta"
	IntentTransition  Intent = "transition"
	IntentSummary     Intent = "summary"
)

// Intents lists the narrative roles.
var Intents = []Intent{IntentHook, IntentProof, IntentExplanation, IntentObjection, IntentCTA, IntentTransition, IntentSummary}

// ParseIntent returns the intent matching value, or false when unknown.
func ParseIntent(value string) (Intent, bool) {
	for _, intent := range Intents {
		if string(intent) == value {
			return intent, true
		}
	}
	return "", false
}

// Catalogue values accepted by the compositor.
var (
	EnterAnimations = []string{"spring-pop", "slide-up", "slide-left", "whip-left", "stamp", "tilt-in"}
	ExitAnimations  = []string{"fade", "shrink", "slide-down", "swipe-right"}
	Effects         = []string{"wiggle", "float", "pulse", "shake", "glow", "saturate"}
	StylePacks      = []string{"clean", "comic-blue", "retro-red"}
	Typographies    = []string{"display-bold", "clean-sans", "editorial", "impact"}
	EnergyLevels    = []string{"calm", "balanced", "high"}
	Positions       = []string{"top", "center", "bottom"}
	Layouts         = []string{"headline-card", "split-bars", "sticker-burst", "quote-focus", "cta-ribbon", "data-pill"}
)

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func enumOr(value string, allowed []string, fallback string) string {
	if contains(allowed, value) {
		return value
	}
	return fallback
}

// MotionProfile carries the amplitude and timing knobs derived from energy.
type MotionProfile struct {
	PulseAmp    float64 `json:"pulseAmp"`
	FloatPx     float64 `json:"floatPx"`
	WiggleDeg   float64 `json:"wiggleDeg"`
	ShakePx     float64 `json:"shakePx"`
	EnterWindow float64 `json:"enterWindow"`
	ExitWindow  float64 `json:"exitWindow"`
}

var energyProfiles = map[string]MotionProfile{
	"calm":     {PulseAmp: 0.015, FloatPx: 4, WiggleDeg: 1.1, ShakePx: 1.1, EnterWindow: 0.34, ExitWindow: 0.2},
	"balanced": {PulseAmp: 0.04, FloatPx: 8, WiggleDeg: 2.2, ShakePx: 2, EnterWindow: 0.26, ExitWindow: 0.22},
	"high":     {PulseAmp: 0.075, FloatPx: 12, WiggleDeg: 3.4, ShakePx: 3.1, EnterWindow: 0.2, ExitWindow: 0.24},
}

// EnergyProfile returns the motion profile for an energy level, defaulting to balanced.
func EnergyProfile(energy string) MotionProfile {
	if profile, ok := energyProfiles[energy]; ok {
		return profile
	}
	return energyProfiles["balanced"]
}

type templateDefaults struct {
	stylePack  string
	enter      string
	exit       string
	effects    []string
	typography string
	energy     string
	position   string
}

var defaultsByTemplate = map[Template]templateDefaults{
	TemplateLowerThird:       {"clean", "tilt-in", "fade", []string{"float", "glow"}, "display-bold", "balanced", "bottom"},
	TemplateSubscribe:        {"retro-red", "stamp", "fade", []string{"pulse", "glow", "float", "saturate"}, "display-bold", "high", "center"},
	TemplateSubscribeSticker: {"comic-blue", "whip-left", "shrink", []string{"wiggle", "pulse", "glow", "saturate"}, "impact", "high", "center"},
	TemplateStatCompare:      {"comic-blue", "slide-left", "fade", []string{"pulse", "float", "glow"}, "clean-sans", "balanced", "center"},
	TemplateTextPop:          {"comic-blue", "stamp", "fade", []string{"pulse", "glow", "shake", "saturate"}, "impact", "high", "center"},
	TemplateCTABanner:        {"clean", "slide-up", "swipe-right", []string{"float", "pulse", "glow"}, "display-bold", "balanced", "bottom"},
}

func defaultsFor(t Template) templateDefaults {
	if d, ok := defaultsByTemplate[t]; ok {
		return d
	}
	return defaultsByTemplate[TemplateTextPop]
}

// DurationFor returns the preferred on-screen seconds for a template.
func DurationFor(t Template) float64 {
	switch t {
	case TemplateStatCompare:
		return 4.8
	case TemplateSubscribe, TemplateSubscribeSticker:
		return 3.8
	case TemplateCTABanner:
		return 4.2
	case TemplateLowerThird:
		return 3.4
	default:
		return 3
	}
}

// IntentFor returns the narrative role a template usually serves.
func IntentFor(t Template) Intent {
	switch t {
	case TemplateStatCompare:
		return IntentProof
	case TemplateSubscribe, TemplateSubscribeSticker, TemplateCTABanner:
		return IntentCTA
	case TemplateTextPop:
		return IntentExplanation
	case TemplateLowerThird:
		return IntentHook
	default:
		return IntentTransition
	}
}

// LayoutFor returns the default layout for a narrative role.
func LayoutFor(intent Intent) string {
	switch intent {
	case IntentProof:
		return "split-bars"
	case IntentCTA:
		return "cta-ribbon"
	case IntentExplanation, IntentObjection:
		return "quote-focus"
	case IntentSummary:
		return "data-pill"
	case IntentHook:
		return "headline-card"
	default:
		return "sticker-burst"
	}
}

// TemplateForVisual resolves the template for a visual-editor choice. An
// explicit valid template wins, then the layout, then the intent.
func TemplateForVisual(t Template, layout string, intent Intent) Template {
	if t.Valid() {
		return t
	}
	switch layout {
	case "split-bars":
		return TemplateStatCompare
	case "sticker-burst":
		return TemplateSubscribeSticker
	case "cta-ribbon":
		return TemplateCTABanner
	case "quote-focus", "data-pill":
		return TemplateTextPop
	case "headline-card":
		return TemplateLowerThird
	}
	switch intent {
	case IntentProof:
		return TemplateStatCompare
	case IntentCTA:
		return TemplateCTABanner
	case IntentHook:
		return TemplateLowerThird
	default:
		return TemplateTextPop
	}
}
