package intel

import (
	"regexp"
	"strings"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/textutil"
)

// Patterns run against folded text (lowercase, accents stripped), so Spanish
// keywords are written without diacritics.
var (
	digitPattern       = regexp.MustCompile(`\d`)
	comparePattern     = regexp.MustCompile(`vs|versus|contra|compar|resultado|result|crecim|growth|metric|dato|data`)
	ctaPattern         = regexp.MustCompile(`suscrib|subscribe|cta|comenta|comment|sigueme|follow|link|descarga|download`)
	emphasisPattern    = regexp.MustCompile(`importante|important|clave|key|atencion|ojo|tip|truco|trick|error|mistake`)
	objectionPattern   = regexp.MustCompile(`pero|aunque|sin embargo|duda|objec|however|but |doubt`)
	summaryPattern     = regexp.MustCompile(`resumen|conclusion|final|summary|recap`)
	hookPattern        = regexp.MustCompile(`hola|bienvenidos|hoy veremos|empezamos|arranc|hello|welcome|today`)
	subscribePattern   = regexp.MustCompile(`suscrib|subscribe|subscr`)
	stickerPattern     = regexp.MustCompile(`sticker|comic|cartoon|doodle|pegatina`)
	channelPattern     = regexp.MustCompile(`suscrib|subscribe|canal|channel`)
	engagementPattern  = regexp.MustCompile(`comenta|comentario|comment|sigueme|follow|descarga|download|link`)
	keyPointPattern    = regexp.MustCompile(`importante|important|clave|key point|tip|truco|trick|ojo`)
	compareValues      = regexp.MustCompile(`(\d+(?:[.,]\d+)?\s*[km]?)\s*(?:vs|versus|contra)\s*(\d+(?:[.,]\d+)?\s*[km]?)`)
	templateCompare    = regexp.MustCompile(`vs|versus|contra|compar|metrica|metric|dato|data|resultado|result|\d`)
	templateCTA        = regexp.MustCompile(`comenta|comment|sigueme|follow|descarga|download|link|cta`)
	templateEmphasis   = regexp.MustCompile(`importante|important|clave|key|tip|truco|trick|error|mistake|ojo`)
	removePattern      = regexp.MustCompile(`quita|elimina|menos|reduce|remove|fewer|less`)
	noSubscribePattern = regexp.MustCompile(`(?:sin|quita|elimina|no|remove|without)\s+(?:suscrib|subscri)`)
	noComparePattern   = regexp.MustCompile(`(?:sin|quita|elimina|no|remove|without)\s+compar`)
	energeticPattern   = regexp.MustCompile(`mas\s+dinam|mas\s+movimiento|more\s+dynamic|more\s+motion|more\s+energy`)
	calmPattern        = regexp.MustCompile(`mas\s+calm|suave|menos\s+energia|calmer|softer|less\s+energy`)
	addPattern         = regexp.MustCompile(`\bmas\b|anade|agrega|\badd\b|\bmore\b`)
)

// narrativeRole classifies a snippet of transcript.
func narrativeRole(text string) overlay.Intent {
	t := textutil.Fold(text)
	switch {
	case ctaPattern.MatchString(t):
		return overlay.IntentCTA
	case comparePattern.MatchString(t) || digitPattern.MatchString(t):
		return overlay.IntentProof
	case emphasisPattern.MatchString(t):
		return overlay.IntentExplanation
	case objectionPattern.MatchString(t):
		return overlay.IntentObjection
	case summaryPattern.MatchString(t):
		return overlay.IntentSummary
	case hookPattern.MatchString(t):
		return overlay.IntentHook
	default:
		return overlay.IntentTransition
	}
}

// templateFor picks the overlay template that best fits a snippet.
func templateFor(text string) overlay.Template {
	t := textutil.Fold(text)
	switch {
	case channelPattern.MatchString(t):
		return overlay.TemplateSubscribeSticker
	case templateCompare.MatchString(t):
		return overlay.TemplateStatCompare
	case templateCTA.MatchString(t):
		return overlay.TemplateCTABanner
	case templateEmphasis.MatchString(t):
		return overlay.TemplateTextPop
	default:
		return overlay.TemplateLowerThird
	}
}

// templateForInsight honours a valid suggestion before classifying the
// insight's own copy.
func templateForInsight(in jobs.Insight) overlay.Template {
	if in.SuggestedTemplate.Valid() {
		return in.SuggestedTemplate
	}
	return templateFor(in.Topic + " " + in.TranscriptSnippet + " " + in.AnimationDescription)
}

// segmentScore rates how much a transcript segment deserves an overlay.
func segmentScore(text string) int {
	t := textutil.Fold(text)
	score := 0
	if digitPattern.MatchString(t) {
		score += 2
	}
	if comparePattern.MatchString(t) {
		score += 3
	}
	if ctaPattern.MatchString(t) {
		score += 4
	}
	if emphasisPattern.MatchString(t) {
		score += 3
	}
	if len(strings.Fields(t)) > 10 {
		score++
	}
	return score
}

// parseCompareValues extracts "10k vs 25k" style pairs.
func parseCompareValues(text string) (string, string, bool) {
	match := compareValues.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return "", "", false
	}
	strip := func(s string) string { return strings.Join(strings.Fields(s), "") }
	return strip(match[1]), strip(match[2]), true
}

// findWordTime returns the start of the first word containing any of the
// terms, or fallback.
func findWordTime(words []jobs.Word, terms []string, fallback float64) float64 {
	for _, w := range words {
		folded := textutil.Fold(w.Text)
		for _, term := range terms {
			if strings.Contains(folded, term) {
				return w.StartSec
			}
		}
	}
	return fallback
}
