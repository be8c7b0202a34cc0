package intel

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/textutil"
)

const coverageReason = "Strategic coverage forced by an explicit subscribe request."

// enrichWithInsights tops a short plan up with insight-derived overlays whose
// start second is not already taken, up to min(8, max(3, min(n, 6))) events.
func enrichWithInsights(events []overlay.Event, insights []jobs.Insight, durationSec float64) []overlay.Event {
	if len(insights) == 0 {
		return events
	}
	desired := min(8, max(3, min(len(insights), 6)))
	if len(events) >= desired {
		return events
	}
	taken := make(map[int]bool, len(events))
	for _, e := range events {
		taken[int(math.Round(e.StartSec))] = true
	}
	merged := append([]overlay.Event(nil), events...)
	for _, e := range NewHeuristic().fromInsights(insights, durationSec) {
		if len(merged) >= desired {
			break
		}
		if taken[int(math.Round(e.StartSec))] {
			continue
		}
		merged = append(merged, overlay.ApplyDefaults(e))
	}
	return merged
}

// ensureStrategicCoverage guarantees a subscribe overlay when the brief,
// instruction or transcript asks viewers to subscribe. A CTA or text-pop
// overlay is recycled when present; otherwise a sticker is appended near the
// spoken request. Sticker-style requests also convert plain subscribe cards.
func ensureStrategicCoverage(events []overlay.Event, m Material, instruction string) []overlay.Event {
	text := textutil.Fold(strings.Join([]string{m.Brief, instruction, m.Transcript.Text}, " "))
	covered := overlay.CloneAll(events)
	if covered == nil {
		covered = []overlay.Event{}
	}

	if stickerPattern.MatchString(text) {
		for i, e := range covered {
			if e.Template == overlay.TemplateSubscribe || overlay.HasSubscribeIntent(e) {
				e.Template = overlay.TemplateSubscribeSticker
				covered[i] = overlay.ApplyDefaults(e)
			}
		}
	}
	if !subscribePattern.MatchString(text) || hasSubscribe(covered) {
		return covered
	}

	for i, e := range covered {
		if e.Template != overlay.TemplateCTABanner && e.Template != overlay.TemplateTextPop {
			continue
		}
		e.Template = overlay.TemplateSubscribeSticker
		e.Payload.Content = subscribeCopy()
		e.Reasoning = strings.TrimSpace(e.Reasoning + " " + coverageReason)
		e.Confidence = math.Max(0.7, e.Confidence)
		covered[i] = overlay.ApplyDefaults(e)
		return covered
	}

	start := findWordTime(m.Transcript.Words, []string{"suscrib", "subscribe"}, math.Max(2, m.DurationSec-7))
	return append(covered, overlay.ApplyDefaults(overlay.Event{
		ID:          uuid.NewString(),
		StartSec:    start,
		DurationSec: 4,
		Template:    overlay.TemplateSubscribeSticker,
		Payload:     overlay.Payload{Content: subscribeCopy()},
		Confidence:  0.82,
		Reasoning:   coverageReason,
	}))
}
