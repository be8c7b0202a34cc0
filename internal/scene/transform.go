package scene

import "math"

// Anti-clutter and speech alignment bounds.
const (
	MaxVisibleLayers = 8
	MaxLoopingLayers = 2
	minLoopAmp       = 0.004
	maxLoopAmp       = 0.03
	defaultLoopAmp   = 0.02

	speechLead     = 0.8
	speechTrail    = 3.5
	speechPad      = 0.25
	minAlignedSpan = 0.6
	maxAlignedSpan = 8
)

// Span is a timed word from the transcript.
type Span struct {
	StartSec float64
	EndSec   float64
}

// AntiClutter keeps the first MaxVisibleLayers layers and at most
// MaxLoopingLayers loops, clamping each retained loop's amplitude.
func AntiClutter(s Scene) Scene {
	s = s.Clone()
	if len(s.Layers) > MaxVisibleLayers {
		s.Layers = s.Layers[:MaxVisibleLayers]
	}
	loops := 0
	for i := range s.Layers {
		loop := s.Layers[i].Loop
		if loop == nil {
			continue
		}
		loops++
		if loops > MaxLoopingLayers {
			s.Layers[i].Loop = nil
			continue
		}
		amp := loop.Params["amp"]
		if amp == 0 || math.IsNaN(amp) {
			amp = defaultLoopAmp
		}
		if loop.Params == nil {
			loop.Params = map[string]float64{}
		}
		loop.Params["amp"] = clamp(amp, minLoopAmp, maxLoopAmp)
	}
	return s
}

// AlignToSpeech stretches a scene so it ends with the speech that surrounds
// it. Words starting within [start-0.8, end+3.5] define the window; without
// nearby words the nominal span is kept. The result stays inside the video.
func AlignToSpeech(s Scene, words []Span, durationSec float64) Scene {
	safeDuration := math.Max(1, durationSec)
	maxEnd := math.Max(0.6, safeDuration-0.1)
	speechEnd := speechWindowEnd(s, words, safeDuration)

	start := clamp(s.StartSec, 0, maxEnd-0.5)
	end := clamp(speechEnd, start+0.5, maxEnd)
	duration := clamp(end-start+speechPad, minAlignedSpan, maxAlignedSpan)

	s = s.Clone()
	s.StartSec = round2(start)
	s.DurationSec = round2(duration)
	return s
}

func speechWindowEnd(s Scene, words []Span, durationSec float64) float64 {
	sceneStart := s.StartSec
	sceneEnd := s.StartSec + s.DurationSec
	if len(words) == 0 {
		return math.Min(durationSec, sceneEnd)
	}
	var last *Span
	for i := range words {
		ws := words[i].StartSec
		if ws >= sceneStart-speechLead && ws <= sceneEnd+speechTrail {
			last = &words[i]
		}
	}
	if last == nil || last.EndSec == 0 {
		return sceneEnd
	}
	return last.EndSec
}
