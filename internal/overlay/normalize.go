package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Timing bounds applied by Normalize.
const (
	MaxEvents        = 12
	MinEventDuration = 0.5
	MaxEventDuration = 12
	tailReserve      = 0.5
	overlapGuard     = 0.2
	pushGap          = 0.1
	minVisibleSpan   = 0.45
)

// NormalizeResult is the outcome of Normalize. Dropped lists the ids of
// candidates that did not survive, in input order of discovery.
type NormalizeResult struct {
	Events  []Event
	Dropped []string
}

// Normalize orders candidate events, clamps them into the content duration and
// resolves overlaps by pushing later events forward. At most MaxEvents survive.
// Candidates whose timing is not a finite number, that fall past the cap, or
// that end up shorter than a perceptible span are dropped.
func Normalize(candidates []Event, durationSec float64) NormalizeResult {
	result := NormalizeResult{Events: []Event{}}

	valid := make([]Event, 0, len(candidates))
	for i, candidate := range candidates {
		event := candidate.Clone()
		if event.ID == "" {
			event.ID = fmt.Sprintf("overlay-%d", i+1)
		}
		if !finite(event.StartSec) || !finite(event.DurationSec) {
			result.Dropped = append(result.Dropped, event.ID)
			continue
		}
		valid = append(valid, event)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].StartSec < valid[j].StartSec
	})
	if len(valid) > MaxEvents {
		for _, event := range valid[MaxEvents:] {
			result.Dropped = append(result.Dropped, event.ID)
		}
		valid = valid[:MaxEvents]
	}

	maxStart := math.Max(0, durationSec-tailReserve)
	for _, event := range valid {
		start := clamp(event.StartSec, 0, maxStart)
		duration := clamp(event.DurationSec, MinEventDuration, MaxEventDuration)
		end := clamp(start+duration, MinEventDuration, durationSec)

		if n := len(result.Events); n > 0 {
			prevEnd := result.Events[n-1].EndSec()
			if start < prevEnd-overlapGuard {
				start = clamp(prevEnd+pushGap, 0, maxStart)
				end = clamp(start+duration, MinEventDuration, durationSec)
				if start < prevEnd-overlapGuard {
					result.Dropped = append(result.Dropped, event.ID)
					continue
				}
			}
		}
		if end-start < minVisibleSpan {
			result.Dropped = append(result.Dropped, event.ID)
			continue
		}

		event.StartSec = round2(start)
		event.DurationSec = round2(floor2(end) - event.StartSec)
		if !finite(event.Confidence) {
			event.Confidence = 0.5
		}
		event.Confidence = clamp(event.Confidence, 0, 1)
		result.Events = append(result.Events, event)
	}
	return result
}

// ErrNoEvents reports a payload without an events list.
var ErrNoEvents = errors.New("payload has no events list")

// ParseEvents decodes untrusted generator output. It accepts either a bare
// array or an object with an "events" array. Entries that are not objects or
// name an unknown template are skipped; their ids (or positions) are returned
// as skipped.
func ParseEvents(data []byte) ([]Event, []string, error) {
	data = bytes.TrimSpace(data)
	var items []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, nil, fmt.Errorf("decode events: %w", err)
		}
	} else {
		var envelope struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, nil, fmt.Errorf("decode events: %w", err)
		}
		if envelope.Events == nil {
			return nil, nil, ErrNoEvents
		}
		items = envelope.Events
	}

	events := make([]Event, 0, len(items))
	var skipped []string
	for i, item := range items {
		var raw map[string]any
		if err := json.Unmarshal(item, &raw); err != nil || raw == nil {
			skipped = append(skipped, fmt.Sprintf("#%d", i+1))
			continue
		}
		event, err := eventFromMap(raw)
		if err != nil {
			label := pick(raw, "id", "uuid")
			if label == "" {
				label = fmt.Sprintf("#%d", i+1)
			}
			skipped = append(skipped, label)
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

func clamp(value, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, value))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// floor2 rounds down to 2 decimals so a rounded end never passes the bound it
// was clamped to.
func floor2(value float64) float64 {
	return math.Floor(value*100+1e-6) / 100
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
