// Package events collects the AnomalyEvents emitted by every inspector for
// one job, then sorts, deduplicates and clamps them into the wire-stable
// ordering the result payload guarantees.
package events

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"videoscan/internal/model"
)

// Aggregator is safe for concurrent Add calls from the bounded inspector
// fan-out; Finish is called once after every inspector has returned.
type Aggregator struct {
	mu     sync.Mutex
	events []model.AnomalyEvent
}

func New() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Add(events ...model.AnomalyEvent) {
	if len(events) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, events...)
}

// Finish sorts by (timestamp, module, event tag), deduplicates events that
// agree on (module, tag, timestamp, duration) to two decimal places of a
// second — merging their metadata with the later write winning on key
// collision — and clamps any event whose span runs past effectiveDuration,
// tagging the clamp in its metadata.
func (a *Aggregator) Finish(effectiveDuration float64) []model.EventPayload {
	a.mu.Lock()
	defer a.mu.Unlock()

	sort.Slice(a.events, func(i, j int) bool {
		ei, ej := a.events[i], a.events[j]
		if ei.TimestampSec != ej.TimestampSec {
			return ei.TimestampSec < ej.TimestampSec
		}
		if ei.Module != ej.Module {
			return ei.Module < ej.Module
		}
		return ei.EventTag < ej.EventTag
	})

	dedup := make(map[string]int) // dedup key -> index into result
	result := make([]model.AnomalyEvent, 0, len(a.events))

	for _, ev := range a.events {
		if ev.TimestampSec+ev.DurationSec > effectiveDuration {
			overflow := ev.TimestampSec + ev.DurationSec - effectiveDuration
			ev.DurationSec -= overflow
			if ev.DurationSec < 0 {
				ev.DurationSec = 0
			}
			if ev.Metadata == nil {
				ev.Metadata = map[string]any{}
			}
			ev.Metadata["clamped"] = true
		}

		key := dedupKey(ev)
		if idx, ok := dedup[key]; ok {
			for k, v := range ev.Metadata {
				if result[idx].Metadata == nil {
					result[idx].Metadata = map[string]any{}
				}
				result[idx].Metadata[k] = v
			}
			continue
		}
		dedup[key] = len(result)
		result = append(result, ev)
	}

	payloads := make([]model.EventPayload, 0, len(result))
	for _, ev := range result {
		payloads = append(payloads, model.EventPayload{
			Module:   ev.Module,
			Event:    ev.EventTag,
			TS:       ev.TimestampSec,
			Dur:      ev.DurationSec,
			Metadata: ev.Metadata,
		})
	}
	return payloads
}

func dedupKey(ev model.AnomalyEvent) string {
	ts := math.Round(ev.TimestampSec*100) / 100
	dur := math.Round(ev.DurationSec*100) / 100
	return fmt.Sprintf("%s|%s|%.2f|%.2f", ev.Module, ev.EventTag, ts, dur)
}
