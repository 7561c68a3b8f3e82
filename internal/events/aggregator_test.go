package events

import (
	"testing"

	"videoscan/internal/model"
)

func TestFinishSortsByTimestampThenModuleThenTag(t *testing.T) {
	a := New()
	a.Add(
		model.AnomalyEvent{Module: "z", EventTag: "x", TimestampSec: 5},
		model.AnomalyEvent{Module: "a", EventTag: "x", TimestampSec: 1},
		model.AnomalyEvent{Module: "b", EventTag: "x", TimestampSec: 1},
	)
	out := a.Finish(100)
	if len(out) != 3 {
		t.Fatalf("expected 3 events, got %d", len(out))
	}
	if out[0].Module != "a" || out[1].Module != "b" || out[2].Module != "z" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestFinishDedupMergesMetadata(t *testing.T) {
	a := New()
	a.Add(
		model.AnomalyEvent{Module: "m", EventTag: "t", TimestampSec: 2.001, DurationSec: 1, Metadata: map[string]any{"x": 1}},
		model.AnomalyEvent{Module: "m", EventTag: "t", TimestampSec: 2.002, DurationSec: 1, Metadata: map[string]any{"y": 2}},
	)
	out := a.Finish(100)
	if len(out) != 1 {
		t.Fatalf("expected dedup to 1 event, got %d", len(out))
	}
	if out[0].Metadata["x"] != 1 || out[0].Metadata["y"] != 2 {
		t.Fatalf("expected merged metadata, got %+v", out[0].Metadata)
	}
}

func TestFinishClampsOverrunningEvents(t *testing.T) {
	a := New()
	a.Add(model.AnomalyEvent{Module: "m", EventTag: "t", TimestampSec: 9, DurationSec: 5})
	out := a.Finish(10)
	if len(out) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out))
	}
	if out[0].TS+out[0].Dur > 10.0001 {
		t.Fatalf("expected event clamped to effective duration, got ts=%v dur=%v", out[0].TS, out[0].Dur)
	}
	if out[0].Metadata["clamped"] != true {
		t.Fatalf("expected clamped metadata flag set")
	}
}

func TestFinishOnEmptyAggregatorReturnsEmptySlice(t *testing.T) {
	a := New()
	out := a.Finish(30)
	if len(out) != 0 {
		t.Fatalf("expected no events, got %d", len(out))
	}
}
