package fusion

import (
	"testing"
	"time"

	"videoscan/internal/model"
)

func descriptors() []model.InspectorDescriptor {
	return []model.InspectorDescriptor{
		{Name: "a", Weight: 0.6, Timeout: time.Second},
		{Name: "b", Weight: 0.4, Timeout: time.Second},
		{Name: "transcript", Weight: 0, Timeout: time.Second},
	}
}

func TestFuseLikelyReal(t *testing.T) {
	e := New("v1")
	result := e.Fuse(Input{
		JobID:       "job-1",
		Descriptors: descriptors(),
		Outcomes: map[string]model.InspectorOutcome{
			"a":          {Kind: model.OutcomeSuccess, Score: 0.05},
			"b":          {Kind: model.OutcomeSuccess, Score: 0.10},
			"transcript": {Kind: model.OutcomeSuccess, Score: 0},
		},
	})
	if result.Label != model.LabelLikelyReal {
		t.Fatalf("expected LIKELY_REAL, got %s (confidence=%.3f)", result.Label, result.Confidence)
	}
	if result.Confidence < 0.7 {
		t.Fatalf("expected confidence >= 0.70, got %.3f", result.Confidence)
	}
}

func TestFuseLikelyFake(t *testing.T) {
	e := New("v1")
	result := e.Fuse(Input{
		JobID:       "job-2",
		Descriptors: descriptors(),
		Outcomes: map[string]model.InspectorOutcome{
			"a": {Kind: model.OutcomeSuccess, Score: 0.95},
			"b": {Kind: model.OutcomeSuccess, Score: 0.85},
		},
	})
	if result.Label != model.LabelLikelyFake {
		t.Fatalf("expected LIKELY_FAKE, got %s (confidence=%.3f)", result.Label, result.Confidence)
	}
}

func TestFuseUncertainBand(t *testing.T) {
	e := New("v1")
	result := e.Fuse(Input{
		JobID:       "job-3",
		Descriptors: descriptors(),
		Outcomes: map[string]model.InspectorOutcome{
			"a": {Kind: model.OutcomeSuccess, Score: 0.5},
			"b": {Kind: model.OutcomeSuccess, Score: 0.5},
		},
	})
	if result.Label != model.LabelUncertain {
		t.Fatalf("expected UNCERTAIN, got %s (confidence=%.3f)", result.Label, result.Confidence)
	}
}

func TestFuseZeroWeightResolvesToUncertain(t *testing.T) {
	e := New("v1")
	result := e.Fuse(Input{
		JobID:       "job-4",
		Descriptors: []model.InspectorDescriptor{{Name: "transcript", Weight: 0, Timeout: time.Second}},
		Outcomes: map[string]model.InspectorOutcome{
			"transcript": {Kind: model.OutcomeSuccess, Score: 0},
		},
	})
	if result.Label != model.LabelUncertain || result.Confidence != 0.5 {
		t.Fatalf("expected UNCERTAIN/0.5 on zero total weight, got %s/%.3f", result.Label, result.Confidence)
	}
}

func TestFusePipelineVersionStamped(t *testing.T) {
	e := New("videoscan_v7")
	result := e.Fuse(Input{JobID: "job-5", Descriptors: descriptors(), Outcomes: map[string]model.InspectorOutcome{}})
	if result.Derived.PipelineVersion != "videoscan_v7" {
		t.Fatalf("expected pipeline version stamped, got %q", result.Derived.PipelineVersion)
	}
}
