// Package fusion combines per-inspector scores into the single confidence
// value and categorical label exposed in the result payload. The weighted
// sum is a direct generalization of
// original_source/backend/app/core/fusion.py, carried over to an open
// weight map so new inspectors can be registered without touching this
// package.
package fusion

import (
	"videoscan/internal/model"
)

// Thresholds per spec §4.5. Confidence >= realConfidenceThreshold means
// LIKELY_REAL (fakeScore is low), confidence < fakeConfidenceThreshold means
// LIKELY_FAKE.
const (
	realConfidenceThreshold = 0.70
	fakeConfidenceThreshold = 0.40
)

// Engine fuses a set of per-inspector outcomes into one AnalysisResult.
// It is stateless and safe for concurrent use.
type Engine struct {
	pipelineVersion string
}

func New(pipelineVersion string) *Engine {
	return &Engine{pipelineVersion: pipelineVersion}
}

// Input is everything the Fusion Engine needs about one completed job to
// produce its AnalysisResult.
type Input struct {
	JobID               model.JobID
	Descriptors         []model.InspectorDescriptor
	Outcomes            map[string]model.InspectorOutcome
	Events              []model.EventPayload
	Transcript          string
	VideoLengthSec      float64
	OriginalLengthSec   float64
	ProcessingTimeSec   float64
}

// Fuse implements spec §4.5: a weighted sum of per-inspector scores,
// confidence = 1 - fakeScore, and the three-way label threshold. A
// zero-weight denominator (every contributing descriptor weighted zero, or
// none ran) resolves to the maximally uncertain 0.5/UNCERTAIN rather than
// dividing by zero.
func (e *Engine) Fuse(in Input) model.AnalysisResult {
	perScore := make(map[string]float64, len(in.Descriptors))

	var weightedSum, weightTotal float64
	for _, desc := range in.Descriptors {
		outcome, ran := in.Outcomes[desc.Name]
		if !ran {
			continue
		}
		perScore[desc.Name] = outcome.Score
		if desc.Weight == 0 {
			continue // transcript-style feature producers never vote
		}
		weightedSum += desc.Weight * outcome.Score
		weightTotal += desc.Weight
	}

	fakeScore := 0.5
	if weightTotal > 0 {
		fakeScore = weightedSum / weightTotal
	}
	if fakeScore < 0 {
		fakeScore = 0
	} else if fakeScore > 1 {
		fakeScore = 1
	}

	confidence := 1 - fakeScore
	label := labelFor(confidence, weightTotal)

	snippet := in.Transcript
	if len(snippet) > 280 {
		snippet = snippet[:280]
	}

	return model.AnalysisResult{
		JobID:              in.JobID,
		Label:              label,
		Confidence:         confidence,
		PerInspectorScores: perScore,
		Events:             in.Events,
		Derived: model.DerivedFields{
			VisualScore:         perScore["visual_clip"],
			VideoLength:         in.VideoLengthSec,
			OriginalVideoLength: in.OriginalLengthSec,
			TranscriptSnippet:   snippet,
			ProcessingTimeSec:   in.ProcessingTimeSec,
			PipelineVersion:     e.pipelineVersion,
		},
	}
}

func labelFor(confidence, weightTotal float64) model.Label {
	if weightTotal == 0 {
		return model.LabelUncertain
	}
	switch {
	case confidence >= realConfidenceThreshold:
		return model.LabelLikelyReal
	case confidence < fakeConfidenceThreshold:
		return model.LabelLikelyFake
	default:
		return model.LabelUncertain
	}
}
