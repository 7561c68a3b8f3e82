package inspector

import (
	"context"
	"errors"
	"fmt"

	"videoscan/internal/model"
)

// neutralScore is substituted for any non-Success outcome, per spec §4.4:
// "maximally uncertain" unless the descriptor is fatalOnFailure.
const neutralScore = 0.5

// Runner executes a single inspector under a hard wall-clock timeout,
// isolating panics and out-of-range scores into a tagged InspectorOutcome
// so nothing above this boundary ever sees a raw panic or exception.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run implements spec §4.4. The returned outcome's events already include
// the inspector_failed diagnostic when Kind != Success.
func (r *Runner) Run(ctx context.Context, desc model.InspectorDescriptor, bundle model.SampledMedia, derived *Derived, fn Func) model.InspectorOutcome {
	type result struct {
		score  float64
		events []model.AnomalyEvent
		err    error
	}

	runCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("inspector panicked: %v", p)}
			}
		}()
		score, events, err := fn(runCtx, bundle, derived)
		done <- result{score: score, events: events, err: err}
	}()

	select {
	case <-runCtx.Done():
		if runCtx.Err() == context.DeadlineExceeded {
			return r.neutralize(desc, bundle, model.OutcomeTimeout, "inspector exceeded timeout")
		}
		return r.neutralize(desc, bundle, model.OutcomeError, "cancelled: "+runCtx.Err().Error())
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return r.neutralize(desc, bundle, model.OutcomeTimeout, "inspector exceeded timeout")
			}
			return r.neutralize(desc, bundle, model.OutcomeError, res.err.Error())
		}
		return r.classify(desc, bundle, res.score, res.events)
	}
}

// classify applies spec §4.4's error classification to a clean return:
// clamp out-of-range scores and validate event tags against the
// descriptor's declared vocabulary.
func (r *Runner) classify(desc model.InspectorDescriptor, bundle model.SampledMedia, score float64, events []model.AnomalyEvent) model.InspectorOutcome {
	clamped := false
	if score < 0 {
		score = 0
		clamped = true
	} else if score > 1 {
		score = 1
		clamped = true
	}

	validated := make([]model.AnomalyEvent, 0, len(events))
	for _, ev := range events {
		ev.Module = desc.Name
		if !desc.MayEmit(ev.EventTag) {
			continue
		}
		if ev.TimestampSec+ev.DurationSec > bundle.EffectiveDurationSec {
			overflow := ev.TimestampSec + ev.DurationSec - bundle.EffectiveDurationSec
			ev.DurationSec -= overflow
			if ev.DurationSec < 0 {
				ev.DurationSec = 0
			}
			if ev.Metadata == nil {
				ev.Metadata = map[string]any{}
			}
			ev.Metadata["clamped"] = true
		}
		validated = append(validated, ev)
	}

	detail := ""
	var meta map[string]any
	if clamped {
		detail = "score_clamped"
		meta = map[string]any{"score_clamped": true}
	}

	return model.InspectorOutcome{
		Kind:     model.OutcomeSuccess,
		Score:    desc.Adapter(score),
		Events:   validated,
		Detail:   detail,
		Metadata: meta,
	}
}

// neutralize builds the degraded outcome for Timeout/Error per spec §4.4:
// neutral score (unless fatalOnFailure) plus a synthetic inspector_failed
// diagnostic event spanning the whole effective duration.
func (r *Runner) neutralize(desc model.InspectorDescriptor, bundle model.SampledMedia, kind model.OutcomeKind, reason string) model.InspectorOutcome {
	diagnostic := model.AnomalyEvent{
		Module:       desc.Name,
		EventTag:     "inspector_failed",
		TimestampSec: 0,
		DurationSec:  bundle.EffectiveDurationSec,
		Metadata:     map[string]any{"reason": reason},
	}

	score := neutralScore
	if desc.FatalOnFailure {
		// Fatal inspectors don't contribute a neutral score at all — the
		// orchestrator treats this outcome as job-terminal and never reads
		// Score for a fatal descriptor's failure.
		score = 0
	}

	return model.InspectorOutcome{
		Kind:   kind,
		Score:  score,
		Events: []model.AnomalyEvent{diagnostic},
		Detail: reason,
	}
}
