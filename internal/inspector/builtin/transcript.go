package builtin

import (
	"context"
	"fmt"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// voiceActivityThreshold is the absolute RMS energy (on the [-1,1] sample
// scale) above which a window counts as voiced, for the coarse
// voice-activity segmentation below.
const voiceActivityThreshold = 0.02

// windowSec is the voice-activity analysis window.
const windowSec = 0.25

// Transcript is the zero-weight feature-extraction slot of spec §4.3: it
// never contributes to fusion and never emits events, it only publishes
// into the Derived bag for lipsync to consume. No ASR engine exists
// anywhere in the retrieval pack, so this reference implementation
// publishes a best-effort voice-activity summary rather than a literal
// transcript — honestly labeled, not a literal speech-to-text result.
func Transcript(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	if !bundle.HasAudio {
		derived.Publish("transcript", "")
		return 0, nil, nil
	}
	samples, rate, err := wavSamples(bundle.AudioPath)
	if err != nil {
		return 0, nil, err
	}
	if rate == 0 || len(samples) == 0 {
		derived.Publish("transcript", "")
		return 0, nil, nil
	}

	windowLen := int(windowSec * float64(rate))
	if windowLen <= 0 {
		derived.Publish("transcript", "")
		return 0, nil, nil
	}

	segments := 0
	voicedWindows := 0
	inSegment := false
	for start := 0; start+windowLen <= len(samples); start += windowLen {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		window := samples[start : start+windowLen]
		rms := rootMeanSquare(window)
		voiced := rms > voiceActivityThreshold
		if voiced {
			voicedWindows++
		}
		if voiced && !inSegment {
			segments++
		}
		inSegment = voiced
	}

	summary := fmt.Sprintf("[voice activity: %d segment(s), %.1fs voiced of %.1fs]",
		segments, float64(voicedWindows)*windowSec, bundle.EffectiveDurationSec)
	derived.Publish("transcript", summary)
	return 0, nil, nil
}

func rootMeanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
