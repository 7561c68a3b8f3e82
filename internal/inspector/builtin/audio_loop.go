package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// audioWindowSec is the comparison window size for loop detection.
const audioWindowSec = 0.5

// audioLoopCorrelationThreshold is the normalized cross-correlation above
// which two non-adjacent windows count as an artificial repeat.
const audioLoopCorrelationThreshold = 0.92

// AudioLoop looks for near-identical, non-adjacent windows in the audio
// track — synthetic voice generators sometimes loop short segments of
// room tone or breath noise verbatim, which a real recording practically
// never does by chance.
func AudioLoop(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	if !bundle.HasAudio {
		return 0.5, nil, nil
	}
	samples, rate, err := wavSamples(bundle.AudioPath)
	if err != nil {
		return 0, nil, err
	}
	if rate == 0 || len(samples) == 0 {
		return 0.5, nil, nil
	}

	windowLen := int(audioWindowSec * float64(rate))
	if windowLen <= 0 || len(samples) < windowLen*4 {
		return 0.5, nil, nil
	}

	numWindows := len(samples) / windowLen
	windows := make([][]float64, numWindows)
	for i := 0; i < numWindows; i++ {
		windows[i] = samples[i*windowLen : (i+1)*windowLen]
	}

	var events []model.AnomalyEvent
	bestCorr := 0.0
	for i := 0; i < numWindows; i++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		for j := i + 2; j < numWindows; j++ {
			c := normalizedCorrelation(windows[i], windows[j])
			if c > bestCorr {
				bestCorr = c
			}
			if c > audioLoopCorrelationThreshold {
				events = append(events, model.AnomalyEvent{
					EventTag:     "audio_loop",
					TimestampSec: float64(i) * audioWindowSec,
					DurationSec:  audioWindowSec,
					Metadata:     map[string]any{"correlation": c, "repeat_at_sec": float64(j) * audioWindowSec},
				})
			}
		}
	}

	score := clamp01(math.Max(0, (bestCorr-0.5)/0.5))
	return score, events, nil
}

func normalizedCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	meanA, stdA := meanStd(a)
	meanB, stdB := meanStd(b)
	if stdA == 0 || stdB == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	cov := sum / float64(len(a))
	return clamp01(cov / (stdA * stdB))
}
