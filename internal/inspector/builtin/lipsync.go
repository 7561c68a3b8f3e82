package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// lipsyncWindowMismatchSec is reported as "min_span_sec" in the metadata of
// the lipsync_mismatch event. The detector correlates the whole clip at once
// and does not split it into runs of this length.
const lipsyncWindowMismatchSec = 0.5

// Lipsync correlates coarse mouth-region movement (bottom-half luma delta,
// no landmark model exists in the retrieval pack) against the audio energy
// envelope. A real speaker's mouth movement tracks their voice energy;
// dubbed or face-swapped footage frequently drifts out of sync.
//
// Per spec this inspector requires the transcript producer to have run
// first. When no transcript was produced (silent or corrupt audio) it
// self-neutralizes rather than failing the job, matching every other
// inspector's graceful-degradation contract.
func Lipsync(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	if derived.Transcript() == "" || !bundle.HasAudio {
		return 0.5, nil, nil
	}

	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) < 3 {
		return 0.5, nil, nil
	}

	samples, rate, err := wavSamples(bundle.AudioPath)
	if err != nil {
		return 0, nil, err
	}
	if rate == 0 || len(samples) == 0 {
		return 0.5, nil, nil
	}

	mouth := make([]float64, len(grids)-1)
	for i := 1; i < len(grids); i++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		mouth[i-1] = math.Abs(bottomHalfMean(grids[i].pix) - bottomHalfMean(grids[i-1].pix))
	}

	audioEnv := resampleAudioEnvelope(samples, rate, grids[1:])

	corr := normalizedCorrelation(mouth, audioEnv)
	score := clamp01(1 - math.Max(0, corr))

	var events []model.AnomalyEvent
	if score > 0.6 {
		events = append(events, model.AnomalyEvent{
			EventTag:     "lipsync_mismatch",
			TimestampSec: grids[0].ts,
			DurationSec:  bundle.EffectiveDurationSec,
			Metadata:     map[string]any{"correlation": corr, "min_span_sec": lipsyncWindowMismatchSec},
		})
	}
	return score, events, nil
}

// resampleAudioEnvelope computes the RMS energy of the audio in the window
// immediately preceding each frame's timestamp, giving one energy value per
// frame to correlate against the mouth-movement series.
func resampleAudioEnvelope(samples []float64, rate int, frames []grayFrame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		end := int(f.ts * float64(rate))
		start := end - rate/10 // ~100ms window
		if start < 0 {
			start = 0
		}
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			out[i] = 0
			continue
		}
		out[i] = rootMeanSquare(samples[start:end])
	}
	return out
}
