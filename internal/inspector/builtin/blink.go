package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// blinkDarkenFactor is how many standard deviations below the clip's own
// mean the top-half (eye-region proxy) luma must dip to count as a blink.
const blinkDarkenFactor = 1.2

// naturalBlinkIntervalSec brackets the human blink rate (roughly 2-10
// seconds between blinks); intervals far outside this range are flagged.
const (
	minNaturalBlinkIntervalSec = 1.0
	maxNaturalBlinkIntervalSec = 12.0
)

// Blink tracks luma dips in the top half of the frame (a coarse eye-region
// proxy — no face landmark model exists in the retrieval pack) and flags
// blink intervals outside the natural human range as abnormal_blink.
func Blink(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) < 3 {
		return 0.5, nil, nil
	}

	series := make([]float64, len(grids))
	for i, g := range grids {
		series[i] = topHalfMean(g.pix)
	}
	mean, std := meanStd(series)
	if std == 0 {
		return 0.5, nil, nil
	}

	var blinkTimes []float64
	for i, v := range series {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		if v < mean-blinkDarkenFactor*std {
			blinkTimes = append(blinkTimes, grids[i].ts)
		}
	}

	if len(blinkTimes) < 2 {
		// Too few detected blinks to judge rhythm; mildly suspicious but not
		// conclusive over a short clip.
		return 0.4, nil, nil
	}

	var events []model.AnomalyEvent
	abnormal := 0
	for i := 1; i < len(blinkTimes); i++ {
		interval := blinkTimes[i] - blinkTimes[i-1]
		if interval < minNaturalBlinkIntervalSec || interval > maxNaturalBlinkIntervalSec {
			abnormal++
			events = append(events, model.AnomalyEvent{
				EventTag:     "abnormal_blink",
				TimestampSec: blinkTimes[i-1],
				DurationSec:  interval,
				Metadata:     map[string]any{"interval_sec": interval},
			})
		}
	}

	ratio := float64(abnormal) / float64(len(blinkTimes)-1)
	return clamp01(math.Min(1, ratio*1.5)), events, nil
}
