package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// motionSpikeFactor is how many standard deviations above the clip's own
// mean block-motion a frame-to-frame jump must exceed to count as a
// discontinuity — the signature of a spliced or frame-interpolated segment.
const motionSpikeFactor = 2.5

// MotionFlow computes coarse block-level frame-to-frame motion (the grid
// delta already used elsewhere in this package doubles as a motion proxy)
// and flags discontinuities that stand out against the clip's own baseline.
func MotionFlow(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) < 3 {
		return 0.5, nil, nil
	}

	motion := make([]float64, len(grids)-1)
	for i := 1; i < len(grids); i++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		motion[i-1] = gridDelta(grids[i].pix, grids[i-1].pix)
	}

	mean, std := meanStd(motion)
	if std == 0 {
		return 0, nil, nil
	}

	var events []model.AnomalyEvent
	spikes := 0
	for i, m := range motion {
		if m > mean+motionSpikeFactor*std {
			spikes++
			events = append(events, model.AnomalyEvent{
				EventTag:     "flow_spike",
				TimestampSec: grids[i+1].ts,
				DurationSec:  1.0 / float64(bundle.TargetFPS),
				Metadata:     map[string]any{"motion": m},
			})
		}
	}

	score := clamp01(math.Min(1, float64(spikes)/float64(len(motion))*6))
	return score, events, nil
}
