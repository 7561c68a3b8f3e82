package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// lightingJumpFactor is how many standard deviations above the clip's own
// mean a frame-to-frame global luma change must exceed to be flagged — a
// composite or relit segment tends to produce abrupt jumps a real camera
// under continuous ambient light does not.
const lightingJumpFactor = 2.0

// Lighting tracks global frame luma over time and flags abrupt, out-of-
// character jumps as light_change events.
func Lighting(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) < 3 {
		return 0.5, nil, nil
	}

	luma := make([]float64, len(grids))
	for i, g := range grids {
		m, _ := meanStd(g.pix[:])
		luma[i] = m
	}

	diffs := make([]float64, len(luma)-1)
	for i := 1; i < len(luma); i++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		diffs[i-1] = math.Abs(luma[i] - luma[i-1])
	}

	mean, std := meanStd(diffs)
	if std == 0 {
		return 0, nil, nil
	}

	var events []model.AnomalyEvent
	jumps := 0
	for i, d := range diffs {
		if d > mean+lightingJumpFactor*std {
			jumps++
			events = append(events, model.AnomalyEvent{
				EventTag:     "light_change",
				TimestampSec: grids[i+1].ts,
				DurationSec:  1.0 / float64(bundle.TargetFPS),
				Metadata:     map[string]any{"delta_luma": d},
			})
		}
	}

	score := clamp01(float64(jumps) / float64(len(diffs)) * 5)
	return score, events, nil
}
