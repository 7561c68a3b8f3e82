package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// artifactSpikeFactor flags a frame whose grid luma spread (standard
// deviation across its grid cells) exceeds the clip-wide mean spread by this
// many standard deviations, the stand-in for a GAN-artifact discriminator
// response.
const artifactSpikeFactor = 2.0

// VisualArtifacts scans per-frame grid variance for localized spikes —
// blocky or warped regions a generative model leaves behind — and emits a
// visual_artifact event at each spike.
func VisualArtifacts(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) == 0 {
		return 0.5, nil, nil
	}

	variances := make([]float64, len(grids))
	for i, g := range grids {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		_, std := meanStd(g.pix[:])
		variances[i] = std
	}

	mean, std := meanStd(variances)
	if std == 0 {
		return 0, nil, nil
	}

	var events []model.AnomalyEvent
	spikes := 0
	for i, v := range variances {
		if v > mean+artifactSpikeFactor*std {
			spikes++
			events = append(events, model.AnomalyEvent{
				EventTag:     "visual_artifact",
				TimestampSec: grids[i].ts,
				DurationSec:  1.0 / float64(bundle.TargetFPS),
				Metadata:     map[string]any{"local_variance": v},
			})
		}
	}

	ratio := float64(spikes) / float64(len(grids))
	score := clamp01(math.Min(1, ratio*5))
	return score, events, nil
}
