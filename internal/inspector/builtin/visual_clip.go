package builtin

import (
	"context"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// visualClipThreshold is the temporal-luma-variance level below which a
// clip reads as suspiciously static, the reference stand-in for a
// CLIP-embedding synthetic-image classifier.
const visualClipThreshold = 0.01

// VisualClip is the reference implementation of the visual_clip inspector:
// synthetic faces tend to be unnaturally stable frame to frame, so a clip
// whose temporal luma variance falls well below natural camera noise scores
// as more likely synthetic.
func VisualClip(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) < 2 {
		return 0.5, nil, nil
	}

	deltas := make([]float64, 0, len(grids)-1)
	for i := 1; i < len(grids); i++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		deltas = append(deltas, gridDelta(grids[i].pix, grids[i-1].pix))
	}

	_, std := meanStd(deltas)
	score := clamp01(sigmoid((visualClipThreshold - std) / (visualClipThreshold / 2)))
	return score, nil, nil
}
