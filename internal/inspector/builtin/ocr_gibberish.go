package builtin

import (
	"context"
	"math"

	"videoscan/internal/inspector"
	"videoscan/internal/model"
)

// ocrEdgeThreshold is the minimum lower-third edge-energy level treated as
// "probable on-screen text present" — no OCR engine exists anywhere in the
// retrieval pack, so this is an edge-density proxy rather than a character
// recognizer. It flags suspiciously jittery caption regions, not literal
// gibberish text.
const ocrEdgeThreshold = 0.04

// OCRGibberish looks for unstable high-frequency content in the lower third
// of the frame — where on-screen captions usually sit — and flags frames
// whose caption-region energy spikes inconsistently with its neighbors, a
// pattern generative inpainting of overlay text tends to leave.
func OCRGibberish(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
	grids, err := loadGrayFrames(bundle.Frames)
	if err != nil {
		return 0, nil, err
	}
	if len(grids) == 0 {
		return 0.5, nil, nil
	}

	energies := make([]float64, len(grids))
	for i, g := range grids {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		energies[i] = lowerThirdEdgeEnergy(g.pix)
	}

	var events []model.AnomalyEvent
	flagged := 0
	for i := 1; i < len(energies); i++ {
		if energies[i] > ocrEdgeThreshold && math.Abs(energies[i]-energies[i-1]) > ocrEdgeThreshold {
			flagged++
			events = append(events, model.AnomalyEvent{
				EventTag:     "gibberish_text",
				TimestampSec: grids[i].ts,
				DurationSec:  1.0 / float64(bundle.TargetFPS),
				Metadata:     map[string]any{"edge_energy": energies[i]},
			})
		}
	}

	score := clamp01(float64(flagged) / float64(len(grids)) * 4)
	return score, events, nil
}

func lowerThirdEdgeEnergy(g [gridSize * gridSize]float64) float64 {
	startRow := gridSize - gridSize/3
	if startRow < 1 {
		startRow = 1
	}
	sum := 0.0
	n := 0
	for row := startRow; row < gridSize; row++ {
		for col := 1; col < gridSize; col++ {
			idx := row*gridSize + col
			left := row*gridSize + col - 1
			above := (row-1)*gridSize + col
			dx := g[idx] - g[left]
			dy := g[idx] - g[above]
			sum += math.Sqrt(dx*dx + dy*dy)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
