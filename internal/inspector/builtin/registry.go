package builtin

import (
	"videoscan/internal/inspector"
)

// Entries binds every descriptor in inspector.DefaultDescriptors to its
// reference implementation in this package, in the order cmd/server wires
// into the Registry.
func Entries() []inspector.Entry {
	runs := map[string]inspector.Func{
		"visual_clip":      VisualClip,
		"visual_artifacts": VisualArtifacts,
		"lipsync":          Lipsync,
		"blink":            Blink,
		"ocr_gibberish":    OCRGibberish,
		"motion_flow":      MotionFlow,
		"audio_loop":       AudioLoop,
		"lighting":         Lighting,
		"transcript":       Transcript,
	}

	entries := make([]inspector.Entry, 0, len(runs))
	for _, desc := range inspector.DefaultDescriptors() {
		fn, ok := runs[desc.Name]
		if !ok {
			panic("builtin: no reference implementation registered for " + desc.Name)
		}
		entries = append(entries, inspector.Entry{Descriptor: desc, Run: fn})
	}
	return entries
}
