package inspector

import (
	"time"

	"videoscan/internal/model"
)

// Entry binds a registry Descriptor to its executable black-box Func.
type Entry struct {
	Descriptor model.InspectorDescriptor
	Run        Func
}

// Registry is the static catalogue of inspector entries for one pipeline
// run. It is built once at process start and never mutated afterward.
type Registry struct {
	entries []Entry
}

func NewRegistry(entries []Entry) *Registry {
	return &Registry{entries: entries}
}

// Entries returns the registry in declaration order.
func (r *Registry) Entries() []Entry { return r.entries }

// Descriptors returns just the descriptor half of every entry, for callers
// (the Fusion Engine) that never need the executable Func.
func (r *Registry) Descriptors() []model.InspectorDescriptor {
	out := make([]model.InspectorDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Descriptor)
	}
	return out
}

// ByName looks up a single entry.
func (r *Registry) ByName(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Descriptor.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// identity is the adapter for inspectors whose native convention already
// matches the fusion convention (higher == more synthetic).
func identity(score float64) float64 { return score }

// DefaultDescriptors returns the nine-descriptor catalogue of spec §4.3. Each
// descriptor's Adapter is identity: none of the reference inspectors in
// internal/inspector/builtin use an inverted convention, but the field
// exists so a future inspector with an inverted native score (e.g. one
// reporting "authenticity" instead of "syntheticity") can supply one
// without changing the Fusion Engine.
func DefaultDescriptors() []model.InspectorDescriptor {
	return []model.InspectorDescriptor{
		{
			Name:     "visual_clip",
			Requires: []model.InspectorInput{model.InputFrames},
			Weight:   0.20,
			Timeout:  60 * time.Second,
			Adapter:  identity,
		},
		{
			Name:          "visual_artifacts",
			Requires:      []model.InspectorInput{model.InputFrames},
			Weight:        0.15,
			Timeout:       120 * time.Second,
			MayEmitEvents: []string{"visual_artifact"},
			Adapter:       identity,
		},
		{
			Name:          "lipsync",
			Requires:      []model.InspectorInput{model.InputFrames, model.InputAudio, model.InputTranscript},
			Weight:        0.15,
			Timeout:       120 * time.Second,
			MayEmitEvents: []string{"lipsync_mismatch"},
			Adapter:       identity,
		},
		{
			Name:          "blink",
			Requires:      []model.InspectorInput{model.InputFrames},
			Weight:        0.10,
			Timeout:       90 * time.Second,
			MayEmitEvents: []string{"abnormal_blink"},
			Adapter:       identity,
		},
		{
			Name:          "ocr_gibberish",
			Requires:      []model.InspectorInput{model.InputFrames},
			Weight:        0.05,
			Timeout:       60 * time.Second,
			MayEmitEvents: []string{"gibberish_text"},
			Adapter:       identity,
		},
		{
			Name:          "motion_flow",
			Requires:      []model.InspectorInput{model.InputFrames},
			Weight:        0.10,
			Timeout:       60 * time.Second,
			MayEmitEvents: []string{"flow_spike"},
			Adapter:       identity,
		},
		{
			Name:          "audio_loop",
			Requires:      []model.InspectorInput{model.InputAudio},
			Weight:        0.05,
			Timeout:       30 * time.Second,
			MayEmitEvents: []string{"audio_loop"},
			Adapter:       identity,
		},
		{
			Name:          "lighting",
			Requires:      []model.InspectorInput{model.InputFrames},
			Weight:        0.05,
			Timeout:       30 * time.Second,
			MayEmitEvents: []string{"light_change"},
			Adapter:       identity,
		},
		{
			Name:     "transcript",
			Requires: []model.InspectorInput{model.InputAudio},
			Weight:   0.00,
			Timeout:  60 * time.Second,
			Adapter:  identity,
		},
	}
}
