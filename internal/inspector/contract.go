// Package inspector defines the contract every inspection module
// satisfies, the static registry of descriptors, the derived-artifact
// bag inspectors publish into, and the Runner that executes one inspector
// under a hard timeout with failure isolation.
package inspector

import (
	"context"
	"sync"

	"videoscan/internal/model"
)

// Func is the black-box contract of spec §6: a pure function from
// sampled media (plus artifacts produced by earlier inspectors) to a
// native score and a list of anomaly events.
type Func func(ctx context.Context, bundle model.SampledMedia, derived *Derived) (score float64, events []model.AnomalyEvent, err error)

// Derived is the typed artifact bag described in spec §9 ("Dynamic-duck
// handoff of derived artifacts becomes a typed artifact bag keyed by
// producer name"). It is read-only from every inspector's point of view
// except the one that publishes into it; the orchestrator creates one per
// job and never writes into it itself.
type Derived struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewDerived() *Derived {
	return &Derived{data: make(map[string]any)}
}

func (d *Derived) Publish(producer string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[producer] = value
}

func (d *Derived) Transcript() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if v, ok := d.data["transcript"].(string); ok {
		return v
	}
	return ""
}

func (d *Derived) Get(producer string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[producer]
	return v, ok
}
