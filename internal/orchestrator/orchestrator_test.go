package orchestrator

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"videoscan/internal/apperr"
	"videoscan/internal/fusion"
	"videoscan/internal/inspector"
	"videoscan/internal/jobstore"
	"videoscan/internal/model"
	"videoscan/internal/workspace"
)

// fakeSampler satisfies the Sampler interface without touching ffmpeg, so
// the orchestrator's state machine can be driven in isolation.
type fakeSampler struct {
	bundle model.SampledMedia
	err    error
}

func (f *fakeSampler) Sample(ctx context.Context, inputPath string, h *workspace.Handle, targetFPS, maxDurationSec int) (model.SampledMedia, error) {
	return f.bundle, f.err
}

func newTestOrchestrator(t *testing.T, samp Sampler, entries []inspector.Entry, maxConcurrentJobs, admissionCap int) (*Orchestrator, *workspace.Manager, *jobstore.Store) {
	t.Helper()
	ws := workspace.New(t.TempDir())
	store := jobstore.New()
	registry := inspector.NewRegistry(entries)
	o := New(Config{
		MaxConcurrentJobs:             maxConcurrentJobs,
		MaxConcurrentInspectorsPerJob: 4,
		AdmissionQueueCapacity:        admissionCap,
		PerJobTimeout:                 5 * time.Second,
		TargetFPS:                     8,
		MaxDurationSec:                30,
		PipelineVersion:               "test_v1",
	}, ws, samp, registry, inspector.NewRunner(), fusion.New("test_v1"), store, nil)
	return o, ws, store
}

// seedJob bypasses Submit's admission gate so runJob can be driven directly
// and synchronously, the way the teacher's processor tests drive a handler
// against a fake job rather than going through the full queue.
func seedJob(t *testing.T, o *Orchestrator, ws *workspace.Manager, store *jobstore.Store, id model.JobID) {
	t.Helper()
	handle, err := ws.Acquire(id)
	if err != nil {
		t.Fatalf("acquire workspace: %v", err)
	}
	if err := store.Insert(id, "clip.mp4", 1024); err != nil {
		t.Fatalf("insert: %v", err)
	}
	o.mu.Lock()
	o.inputs[id] = jobInput{path: filepath.Join(handle.Dir, "input.mp4"), handle: handle}
	o.mu.Unlock()
}

func constantEntries(scores map[string]float64, events map[string][]model.AnomalyEvent) []inspector.Entry {
	entries := make([]inspector.Entry, 0, len(inspector.DefaultDescriptors()))
	for _, d := range inspector.DefaultDescriptors() {
		score := scores[d.Name]
		evs := events[d.Name]
		entries = append(entries, inspector.Entry{
			Descriptor: d,
			Run: func(ctx context.Context, bundle model.SampledMedia, derived *inspector.Derived) (float64, []model.AnomalyEvent, error) {
				return score, evs, nil
			},
		})
	}
	return entries
}

func TestSubmitRejectsOverflowWithoutCreatingJobRecord(t *testing.T) {
	entries := constantEntries(nil, nil)
	// MaxConcurrentJobs: 0 so nothing ever drains the queue; the second
	// submission must observe it full.
	o, _, _ := newTestOrchestrator(t, &fakeSampler{}, entries, 0, 1)

	id1, err := o.Submit("clip.mp4", byteReader("x"))
	if err != nil {
		t.Fatalf("first submission should be admitted, got %v", err)
	}
	if id1 == "" {
		t.Fatalf("expected a non-empty job id")
	}

	id2, err := o.Submit("clip.mp4", byteReader("y"))
	if !errors.Is(err, apperr.ErrRejected) {
		t.Fatalf("expected ErrRejected on overflow, got %v", err)
	}
	if id2 != "" {
		t.Fatalf("expected no job id on a rejected submission, got %q", id2)
	}

	// Submit registers a job's input only after its JobRecord insert
	// succeeded, so the admitted job must be the only one registered.
	o.mu.Lock()
	_, admitted := o.inputs[id1]
	registered := len(o.inputs)
	o.mu.Unlock()
	if !admitted || registered != 1 {
		t.Fatalf("expected only the admitted job to be registered, got %d registered jobs", registered)
	}
}

func TestRunJobReleasesWorkspaceBeforeCompletedStatusVisible(t *testing.T) {
	entries := constantEntries(map[string]float64{
		"visual_clip": 0.1, "visual_artifacts": 0.1, "lipsync": 0.1, "blink": 0.1,
		"ocr_gibberish": 0.1, "motion_flow": 0.1, "audio_loop": 0.1, "lighting": 0.1,
	}, nil)
	samp := &fakeSampler{bundle: model.SampledMedia{EffectiveDurationSec: 15.0, OriginalDurationSec: 15.0}}
	o, ws, store := newTestOrchestrator(t, samp, entries, 0, 1)

	id := model.JobID("job-success")
	seedJob(t, o, ws, store, id)

	o.runJob(id)

	rec, err := store.Read(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", rec.Status)
	}
	if ws.Exists(id) {
		t.Fatalf("expected workspace to be gone once status is terminal (spec §8.3)")
	}
}

func TestRunJobReleasesWorkspaceBeforeFailedStatusVisible(t *testing.T) {
	entries := constantEntries(nil, nil)
	samp := &fakeSampler{err: errors.New("ffprobe: no such file")}
	o, ws, store := newTestOrchestrator(t, samp, entries, 0, 1)

	id := model.JobID("job-failure")
	seedJob(t, o, ws, store, id)

	o.runJob(id)

	rec, err := store.Read(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Status != model.StatusFailed {
		t.Fatalf("expected FAILED, got %s", rec.Status)
	}
	if rec.ErrorKind != model.ErrorKindSampling {
		t.Fatalf("expected SamplingError kind, got %s", rec.ErrorKind)
	}
	if ws.Exists(id) {
		t.Fatalf("expected workspace to be gone once status is terminal (spec §8.3)")
	}
}

// TestRunJobS1HappyPathLikelyReal mirrors spec §7 scenario S1: every
// inspector reports 0.1 with no events.
func TestRunJobS1HappyPathLikelyReal(t *testing.T) {
	entries := constantEntries(map[string]float64{
		"visual_clip": 0.1, "visual_artifacts": 0.1, "lipsync": 0.1, "blink": 0.1,
		"ocr_gibberish": 0.1, "motion_flow": 0.1, "audio_loop": 0.1, "lighting": 0.1,
	}, nil)
	samp := &fakeSampler{bundle: model.SampledMedia{EffectiveDurationSec: 15.0, OriginalDurationSec: 15.0}}
	o, ws, store := newTestOrchestrator(t, samp, entries, 0, 1)

	id := model.JobID("job-s1")
	seedJob(t, o, ws, store, id)
	o.runJob(id)

	result, err := store.GetResult(id)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.Label != model.LabelLikelyReal {
		t.Fatalf("expected LIKELY_REAL, got %s (confidence=%.4f)", result.Label, result.Confidence)
	}
	if result.Confidence < 0.70 {
		t.Fatalf("expected confidence >= 0.70, got %.4f", result.Confidence)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected no events, got %+v", result.Events)
	}
	if result.Derived.VideoLength != 15.0 || result.Derived.OriginalVideoLength != 15.0 {
		t.Fatalf("unexpected lengths: %+v", result.Derived)
	}
}

// TestRunJobS2HappyPathLikelyFake mirrors spec §7 scenario S2.
func TestRunJobS2HappyPathLikelyFake(t *testing.T) {
	scores := map[string]float64{
		"visual_clip": 0.9, "visual_artifacts": 0.85, "lipsync": 0.8, "blink": 0.7,
		"ocr_gibberish": 0.6, "motion_flow": 0.75, "audio_loop": 0.5, "lighting": 0.8,
	}
	evs := map[string][]model.AnomalyEvent{
		"visual_artifacts": {{EventTag: "visual_artifact", TimestampSec: 4.25}},
		"lipsync":          {{EventTag: "lipsync_mismatch", TimestampSec: 2.0}},
		"blink":            {{EventTag: "abnormal_blink", TimestampSec: 6.0}},
		"motion_flow":      {{EventTag: "flow_spike", TimestampSec: 1.1}},
		"lighting":         {{EventTag: "light_change", TimestampSec: 7.5}},
	}
	entries := constantEntries(scores, evs)
	samp := &fakeSampler{bundle: model.SampledMedia{EffectiveDurationSec: 15.0, OriginalDurationSec: 15.0}}
	o, ws, store := newTestOrchestrator(t, samp, entries, 0, 1)

	id := model.JobID("job-s2")
	seedJob(t, o, ws, store, id)
	o.runJob(id)

	result, err := store.GetResult(id)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.Label != model.LabelLikelyFake {
		t.Fatalf("expected LIKELY_FAKE, got %s (confidence=%.4f)", result.Label, result.Confidence)
	}
	if result.Confidence >= 0.40 {
		t.Fatalf("expected confidence < 0.40, got %.4f", result.Confidence)
	}
	if len(result.Events) != 5 {
		t.Fatalf("expected 5 events, got %d: %+v", len(result.Events), result.Events)
	}
}

type byteReader string

func (b byteReader) Read(p []byte) (int, error) {
	n := copy(p, b)
	return n, errEOFIfDone(n, len(b))
}

func errEOFIfDone(n, total int) error {
	if n >= total {
		return errEOF
	}
	return nil
}

var errEOF = io.EOF
