// Package orchestrator drives one job through PENDING -> SAMPLING ->
// INSPECTING -> FUSING -> COMPLETED|FAILED, per spec §4.8. It owns
// workspace lifetime, bounded admission across jobs and bounded fan-out of
// inspectors within a job, using the buffered-channel-semaphore plus
// errgroup idiom grounded on the ManuGH-xg2g orchestrator and the teacher's
// own worker pool.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"videoscan/internal/apperr"
	"videoscan/internal/events"
	"videoscan/internal/fusion"
	"videoscan/internal/inspector"
	"videoscan/internal/jobstore"
	"videoscan/internal/model"
	"videoscan/internal/obs"
	"videoscan/internal/telemetry"
	"videoscan/internal/workspace"
)

// ArchiveSink is the optional completed-result sink. A nil sink (the
// default, per spec's "disabled by default") means Submit/runJob never
// touch archival at all.
type ArchiveSink interface {
	Archive(ctx context.Context, result model.AnalysisResult, representativeFrame string) error
}

// Sampler is the orchestrator's view of spec §4.2's sample operation,
// narrowed to an interface (rather than *sampler.Sampler directly) so
// tests can inject a fake and exercise the state machine without the
// real ffmpeg/ffprobe binaries. *sampler.Sampler satisfies this.
type Sampler interface {
	Sample(ctx context.Context, inputPath string, h *workspace.Handle, targetFPS, maxDurationSec int) (model.SampledMedia, error)
}

// Config holds every tunable named in spec §6 that the orchestrator reads.
type Config struct {
	MaxConcurrentJobs             int
	MaxConcurrentInspectorsPerJob int
	AdmissionQueueCapacity        int
	PerJobTimeout                 time.Duration
	TargetFPS                     int
	MaxDurationSec                int
	PipelineVersion               string
}

type jobInput struct {
	path   string
	handle *workspace.Handle
}

// Orchestrator is the single process-wide driver; cmd/server constructs
// exactly one.
type Orchestrator struct {
	cfg        Config
	workspaces *workspace.Manager
	sampler    Sampler
	registry   *inspector.Registry
	runner     *inspector.Runner
	fusion     *fusion.Engine
	store      *jobstore.Store
	archive    ArchiveSink

	// admission is the capacity gate for spec §5's admission step: a
	// non-blocking reservation taken before any work (workspace, upload,
	// JobRecord) happens, and released once a reserved job is handed to a
	// dispatchLoop worker. queue carries the actual dispatch payload and
	// is sized identically, so the send below never blocks.
	admission chan struct{}
	queue     chan model.JobID

	mu     sync.Mutex
	inputs map[model.JobID]jobInput
}

func New(
	cfg Config,
	workspaces *workspace.Manager,
	samp Sampler,
	registry *inspector.Registry,
	runner *inspector.Runner,
	fusionEngine *fusion.Engine,
	store *jobstore.Store,
	archive ArchiveSink,
) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		workspaces: workspaces,
		sampler:    samp,
		registry:   registry,
		runner:     runner,
		fusion:     fusionEngine,
		store:      store,
		archive:    archive,
		admission:  make(chan struct{}, cfg.AdmissionQueueCapacity),
		queue:      make(chan model.JobID, cfg.AdmissionQueueCapacity),
		inputs:     make(map[model.JobID]jobInput),
	}
	for i := 0; i < cfg.MaxConcurrentJobs; i++ {
		go o.dispatchLoop()
	}
	return o
}

func (o *Orchestrator) dispatchLoop() {
	for id := range o.queue {
		<-o.admission
		o.runJob(id)
	}
}

// Submit implements spec §4.1/§4.8's admission step. The admission gate is
// reserved first, before any workspace, upload or store work happens, so a
// submission rejected for queue overflow (spec §5/§8.5) never creates a
// JobRecord and never touches the filesystem.
func (o *Orchestrator) Submit(filename string, data io.Reader) (model.JobID, error) {
	select {
	case o.admission <- struct{}{}:
	default:
		telemetry.JobsRejected.Inc()
		return "", apperr.ErrRejected
	}

	id := model.JobID(uuid.NewString())

	handle, err := o.workspaces.Acquire(id)
	if err != nil {
		<-o.admission
		return "", fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}

	inputPath := filepath.Join(handle.Dir, "input_"+filepath.Base(filename))
	f, err := os.Create(inputPath)
	if err != nil {
		o.workspaces.Release(handle)
		<-o.admission
		return "", fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}
	written, err := io.Copy(f, data)
	closeErr := f.Close()
	if err != nil {
		o.workspaces.Release(handle)
		<-o.admission
		return "", fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}
	if closeErr != nil {
		o.workspaces.Release(handle)
		<-o.admission
		return "", fmt.Errorf("%w: %v", apperr.ErrRejected, closeErr)
	}

	if err := o.store.Insert(id, filename, written); err != nil {
		o.workspaces.Release(handle)
		<-o.admission
		return "", err
	}

	o.mu.Lock()
	o.inputs[id] = jobInput{path: inputPath, handle: handle}
	o.mu.Unlock()

	telemetry.JobsAdmitted.Inc()
	o.queue <- id
	telemetry.QueueDepth.Set(float64(len(o.queue)))
	return id, nil
}

func (o *Orchestrator) takeInput(id model.JobID) (jobInput, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	in, ok := o.inputs[id]
	if ok {
		delete(o.inputs, id)
	}
	return in, ok
}

// runJob drives one job end to end. The workspace is released explicitly
// before the job's record is written as COMPLETED or FAILED on every exit
// path (never via a function-exit defer) — spec §4.1/§4.8/§8.3 requires
// that any observer seeing a terminal status finds no workspace directory
// left behind, and a status flip followed by a later release would miss
// that window.
func (o *Orchestrator) runJob(id model.JobID) {
	in, ok := o.takeInput(id)
	if !ok {
		return
	}

	telemetry.QueueDepth.Set(float64(len(o.queue)))
	telemetry.JobsInFlight.Inc()
	defer telemetry.JobsInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PerJobTimeout)
	defer cancel()
	ctx = obs.ContextWithJobID(ctx, string(id))
	log := obs.FromContext(ctx, "orchestrator")
	release := func() {
		if err := o.workspaces.Release(in.handle); err != nil {
			log.Warn().Err(err).Msg("workspace release failed")
		}
	}

	start := time.Now()
	o.store.Update(id, func(r *model.JobRecord) {
		r.Phase = model.PhaseSampling
		r.Status = r.Phase.Status()
		r.StartedAt = &start
	})

	bundle, err := o.sampler.Sample(ctx, in.path, in.handle, o.cfg.TargetFPS, o.cfg.MaxDurationSec)
	if err != nil {
		log.Warn().Err(err).Msg("sampling failed")
		release()
		o.fail(id, model.ErrorKindSampling, err)
		return
	}
	o.store.Update(id, func(r *model.JobRecord) {
		r.Phase = model.PhaseInspecting
		r.Progress = 0.10
	})

	derived := inspector.NewDerived()
	outcomes, agg, err := o.runInspectors(ctx, id, bundle, derived)
	if err != nil {
		log.Warn().Err(err).Msg("inspection failed")
		release()
		if ctx.Err() != nil {
			o.fail(id, model.ErrorKindCancelled, ctx.Err())
		} else {
			o.fail(id, model.ErrorKindInspectorFatal, err)
		}
		return
	}

	o.store.Update(id, func(r *model.JobRecord) {
		r.Phase = model.PhaseFusing
		r.Progress = 0.90
	})

	finishedEvents := agg.Finish(bundle.EffectiveDurationSec)
	result := o.fusion.Fuse(fusion.Input{
		JobID:             id,
		Descriptors:       o.registry.Descriptors(),
		Outcomes:          outcomes,
		Events:            finishedEvents,
		Transcript:        derived.Transcript(),
		VideoLengthSec:    bundle.EffectiveDurationSec,
		OriginalLengthSec: bundle.OriginalDurationSec,
		ProcessingTimeSec: time.Since(start).Seconds(),
	})
	result.ProcessedAt = time.Now()

	// Archive while the workspace (and its frames) still exist, then
	// release it — both must finish before the record becomes visible as
	// COMPLETED below.
	if o.archive != nil {
		frame := ""
		if len(bundle.Frames) > 0 {
			frame = bundle.Frames[len(bundle.Frames)/2].Path
		}
		if err := o.archive.Archive(ctx, result, frame); err != nil {
			log.Warn().Err(err).Msg("archival failed")
		}
	}
	release()

	if err := o.store.SetResult(id, result); err != nil {
		log.Error().Err(err).Msg("failed to persist result")
		return
	}
	telemetry.JobsCompleted.Inc()
	telemetry.FusionConfidence.Observe(result.Confidence)
}

func (o *Orchestrator) fail(id model.JobID, kind model.ErrorKind, err error) {
	telemetry.JobsFailed.WithLabelValues(string(kind)).Inc()
	o.store.Update(id, func(r *model.JobRecord) {
		r.Phase = model.PhaseFailed
		r.Status = model.StatusFailed
		r.ErrorKind = kind
		if err != nil {
			r.ErrorDetail = err.Error()
		}
		now := time.Now()
		r.CompletedAt = &now
	})
}

// runInspectors fans inspectors out in two ordered tiers: every descriptor
// that does not require the transcript producer runs first (concurrently,
// bounded by MaxConcurrentInspectorsPerJob), then every descriptor that
// does — so lipsync always observes a finished Derived.Transcript().
func (o *Orchestrator) runInspectors(ctx context.Context, id model.JobID, bundle model.SampledMedia, derived *inspector.Derived) (map[string]model.InspectorOutcome, *events.Aggregator, error) {
	entries := o.registry.Entries()
	var tier0, tier1 []inspector.Entry
	for _, e := range entries {
		if e.Descriptor.RequiresTranscript() {
			tier1 = append(tier1, e)
		} else {
			tier0 = append(tier0, e)
		}
	}

	outcomes := make(map[string]model.InspectorOutcome, len(entries))
	var outcomesMu sync.Mutex
	agg := events.New()
	var finished int32
	total := len(entries)

	runTier := func(tier []inspector.Entry) error {
		if len(tier) == 0 {
			return nil
		}
		sem := make(chan struct{}, o.cfg.MaxConcurrentInspectorsPerJob)
		g, gctx := errgroup.WithContext(ctx)
		for _, e := range tier {
			entry := e
			g.Go(func() error {
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					return gctx.Err()
				}
				defer func() { <-sem }()

				outcome := o.runner.Run(gctx, entry.Descriptor, bundle, derived, entry.Run)
				telemetry.InspectorOutcomes.WithLabelValues(entry.Descriptor.Name, outcomeKindLabel(outcome.Kind)).Inc()

				outcomesMu.Lock()
				outcomes[entry.Descriptor.Name] = outcome
				outcomesMu.Unlock()
				agg.Add(outcome.Events...)

				n := atomic.AddInt32(&finished, 1)
				progress := 0.10 + 0.80*float64(n)/float64(total)
				o.store.Update(id, func(r *model.JobRecord) { r.Progress = progress })

				if outcome.Kind != model.OutcomeSuccess && entry.Descriptor.FatalOnFailure {
					return fmt.Errorf("%s: %s", entry.Descriptor.Name, outcome.Detail)
				}
				return nil
			})
		}
		return g.Wait()
	}

	if err := runTier(tier0); err != nil {
		return outcomes, agg, err
	}
	if err := runTier(tier1); err != nil {
		return outcomes, agg, err
	}
	return outcomes, agg, nil
}

func outcomeKindLabel(k model.OutcomeKind) string {
	switch k {
	case model.OutcomeSuccess:
		return "success"
	case model.OutcomeTimeout:
		return "timeout"
	default:
		return "error"
	}
}
