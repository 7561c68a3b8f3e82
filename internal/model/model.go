// Package model holds the data types shared across the pipeline: job
// identity and lifecycle, sampled media, inspector descriptors and
// outcomes, anomaly events, and the final analysis result.
package model

import "time"

// JobStatus is one of the four lifecycle states visible to callers.
// Internally the orchestrator also tracks SAMPLING/INSPECTING/FUSING,
// but those collapse to PROCESSING in the observation primitives.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Phase is the orchestrator's internal state, finer-grained than JobStatus.
type Phase string

const (
	PhasePending    Phase = "PENDING"
	PhaseSampling   Phase = "SAMPLING"
	PhaseInspecting Phase = "INSPECTING"
	PhaseFusing     Phase = "FUSING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

// Status maps the internal phase to the externally visible status.
func (p Phase) Status() JobStatus {
	switch p {
	case PhaseCompleted:
		return StatusCompleted
	case PhaseFailed:
		return StatusFailed
	case PhasePending:
		return StatusPending
	default:
		return StatusProcessing
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// JobID is an opaque, globally unique, printable job identifier.
type JobID string

// ErrorKind tags the reason a job reached FAILED. Kept as a distinct type
// (rather than a bare string) so callers can switch on it without typos.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindWorkspace       ErrorKind = "WorkspaceError"
	ErrorKindSampling        ErrorKind = "SamplingError"
	ErrorKindInspectorFatal  ErrorKind = "InspectorFatal"
	ErrorKindFusion          ErrorKind = "FusionError"
	ErrorKindCancelled       ErrorKind = "Cancelled"
)

// JobRecord is the durable-for-process-lifetime record owned exclusively
// by the orchestrator that runs the job. Readers only ever see snapshots.
type JobRecord struct {
	ID          JobID
	Status      JobStatus
	Phase       Phase
	Progress    float64
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ResultRef   *JobID // non-nil iff Status == Completed; indirection keeps JobRecord small to copy
	ErrorKind   ErrorKind
	ErrorDetail string

	// Filename/size are carried for observability only (not used in fusion).
	Filename  string
	SizeBytes int64
}

// Snapshot returns a deep-enough copy safe to hand to a reader outside the
// store's lock. JobRecord has no slices/maps, so a value copy suffices;
// this method exists to make that guarantee explicit at call sites.
func (j JobRecord) Snapshot() JobRecord { return j }

// Frame is a single decoded, timestamped video frame.
type Frame struct {
	TimestampSec float64
	Path         string // location inside the job workspace of the normalized frame image
}

// SampledMedia is the canonical intermediate representation produced by
// the sampler and consumed by every inspector.
type SampledMedia struct {
	Frames               []Frame
	AudioPath            string
	HasAudio             bool
	OriginalDurationSec  float64
	EffectiveDurationSec float64
	TargetFPS            int
}

// InspectorInput names the bundle fields an inspector depends on.
type InspectorInput string

const (
	InputFrames     InspectorInput = "frames"
	InputAudio      InspectorInput = "audio"
	InputTranscript InspectorInput = "transcript"
)

// ScoreAdapter converts an inspector's native score into the fusion
// convention (higher score == more likely synthetic). Most inspectors are
// already native; an inspector whose convention is inverted supplies an
// adapter that returns 1-score.
type ScoreAdapter func(native float64) float64

// InspectorDescriptor is a registry entry: name, dependencies, weight,
// timeout and the event vocabulary it is allowed to emit.
type InspectorDescriptor struct {
	Name            string
	Requires        []InspectorInput
	Weight          float64
	Timeout         time.Duration
	MayEmitEvents   []string
	FatalOnFailure  bool
	Adapter         ScoreAdapter
}

// RequiresTranscript reports whether this descriptor depends on the
// zero-weight transcript producer finishing first.
func (d InspectorDescriptor) RequiresTranscript() bool {
	for _, r := range d.Requires {
		if r == InputTranscript {
			return true
		}
	}
	return false
}

func (d InspectorDescriptor) mayEmit(tag string) bool {
	for _, t := range d.MayEmitEvents {
		if t == tag {
			return true
		}
	}
	return false
}

// MayEmit reports whether tag is in this descriptor's declared vocabulary.
func (d InspectorDescriptor) MayEmit(tag string) bool { return d.mayEmit(tag) }

// OutcomeKind tags an InspectorOutcome's variant.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeError
)

// InspectorOutcome is the tagged union returned by the Runner for a single
// inspector invocation.
type InspectorOutcome struct {
	Kind     OutcomeKind
	Score    float64 // for Timeout/Error: the neutral substitute (0 for a fatal descriptor)
	Events   []AnomalyEvent
	Detail   string         // failure reason for Error/Timeout; "score_clamped" on a clamped Success
	Metadata map[string]any // e.g. {"score_clamped": true} per spec §4.4
}

// AnomalyEvent is a single timestamped observation attributed to one
// inspector module.
type AnomalyEvent struct {
	Module       string
	EventTag     string
	TimestampSec float64
	DurationSec  float64
	Metadata     map[string]any
}

// Label is the fusion engine's categorical output.
type Label string

const (
	LabelLikelyReal Label = "LIKELY_REAL"
	LabelUncertain  Label = "UNCERTAIN"
	LabelLikelyFake Label = "LIKELY_FAKE"
)

// DerivedFields mirror the wire-stable "derived" block of the result payload.
type DerivedFields struct {
	VisualScore         float64 `json:"visualScore"`
	VideoLength         float64 `json:"videoLength"`
	OriginalVideoLength float64 `json:"originalVideoLength"`
	TranscriptSnippet   string  `json:"transcriptSnippet"`
	ProcessingTimeSec   float64 `json:"processingTimeSec"`
	PipelineVersion     string  `json:"pipelineVersion"`
}

// EventPayload is the wire shape of one event in the result payload.
type EventPayload struct {
	Module   string         `json:"module"`
	Event    string         `json:"event"`
	TS       float64        `json:"ts"`
	Dur      float64        `json:"dur"`
	Metadata map[string]any `json:"meta"`
}

// AnalysisResult is the final, wire-stable payload for a completed job.
type AnalysisResult struct {
	JobID              JobID               `json:"jobId"`
	Label              Label               `json:"label"`
	Confidence         float64             `json:"confidence"`
	PerInspectorScores map[string]float64  `json:"perInspectorScores"`
	Events             []EventPayload      `json:"events"`
	Derived            DerivedFields       `json:"derived"`
	ProcessedAt        time.Time           `json:"processedAt"`
}
