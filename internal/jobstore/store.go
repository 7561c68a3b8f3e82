// Package jobstore holds the in-process table of JobRecords for the life
// of the server process. It deliberately has no persistence layer — spec's
// Non-goal of surviving a restart rules out the teacher repo's Postgres
// store, so this is a map guarded by per-job locks rather than a database.
package jobstore

import (
	"sync"
	"time"

	"videoscan/internal/apperr"
	"videoscan/internal/model"
)

// entry pairs a JobRecord with its own lock, so updating one job never
// blocks a read of another — a single store-wide mutex would serialize
// every status poll behind whichever job is currently being updated.
type entry struct {
	mu     sync.RWMutex
	record model.JobRecord
	result *model.AnalysisResult
}

// Store is safe for concurrent use from the API handlers and the
// orchestrator's worker goroutines.
type Store struct {
	tableMu sync.RWMutex // guards the map itself, not its values
	table   map[model.JobID]*entry
}

func New() *Store {
	return &Store{table: make(map[model.JobID]*entry)}
}

// Insert creates a new PENDING record. Returns apperr.ErrDuplicateJob if
// the ID is already present.
func (s *Store) Insert(id model.JobID, filename string, sizeBytes int64) error {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	if _, exists := s.table[id]; exists {
		return apperr.ErrDuplicateJob
	}
	s.table[id] = &entry{record: model.JobRecord{
		ID:        id,
		Status:    model.StatusPending,
		Phase:     model.PhasePending,
		CreatedAt: time.Now(),
		Filename:  filename,
		SizeBytes: sizeBytes,
	}}
	return nil
}

// Read returns a consistent snapshot of one job's record.
func (s *Store) Read(id model.JobID) (model.JobRecord, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.JobRecord{}, apperr.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record.Snapshot(), nil
}

// Update applies mutate to the job's record under its own lock, so
// composite updates (e.g. "set phase and bump progress") are atomic from
// any reader's point of view — a reader never observes, say, a terminal
// status with no ResultRef set yet.
func (s *Store) Update(id model.JobID, mutate func(*model.JobRecord)) error {
	e, ok := s.lookup(id)
	if !ok {
		return apperr.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&e.record)
	return nil
}

// SetResult atomically attaches a final AnalysisResult and flips the record
// to COMPLETED. The result is visible to any reader of Result only after
// this call returns, so a caller that observes Status==COMPLETED is
// guaranteed GetResult will succeed.
func (s *Store) SetResult(id model.JobID, result model.AnalysisResult) error {
	e, ok := s.lookup(id)
	if !ok {
		return apperr.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = &result
	ref := id
	e.record.ResultRef = &ref
	e.record.Status = model.StatusCompleted
	e.record.Phase = model.PhaseCompleted
	e.record.Progress = 1.0
	now := time.Now()
	e.record.CompletedAt = &now
	return nil
}

// GetResult returns apperr.ErrNotReady if the job has not completed yet.
func (s *Store) GetResult(id model.JobID) (model.AnalysisResult, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.AnalysisResult{}, apperr.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.result == nil {
		return model.AnalysisResult{}, apperr.ErrNotReady
	}
	return *e.result, nil
}

func (s *Store) lookup(id model.JobID) (*entry, bool) {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	e, ok := s.table[id]
	return e, ok
}

// ListFailed is the supplemented DLQ-equivalent enumeration named in
// SPEC_FULL's "SUPPLEMENTED FEATURES": an optional read-only view over
// every job that ended in FAILED, most recent first.
func (s *Store) ListFailed() []model.JobRecord {
	s.tableMu.RLock()
	ids := make([]*entry, 0, len(s.table))
	for _, e := range s.table {
		ids = append(ids, e)
	}
	s.tableMu.RUnlock()

	out := make([]model.JobRecord, 0)
	for _, e := range ids {
		e.mu.RLock()
		rec := e.record.Snapshot()
		e.mu.RUnlock()
		if rec.Status == model.StatusFailed {
			out = append(out, rec)
		}
	}
	sortByCreatedDesc(out)
	return out
}

func sortByCreatedDesc(recs []model.JobRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].CreatedAt.After(recs[j-1].CreatedAt); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
