// Package workspace allocates and releases the per-job private temp
// directory that the sampler and inspectors read and write inside.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"videoscan/internal/model"
)

// Handle is an acquired workspace. Release is idempotent.
type Handle struct {
	JobID model.JobID
	Dir   string
}

// Manager roots every job's workspace under a single configured base path.
type Manager struct {
	basePath string
}

func New(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Acquire creates a private directory for jobID. The orchestrator acquires
// it at submission, before any JobRecord exists, so a non-nil error here
// rejects the submission; no job is recorded as FAILED with WorkspaceError.
func (m *Manager) Acquire(jobID model.JobID) (*Handle, error) {
	dir := filepath.Join(m.basePath, string(jobID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Handle{JobID: jobID, Dir: dir}, nil
}

// Release deletes the workspace directory recursively. It is idempotent
// and its failure is never propagated to the job — the orchestrator logs it
// when releasing a job's workspace on a terminal path — per spec §4.1
// ("Failure to release is logged but never propagated").
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	return os.RemoveAll(h.Dir)
}

// Exists reports whether the job's workspace directory is still present.
// Used by tests asserting the §8 testable property that no workspace
// directory survives a terminal job.
func (m *Manager) Exists(jobID model.JobID) bool {
	_, err := os.Stat(filepath.Join(m.basePath, string(jobID)))
	return err == nil
}
