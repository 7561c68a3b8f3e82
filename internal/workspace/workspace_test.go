package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireCreatesDirectory(t *testing.T) {
	base := t.TempDir()
	m := New(base)

	h, err := m.Acquire("job-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := os.Stat(h.Dir); err != nil {
		t.Fatalf("expected workspace dir to exist: %v", err)
	}
	if !m.Exists("job-1") {
		t.Fatalf("expected Exists to report true")
	}
}

func TestReleaseRemovesDirectory(t *testing.T) {
	base := t.TempDir()
	m := New(base)
	h, _ := m.Acquire("job-1")

	if err := m.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
	if m.Exists("job-1") {
		t.Fatalf("expected workspace to be gone after release")
	}
}

func TestReleaseIsIdempotentAndNilSafe(t *testing.T) {
	base := t.TempDir()
	m := New(base)
	h, _ := m.Acquire("job-1")

	if err := m.Release(h); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := m.Release(h); err != nil {
		t.Fatalf("second release should also succeed: %v", err)
	}
	if err := m.Release(nil); err != nil {
		t.Fatalf("nil release should be a no-op: %v", err)
	}
}

func TestAcquireScopesEachJobUnderItsOwnDirectory(t *testing.T) {
	base := t.TempDir()
	m := New(base)
	h, _ := m.Acquire("job-xyz")
	if filepath.Dir(h.Dir) != base {
		t.Fatalf("expected workspace to be rooted under base path, got %s", h.Dir)
	}
}
