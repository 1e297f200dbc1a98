package testsupport

import (
	"context"
	"os"
	"testing"
	"time"

	"loom/internal/atoms"
	"loom/internal/config"
	"loom/internal/segments"
)

// MustOpenProject creates a project directory under the test config's data
// dir, opens its segment store, and registers cleanup.
func MustOpenProject(t testing.TB, cfg *config.Config, projectID string) (*atoms.Store, *segments.Store) {
	t.Helper()

	dir := cfg.ProjectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir project dir: %v", err)
	}
	store, err := segments.Open(dir)
	if err != nil {
		t.Fatalf("segments.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return atoms.NewStore(dir), store
}

// SeedAtoms saves the provided atoms and materializes the segment table.
func SeedAtoms(t testing.TB, atomStore *atoms.Store, segStore *segments.Store, list []atoms.Atom, window time.Duration) {
	t.Helper()

	if err := atomStore.Save(list); err != nil {
		t.Fatalf("atoms.Save: %v", err)
	}
	if _, _, err := segments.LoadOrRebuild(context.Background(), segStore, list, window); err != nil {
		t.Fatalf("segments.LoadOrRebuild: %v", err)
	}
}

// SampleAtoms returns a small Chinese transcript covering two segment
// windows at the default 20 minute width.
func SampleAtoms() []atoms.Atom {
	return []atoms.Atom{
		{AtomID: "A001", StartMS: 0, EndMS: 40000, DurationMS: 40000, MergedText: "坤沙在金三角起家", Type: "叙述", Completeness: "完整", SourceUtteranceIDs: []int{1}},
		{AtomID: "A002", StartMS: 50000, EndMS: 90000, DurationMS: 40000, MergedText: "鸦片贸易的兴起", Type: "背景", Completeness: "完整", SourceUtteranceIDs: []int{2}},
		{AtomID: "A003", StartMS: 1250000, EndMS: 1290000, DurationMS: 40000, MergedText: "坤沙向政府投降", Type: "叙述", Completeness: "完整", SourceUtteranceIDs: []int{3}},
	}
}
