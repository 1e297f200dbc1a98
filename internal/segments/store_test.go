package segments

import (
	"context"
	"errors"
	"testing"
	"time"

	"loom/internal/atoms"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedSegments(t *testing.T, store *Store, segs []Segment) {
	t.Helper()
	if err := store.ReplaceAll(context.Background(), segs); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{
			SegmentID: "SEG_001", StartMS: 0, EndMS: 1200000, DurationMS: 1200000,
			StartTimeStr: "00:00:00", EndTimeStr: "00:20:00",
			AtomRefs: []int{0, 1}, Status: StatusAtomized, AtomizationComplete: true,
		},
		{
			SegmentID: "SEG_002", StartMS: 1200000, EndMS: 1260000, DurationMS: 60000,
			StartTimeStr: "00:20:00", EndTimeStr: "00:21:00",
			AtomRefs: []int{2}, Status: StatusAtomized, AtomizationComplete: true,
		},
	})

	segs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("List returned %d segments, want 2", len(segs))
	}
	if segs[0].SegmentID != "SEG_001" || segs[1].SegmentID != "SEG_002" {
		t.Errorf("segments out of order: %s, %s", segs[0].SegmentID, segs[1].SegmentID)
	}
	if len(segs[0].AtomRefs) != 2 || segs[0].AtomRefs[1] != 1 {
		t.Errorf("SEG_001 refs = %v, want [0 1]", segs[0].AtomRefs)
	}

	seg, err := store.GetByID(ctx, "SEG_002")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if seg.DurationMS != 60000 {
		t.Errorf("SEG_002 duration = %d, want 60000", seg.DurationMS)
	}

	if _, err := store.GetByID(ctx, "SEG_099"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(SEG_099) error = %v, want ErrNotFound", err)
	}
}

func TestNextPendingOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusAnalyzed, AtomizationComplete: true, AnalysisComplete: true},
		{SegmentID: "SEG_002", AtomRefs: []int{1}, Status: StatusFailed, AtomizationComplete: true, ErrorMessage: "model timeout"},
		{SegmentID: "SEG_003", AtomRefs: []int{2}, Status: StatusAtomized, AtomizationComplete: true},
		{SegmentID: "SEG_004", AtomRefs: []int{3}, Status: StatusAtomized, AtomizationComplete: true},
	})

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.SegmentID != "SEG_003" {
		t.Fatalf("NextPending = %v, want SEG_003", next)
	}
}

func TestNextPendingResumesStuckAnalyzing(t *testing.T) {
	// A crash after a merge persists but before the status flip leaves
	// the segment in analyzing; the loop must pick it up again.
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusAnalyzing, AtomizationComplete: true},
	})

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.SegmentID != "SEG_001" {
		t.Fatalf("NextPending = %v, want stuck SEG_001", next)
	}
}

func TestNextPendingExhausted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusAnalyzed, AtomizationComplete: true, AnalysisComplete: true},
		{SegmentID: "SEG_002", AtomRefs: []int{1}, Status: StatusFailed, AtomizationComplete: true},
	})

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next != nil {
		t.Errorf("NextPending = %v, want nil when nothing is analyzable", next)
	}
}

func TestUpdateStatusClearsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusFailed, AtomizationComplete: true, ErrorMessage: "model timeout"},
	})

	if err := store.UpdateStatus(ctx, "SEG_001", StatusAnalyzing); err != nil {
		t.Fatalf("failed -> analyzing: %v", err)
	}
	if err := store.UpdateStatus(ctx, "SEG_001", StatusAnalyzed,
		WithAnalysisComplete(true), WithEntityCount(7)); err != nil {
		t.Fatalf("analyzing -> analyzed: %v", err)
	}

	seg, err := store.GetByID(ctx, "SEG_001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if seg.ErrorMessage != "" {
		t.Errorf("error message = %q, want cleared on analyzed", seg.ErrorMessage)
	}
	if !seg.AnalysisComplete || seg.EntityCount != 7 {
		t.Errorf("analysis_complete=%v entity_count=%d, want true/7", seg.AnalysisComplete, seg.EntityCount)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", Status: StatusPending},
	})

	err := store.UpdateStatus(ctx, "SEG_001", StatusAnalyzing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("pending -> analyzing error = %v, want ErrIllegalTransition", err)
	}

	seg, getErr := store.GetByID(ctx, "SEG_001")
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if seg.Status != StatusPending {
		t.Errorf("status changed to %s after rejected transition", seg.Status)
	}
}

func TestUpdateStatusAttachesFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusAnalyzing, AtomizationComplete: true},
	})

	if err := store.UpdateStatus(ctx, "SEG_001", StatusFailed,
		WithErrorMessage("analysis returned no parsable payload")); err != nil {
		t.Fatalf("analyzing -> failed: %v", err)
	}
	seg, err := store.GetByID(ctx, "SEG_001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if seg.ErrorMessage == "" {
		t.Error("error message not persisted on failure")
	}
}

func TestResetAndResetAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", AtomRefs: []int{0}, Status: StatusAnalyzed, AtomizationComplete: true, AnalysisComplete: true, EntityCount: 12},
		{SegmentID: "SEG_002", AtomRefs: []int{1}, Status: StatusFailed, AtomizationComplete: true, ErrorMessage: "boom"},
		{SegmentID: "SEG_003", Status: StatusPending},
	})

	if err := store.Reset(ctx, "SEG_001"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	seg, err := store.GetByID(ctx, "SEG_001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if seg.Status != StatusAtomized || seg.AnalysisComplete || seg.EntityCount != 0 {
		t.Errorf("reset segment = %+v, want atomized with cleared analysis state", seg)
	}

	if err := store.Reset(ctx, "SEG_003"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reset(pending segment) error = %v, want ErrNotFound", err)
	}

	affected, err := store.ResetAll(ctx)
	if err != nil {
		t.Fatalf("ResetAll failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("ResetAll affected %d segments, want 2 atomized ones", affected)
	}
	seg2, err := store.GetByID(ctx, "SEG_002")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if seg2.Status != StatusAtomized || seg2.ErrorMessage != "" {
		t.Errorf("SEG_002 after ResetAll = %+v", seg2)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSegments(t, store, []Segment{
		{SegmentID: "SEG_001", Status: StatusAnalyzed, AtomizationComplete: true, AnalysisComplete: true},
		{SegmentID: "SEG_002", Status: StatusAnalyzed, AtomizationComplete: true, AnalysisComplete: true},
		{SegmentID: "SEG_003", Status: StatusFailed, AtomizationComplete: true},
	})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[StatusAnalyzed] != 2 || stats[StatusFailed] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestLoadOrRebuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	atomList := []atoms.Atom{
		testAtom("A001", 0, 30000, "opening"),
		testAtom("A002", 50000, 90000, "topic"),
		testAtom("A003", 1250000, 1260000, "closing"),
	}

	// Empty table: first load builds it.
	segs, rebuilt, err := LoadOrRebuild(ctx, store, atomList, 20*time.Minute)
	if err != nil {
		t.Fatalf("LoadOrRebuild failed: %v", err)
	}
	if !rebuilt {
		t.Error("expected rebuild on empty table")
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}

	// Second load with the same atoms keeps the table.
	segs, rebuilt, err = LoadOrRebuild(ctx, store, atomList, 20*time.Minute)
	if err != nil {
		t.Fatalf("LoadOrRebuild failed: %v", err)
	}
	if rebuilt {
		t.Error("unexpected rebuild of a valid table")
	}

	// Mark progress, then shrink the atom store so a ref goes out of range:
	// the whole table must be rebuilt and progress discarded.
	if err := store.UpdateStatus(ctx, segs[0].SegmentID, StatusAnalyzing); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	shrunk := atomList[:2]
	segs, rebuilt, err = LoadOrRebuild(ctx, store, shrunk, 20*time.Minute)
	if err != nil {
		t.Fatalf("LoadOrRebuild failed: %v", err)
	}
	if !rebuilt {
		t.Fatal("expected rebuild after atom store shrank")
	}
	for _, seg := range segs {
		if !seg.ValidRefs(len(shrunk)) {
			t.Errorf("segment %s still has out-of-range refs %v", seg.SegmentID, seg.AtomRefs)
		}
		if seg.Status == StatusAnalyzing {
			t.Errorf("segment %s kept pre-rebuild progress", seg.SegmentID)
		}
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	seedSegments(t, store, []Segment{{SegmentID: "SEG_001", Status: StatusPending}})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	segs, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(segs) != 1 {
		t.Errorf("reopened store has %d segments, want 1", len(segs))
	}
}
