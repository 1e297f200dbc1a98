package segments

import (
	"reflect"
	"testing"
	"time"

	"loom/internal/atoms"
)

func testAtom(id string, startMS, endMS int64, text string) atoms.Atom {
	return atoms.Atom{
		AtomID:     id,
		StartMS:    startMS,
		EndMS:      endMS,
		DurationMS: endMS - startMS,
		MergedText: text,
		Type:       "statement",
	}
}

func TestPartitionWindows(t *testing.T) {
	atomList := []atoms.Atom{
		testAtom("A001", 0, 30000, "opening remarks"),
		testAtom("A002", 50000, 90000, "first topic"),
		testAtom("A003", 1250000, 1260000, "closing remarks"),
	}

	segs := Partition(atomList, 20*time.Minute)
	if len(segs) != 2 {
		t.Fatalf("Partition returned %d segments, want 2", len(segs))
	}

	first := segs[0]
	if first.SegmentID != "SEG_001" {
		t.Errorf("first segment id = %q, want SEG_001", first.SegmentID)
	}
	if !reflect.DeepEqual(first.AtomRefs, []int{0, 1}) {
		t.Errorf("first segment refs = %v, want [0 1]", first.AtomRefs)
	}
	if first.Status != StatusAtomized || !first.AtomizationComplete {
		t.Errorf("first segment status = %s (atomized=%v), want atomized", first.Status, first.AtomizationComplete)
	}
	if first.StartMS != 0 || first.EndMS != 1200000 {
		t.Errorf("first segment window = [%d, %d), want [0, 1200000)", first.StartMS, first.EndMS)
	}

	second := segs[1]
	if second.SegmentID != "SEG_002" {
		t.Errorf("second segment id = %q, want SEG_002", second.SegmentID)
	}
	if !reflect.DeepEqual(second.AtomRefs, []int{2}) {
		t.Errorf("second segment refs = %v, want [2]", second.AtomRefs)
	}
	if second.EndMS != 1260000 {
		t.Errorf("final window end = %d, want video duration 1260000", second.EndMS)
	}
	if second.DurationMS >= 1200000 {
		t.Errorf("final window duration = %d, expected shorter than the window", second.DurationMS)
	}
}

func TestPartitionEmptyWindowStaysPending(t *testing.T) {
	atomList := []atoms.Atom{
		testAtom("A001", 0, 10000, "start"),
		testAtom("A002", 2500000, 2510000, "after a long silence"),
	}

	segs := Partition(atomList, 20*time.Minute)
	if len(segs) != 3 {
		t.Fatalf("Partition returned %d segments, want 3", len(segs))
	}
	middle := segs[1]
	if len(middle.AtomRefs) != 0 {
		t.Errorf("middle segment refs = %v, want empty", middle.AtomRefs)
	}
	if middle.Status != StatusPending || middle.AtomizationComplete {
		t.Errorf("middle segment status = %s (atomized=%v), want pending", middle.Status, middle.AtomizationComplete)
	}
}

func TestPartitionEmptyStore(t *testing.T) {
	if segs := Partition(nil, 20*time.Minute); segs != nil {
		t.Errorf("Partition(nil) = %v, want nil", segs)
	}
}

func TestResolveSkipsInvalidRefs(t *testing.T) {
	atomList := []atoms.Atom{
		testAtom("A001", 0, 1000, "one"),
		testAtom("A002", 1000, 2000, "two"),
	}
	seg := Segment{SegmentID: "SEG_001", AtomRefs: []int{0, 5, 1, -1}}

	resolved, invalid := Resolve(seg, atomList)
	if len(resolved) != 2 {
		t.Fatalf("resolved %d atoms, want 2", len(resolved))
	}
	if resolved[0].AtomID != "A001" || resolved[1].AtomID != "A002" {
		t.Errorf("resolved atoms = %v", resolved)
	}
	if !reflect.DeepEqual(invalid, []int{5, -1}) {
		t.Errorf("invalid refs = %v, want [5 -1]", invalid)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAtomized, true},
		{StatusPending, StatusAnalyzing, false},
		{StatusAtomized, StatusAnalyzing, true},
		{StatusAnalyzing, StatusAnalyzed, true},
		{StatusAnalyzing, StatusFailed, true},
		{StatusAnalyzed, StatusAnalyzing, true},
		{StatusFailed, StatusAnalyzing, true},
		{StatusAnalyzed, StatusPending, false},
		{StatusFailed, StatusFailed, true},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Analyzing "); !ok || status != StatusAnalyzing {
		t.Errorf("ParseStatus(analyzing) = %q, %v", status, ok)
	}
	if _, ok := ParseStatus("exploded"); ok {
		t.Error("ParseStatus accepted an unknown status")
	}
}
