package atoms_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"loom/internal/atoms"
)

func sampleAtoms() []atoms.Atom {
	return []atoms.Atom{
		{AtomID: "A001", StartMS: 0, EndMS: 5000, DurationMS: 5000, MergedText: "first unit", Type: "fragment", Completeness: "complete"},
		{AtomID: "A002", StartMS: 5000, EndMS: 12000, DurationMS: 7000, MergedText: "second unit", Type: "fragment", Completeness: "complete"},
		{AtomID: "A003", StartMS: 12000, EndMS: 20000, DurationMS: 8000, MergedText: "third unit", Type: "complete_segment", Completeness: "complete"},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := atoms.NewStore(t.TempDir())
	if err := store.Save(sampleAtoms()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, sampleAtoms()) {
		t.Fatalf("round trip mismatch: %#v", loaded)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	store := atoms.NewStore(t.TempDir())
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty store, got %d atoms", len(loaded))
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	store := atoms.NewStore(t.TempDir())
	dupes := sampleAtoms()
	dupes[2].AtomID = "A001"
	if err := store.Save(dupes); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Load()
	if !errors.Is(err, atoms.ErrIdentityViolation) {
		t.Fatalf("expected identity violation, got %v", err)
	}
}

func TestLoadRejectsCorruptRecords(t *testing.T) {
	cases := []struct {
		name string
		atom atoms.Atom
	}{
		{"empty text", atoms.Atom{AtomID: "A001", StartMS: 0, EndMS: 1000, DurationMS: 1000, MergedText: "  "}},
		{"inverted times", atoms.Atom{AtomID: "A001", StartMS: 2000, EndMS: 1000, DurationMS: 1000, MergedText: "x"}},
		{"wrong duration", atoms.Atom{AtomID: "A001", StartMS: 0, EndMS: 1000, DurationMS: 999, MergedText: "x"}},
		{"missing id", atoms.Atom{StartMS: 0, EndMS: 1000, DurationMS: 1000, MergedText: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := atoms.NewStore(t.TempDir())
			if err := store.Save([]atoms.Atom{tc.atom}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := store.Load(); !errors.Is(err, atoms.ErrCorruptStore) {
				t.Fatalf("expected corrupt store error, got %v", err)
			}
		})
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	store := atoms.NewStore(dir)
	if err := os.WriteFile(filepath.Join(dir, atoms.StoreFilename), []byte("{not json\n"), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, atoms.ErrCorruptStore) {
		t.Fatalf("expected corrupt store error, got %v", err)
	}
}

func TestAssignUniqueIDsProducesDistinctIDs(t *testing.T) {
	input := sampleAtoms()
	input[0].AtomID = "X"
	input[1].AtomID = "X"
	input[2].AtomID = "X"

	renumbered := atoms.AssignUniqueIDs(input)
	seen := make(map[string]struct{})
	for _, atom := range renumbered {
		if _, dup := seen[atom.AtomID]; dup {
			t.Fatalf("duplicate id after renumbering: %s", atom.AtomID)
		}
		seen[atom.AtomID] = struct{}{}
	}
	if renumbered[0].AtomID != "A001" || renumbered[2].AtomID != "A003" {
		t.Fatalf("unexpected ids: %s %s", renumbered[0].AtomID, renumbered[2].AtomID)
	}
}

func TestAssignUniqueIDsIsIdempotent(t *testing.T) {
	once := atoms.AssignUniqueIDs(sampleAtoms())
	twice := atoms.AssignUniqueIDs(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("renumbering is not idempotent: %#v vs %#v", once, twice)
	}
}

func TestRepairRewritesStore(t *testing.T) {
	store := atoms.NewStore(t.TempDir())
	dupes := sampleAtoms()
	dupes[1].AtomID = "A001"
	if err := store.Save(dupes); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	repaired, err := store.Repair()
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if len(repaired) != 3 {
		t.Fatalf("expected 3 atoms, got %d", len(repaired))
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load after repair failed: %v", err)
	}
	if loaded[1].AtomID != "A002" {
		t.Fatalf("expected repaired id A002, got %s", loaded[1].AtomID)
	}
}

func TestVideoDurationMS(t *testing.T) {
	if got := atoms.VideoDurationMS(sampleAtoms()); got != 20000 {
		t.Fatalf("expected 20000, got %d", got)
	}
	if got := atoms.VideoDurationMS(nil); got != 0 {
		t.Fatalf("expected 0 for empty store, got %d", got)
	}
}
