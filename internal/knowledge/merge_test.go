package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := LoadOrInit(t.TempDir(), DefaultNormalizer())
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	return idx
}

func TestMergeRecountsMentionsFromUnion(t *testing.T) {
	idx := newTestIndex(t)

	// 罗星汉 appears once in A1, twice in A2 (one 兴 spelling), once in A3.
	atomTexts := map[string]string{
		"A001": "罗星汉在金三角起家。",
		"A002": "罗星汉的商队很大，罗兴汉这个写法也常见。",
		"A003": "后来罗星汉投降了。",
	}

	// Segment A reports atoms {A1, A2}; segment B reports {A2, A3} with A2
	// double counted across the raw fragments.
	fragA := Fragment{
		SegmentID: "SEG_001",
		Entities:  []EntityFragment{{Name: "罗星汉", Type: TypePerson, AtomIDs: []string{"A001", "A002"}}},
	}
	fragB := Fragment{
		SegmentID: "SEG_002",
		Entities:  []EntityFragment{{Name: "罗兴汉", Type: TypePerson, AtomIDs: []string{"A002", "A003"}}},
	}

	if _, err := idx.Merge(fragA, atomTexts); err != nil {
		t.Fatalf("merge segment A: %v", err)
	}
	if _, err := idx.Merge(fragB, atomTexts); err != nil {
		t.Fatalf("merge segment B: %v", err)
	}

	entity := idx.Entities.Find(TypePerson, "罗星汉")
	if entity == nil {
		t.Fatal("canonical entity missing after merge")
	}
	if len(entity.AtomIDs) != 3 {
		t.Errorf("atom ids = %v, want union of 3", entity.AtomIDs)
	}
	// 1 + 2 + 1 literal occurrences across the union, not fragment sums.
	if entity.Mentions != 4 {
		t.Errorf("mentions = %d, want 4 recounted from atom text", entity.Mentions)
	}
	if len(entity.SegmentIDs) != 2 {
		t.Errorf("segment ids = %v, want both segments", entity.SegmentIDs)
	}
}

func TestMergeIdempotent(t *testing.T) {
	idx := newTestIndex(t)

	atomTexts := map[string]string{
		"A001": "坤沙控制了运输线。",
	}
	frag := Fragment{
		SegmentID: "SEG_001",
		Entities:  []EntityFragment{{Name: "坤沙", Type: TypePerson, AtomIDs: []string{"A001"}}},
		Topics:    TopicFragment{Primary: []string{"毒品贸易"}, Tags: []string{"金三角"}},
		Annotations: []Annotation{
			{AtomID: "A001", SegmentID: "SEG_001", Topics: []string{"毒品贸易"}},
		},
	}
	frag.Graph = BuildGraphFragment(DefaultNormalizer(), frag.Entities, frag.Topics)

	if _, err := idx.Merge(frag, atomTexts); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	first := idx.Statistics()

	if _, err := idx.Merge(frag, atomTexts); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	second := idx.Statistics()

	if first.TotalEntities != second.TotalEntities {
		t.Errorf("entity total changed on re-merge: %d -> %d", first.TotalEntities, second.TotalEntities)
	}
	entity := idx.Entities.Find(TypePerson, "坤沙")
	if entity.Mentions != 1 {
		t.Errorf("mentions = %d after double merge, want 1", entity.Mentions)
	}
	for _, topic := range idx.Topics.PrimaryTopics {
		if topic.Weight != 1 {
			t.Errorf("topic %q weight = %d after double merge, want 1", topic.Name, topic.Weight)
		}
	}
	for _, edge := range idx.Graph.Edges {
		if edge.Weight != 1 {
			t.Errorf("edge %s->%s weight = %d after double merge, want 1", edge.Source, edge.Target, edge.Weight)
		}
	}
	if len(idx.Annotations) != 1 {
		t.Errorf("annotations = %d after double merge, want 1", len(idx.Annotations))
	}
}

func TestMergeUnifiesAliases(t *testing.T) {
	idx := newTestIndex(t)

	atomTexts := map[string]string{
		"A001": "张奇夫年轻时参军。",
		"A002": "坤沙建立了自己的武装。",
	}

	fragA := Fragment{
		SegmentID: "SEG_001",
		Entities:  []EntityFragment{{Name: "张奇夫", Type: TypePerson, AtomIDs: []string{"A001"}}},
	}
	fragB := Fragment{
		SegmentID: "SEG_002",
		Entities:  []EntityFragment{{Name: "坤沙", Type: TypePerson, AtomIDs: []string{"A002"}}},
	}

	if _, err := idx.Merge(fragA, atomTexts); err != nil {
		t.Fatalf("merge fragment A: %v", err)
	}
	if _, err := idx.Merge(fragB, atomTexts); err != nil {
		t.Fatalf("merge fragment B: %v", err)
	}

	if len(idx.Entities.Persons) != 1 {
		names := make([]string, 0, len(idx.Entities.Persons))
		for _, p := range idx.Entities.Persons {
			names = append(names, p.Name)
		}
		t.Fatalf("persons = %v, want one canonical record", names)
	}
	entity := idx.Entities.Persons[0]
	if entity.Name != "坤沙" {
		t.Errorf("canonical name = %q, want 坤沙", entity.Name)
	}
	// Both spellings count from their respective atoms.
	if entity.Mentions != 2 {
		t.Errorf("mentions = %d, want 2 across both alias spellings", entity.Mentions)
	}
}

func TestMergeRejectsInvalidFragmentUntouched(t *testing.T) {
	idx := newTestIndex(t)

	atomTexts := map[string]string{"A001": "坤沙"}
	good := Fragment{
		SegmentID: "SEG_001",
		Entities:  []EntityFragment{{Name: "坤沙", Type: TypePerson, AtomIDs: []string{"A001"}}},
	}
	if _, err := idx.Merge(good, atomTexts); err != nil {
		t.Fatalf("seed merge: %v", err)
	}
	before := idx.Statistics()

	bad := Fragment{
		SegmentID: "SEG_002",
		Entities: []EntityFragment{
			{Name: "缅甸", Type: TypeCountry, AtomIDs: []string{"A001"}},
			{Name: "", Type: TypePerson},
		},
	}
	_, err := idx.Merge(bad, atomTexts)
	if !errors.Is(err, ErrInvalidFragment) {
		t.Fatalf("merge error = %v, want ErrInvalidFragment", err)
	}

	after := idx.Statistics()
	if before.TotalEntities != after.TotalEntities {
		t.Errorf("index mutated by a rejected merge: %d -> %d entities", before.TotalEntities, after.TotalEntities)
	}
	if idx.Entities.Find(TypeCountry, "缅甸") != nil {
		t.Error("partial merge applied the valid half of a rejected fragment")
	}
}

func TestGraphEdgeDedupe(t *testing.T) {
	idx := newTestIndex(t)
	atomTexts := map[string]string{"A001": "坤沙和罗星汉"}

	entities := []EntityFragment{
		{Name: "坤沙", Type: TypePerson, AtomIDs: []string{"A001"}},
		{Name: "罗星汉", Type: TypePerson, AtomIDs: []string{"A001"}},
	}
	fragA := Fragment{SegmentID: "SEG_001", Entities: entities}
	fragA.Graph = BuildGraphFragment(DefaultNormalizer(), entities, TopicFragment{})
	fragB := Fragment{SegmentID: "SEG_002", Entities: entities}
	fragB.Graph = BuildGraphFragment(DefaultNormalizer(), entities, TopicFragment{})

	if _, err := idx.Merge(fragA, atomTexts); err != nil {
		t.Fatalf("merge segment A: %v", err)
	}
	if _, err := idx.Merge(fragB, atomTexts); err != nil {
		t.Fatalf("merge segment B: %v", err)
	}

	if len(idx.Graph.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 deduplicated co-occurrence", len(idx.Graph.Edges))
	}
	edge := idx.Graph.Edges[0]
	// Two distinct segments observed the co-occurrence.
	if edge.Weight != 2 {
		t.Errorf("edge weight = %d, want 2", edge.Weight)
	}
	node := idx.Graph.findNode(NodeID(TypePerson, "坤沙"))
	if node == nil {
		t.Fatal("node missing")
	}
	if len(idx.Graph.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(idx.Graph.Nodes))
	}
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	idx, err := LoadOrInit(dir, DefaultNormalizer())
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}

	atomTexts := map[string]string{"A001": "坤沙的故事"}
	frag := Fragment{
		SegmentID:   "SEG_001",
		Entities:    []EntityFragment{{Name: "坤沙", Type: TypePerson, AtomIDs: []string{"A001"}}},
		Topics:      TopicFragment{Primary: []string{"金三角"}},
		Annotations: []Annotation{{AtomID: "A001", SegmentID: "SEG_001"}},
	}
	if _, err := idx.Merge(frag, atomTexts); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := idx.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	for _, name := range []string{EntitiesFilename, TopicsFilename, GraphFilename, AnnotationsFilename} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("document %s not written: %v", name, err)
		}
	}

	reloaded, err := LoadOrInit(dir, DefaultNormalizer())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Entities.Statistics.TotalEntities != 1 {
		t.Errorf("reloaded entity total = %d, want 1", reloaded.Entities.Statistics.TotalEntities)
	}
	if len(reloaded.Topics.PrimaryTopics) != 1 {
		t.Errorf("reloaded topics = %d, want 1", len(reloaded.Topics.PrimaryTopics))
	}
	if len(reloaded.Annotations) != 1 {
		t.Errorf("reloaded annotations = %d, want 1", len(reloaded.Annotations))
	}
}

func TestLoadOrInitRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, EntitiesFilename), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt document: %v", err)
	}
	if _, err := LoadOrInit(dir, nil); err == nil {
		t.Fatal("LoadOrInit accepted a corrupt entities document")
	}
}
