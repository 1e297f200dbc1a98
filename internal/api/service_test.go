package api_test

import (
	"context"
	"testing"
	"time"

	"loom/internal/api"
	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/segments"
)

func seedProject(t *testing.T) (string, *atoms.Store, *segments.Store) {
	t.Helper()
	dir := t.TempDir()

	atomStore := atoms.NewStore(dir)
	err := atomStore.Save([]atoms.Atom{
		{AtomID: "A001", StartMS: 0, EndMS: 30000, DurationMS: 30000, MergedText: "坤沙的早年经历", Type: "叙述", Completeness: "完整"},
		{AtomID: "A002", StartMS: 30000, EndMS: 60000, DurationMS: 30000, MergedText: "金三角的地理环境", Type: "背景", Completeness: "完整"},
	})
	if err != nil {
		t.Fatalf("save atoms: %v", err)
	}

	segStore, err := segments.Open(dir)
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}
	t.Cleanup(func() { segStore.Close() })

	atomList, _ := atomStore.Load()
	if _, _, err := segments.LoadOrRebuild(context.Background(), segStore, atomList, 20*time.Minute); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return dir, atomStore, segStore
}

func TestProjectServiceSegments(t *testing.T) {
	dir, atomStore, segStore := seedProject(t)
	svc := api.NewProjectService(atomStore, segStore, dir, nil)

	segs, err := svc.Segments(context.Background())
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("len = %d, want 1", len(segs))
	}
	if segs[0].SegmentID != "SEG_001" || segs[0].AtomCount != 2 {
		t.Fatalf("segment = %+v", segs[0])
	}
	if segs[0].Status != "atomized" {
		t.Fatalf("status = %s", segs[0].Status)
	}

	one, err := svc.Segment(context.Background(), "SEG_001")
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if one.SegmentID != "SEG_001" {
		t.Fatalf("segment = %+v", one)
	}
}

func TestProjectServiceEntitiesRejectsUnknownType(t *testing.T) {
	dir, atomStore, segStore := seedProject(t)
	svc := api.NewProjectService(atomStore, segStore, dir, nil)

	if _, err := svc.Entities(context.Background(), "animals"); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
	entities, err := svc.Entities(context.Background(), "")
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if len(entities) != 0 {
		t.Fatalf("expected empty index, got %+v", entities)
	}
}

func TestProjectServiceEntitiesReadsIndex(t *testing.T) {
	dir, atomStore, segStore := seedProject(t)

	index, err := knowledge.LoadOrInit(dir, nil)
	if err != nil {
		t.Fatalf("init index: %v", err)
	}
	entities := []knowledge.EntityFragment{{Name: "坤沙", Type: knowledge.TypePerson, AtomIDs: []string{"A001"}}}
	topics := knowledge.TopicFragment{Primary: []string{"金三角"}}
	frag := knowledge.Fragment{
		SegmentID: "SEG_001",
		Entities:  entities,
		Topics:    topics,
		Graph:     knowledge.BuildGraphFragment(knowledge.DefaultNormalizer(), entities, topics),
	}
	atomList, _ := atomStore.Load()
	if _, err := index.Merge(frag, atoms.Texts(atomList)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := index.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	svc := api.NewProjectService(atomStore, segStore, dir, nil)
	got, err := svc.Entities(context.Background(), knowledge.TypePerson)
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if len(got) != 1 || got[0].Name != "坤沙" || got[0].Type != knowledge.TypePerson {
		t.Fatalf("entities = %+v", got)
	}
	if len(got[0].Context) != 1 || got[0].Context[0] != "金三角" {
		t.Fatalf("context = %v, want the merged primary topic", got[0].Context)
	}

	topicsResp, err := svc.Topics(context.Background())
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topicsResp.Primary) != 1 || topicsResp.Primary[0].Name != "金三角" {
		t.Fatalf("topics = %+v", topicsResp)
	}
}

func TestProjectServiceSearchLexical(t *testing.T) {
	dir, atomStore, segStore := seedProject(t)
	svc := api.NewProjectService(atomStore, segStore, dir, nil)

	results, err := svc.SearchLexical(context.Background(), "金三角", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "A002" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Source != "lexical" {
		t.Fatalf("source = %s", results[0].Source)
	}
}
