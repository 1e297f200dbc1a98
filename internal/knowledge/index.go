package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document filenames inside a project data directory.
const (
	EntitiesFilename    = "entities.json"
	TopicsFilename      = "topics.json"
	GraphFilename       = "knowledge_graph.json"
	AnnotationsFilename = "atom_annotations.json"
)

// Emotion is the per-atom emotional reading from annotation.
type Emotion struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// Annotation is the semantic tagging of one atom. Annotations are keyed by
// atom id in the aggregated document; re-annotating an atom replaces its
// previous record.
type Annotation struct {
	AtomID    string   `json:"atom_id"`
	SegmentID string   `json:"segment_id"`
	Topics    []string `json:"topics"`
	Entities  []string `json:"entities"`
	Emotion   Emotion  `json:"emotion"`
}

// Index bundles the four aggregated documents and their storage location.
// It is not safe for concurrent mutation; the driver loop is the only
// writer by design.
type Index struct {
	Entities    *EntityIndex
	Topics      *TopicIndex
	Graph       *Graph
	Annotations []Annotation

	dir  string
	norm *Normalizer
}

// LoadOrInit reads the aggregated documents from dir, initializing any that
// are missing. A present-but-unreadable document is an error rather than a
// silent reinitialization: overwriting a corrupt index would destroy every
// analyzed segment's contribution.
func LoadOrInit(dir string, norm *Normalizer) (*Index, error) {
	if norm == nil {
		norm = DefaultNormalizer()
	}
	idx := &Index{
		Entities:    NewEntityIndex(),
		Topics:      NewTopicIndex(),
		Graph:       NewGraph(),
		Annotations: nil,
		dir:         dir,
		norm:        norm,
	}
	if err := loadDocument(filepath.Join(dir, EntitiesFilename), idx.Entities); err != nil {
		return nil, err
	}
	if err := loadDocument(filepath.Join(dir, TopicsFilename), idx.Topics); err != nil {
		return nil, err
	}
	if err := loadDocument(filepath.Join(dir, GraphFilename), idx.Graph); err != nil {
		return nil, err
	}
	if err := loadDocument(filepath.Join(dir, AnnotationsFilename), &idx.Annotations); err != nil {
		return nil, err
	}
	return idx, nil
}

// Persist atomically rewrites all four documents. Called after every
// segment merge so a crash between segments loses at most the segment in
// flight.
func (idx *Index) Persist() error {
	if err := writeDocument(filepath.Join(idx.dir, EntitiesFilename), idx.Entities); err != nil {
		return err
	}
	if err := writeDocument(filepath.Join(idx.dir, TopicsFilename), idx.Topics); err != nil {
		return err
	}
	if err := writeDocument(filepath.Join(idx.dir, GraphFilename), idx.Graph); err != nil {
		return err
	}
	return writeDocument(filepath.Join(idx.dir, AnnotationsFilename), idx.Annotations)
}

// Stats is the authoritative index summary. Progress reporting reads
// TotalEntities from here, never from advisory per-segment counts.
type Stats struct {
	TotalEntities    int            `json:"total_entities"`
	EntitiesByType   map[string]int `json:"entities_by_type"`
	TotalTopics      int            `json:"total_topics"`
	GraphNodes       int            `json:"graph_nodes"`
	GraphEdges       int            `json:"graph_edges"`
	AnnotatedAtoms   int            `json:"annotated_atoms"`
	MergedSegmentIDs []string       `json:"merged_segments"`
}

// Statistics returns the current authoritative summary.
func (idx *Index) Statistics() Stats {
	merged := map[string]struct{}{}
	for _, entityType := range EntityTypes {
		for _, entity := range *idx.Entities.typeList(entityType) {
			for _, seg := range entity.SegmentIDs {
				merged[seg] = struct{}{}
			}
		}
	}
	var segments []string
	for seg := range merged {
		segments = addToSet(segments, seg)
	}
	return Stats{
		TotalEntities:    idx.Entities.Statistics.TotalEntities,
		EntitiesByType:   idx.Entities.Statistics.ByType,
		TotalTopics:      len(idx.Topics.PrimaryTopics) + len(idx.Topics.SecondaryTopics) + len(idx.Topics.Tags),
		GraphNodes:       len(idx.Graph.Nodes),
		GraphEdges:       len(idx.Graph.Edges),
		AnnotatedAtoms:   len(idx.Annotations),
		MergedSegmentIDs: segments,
	}
}

func loadDocument(path string, target any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeDocument(path string, source any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure index directory: %w", err)
	}
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
