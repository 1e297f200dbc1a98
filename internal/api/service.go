package api

import (
	"context"
	"fmt"

	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/search"
	"loom/internal/segments"
)

// SegmentReader abstracts segment persistence interactions needed for API
// queries.
type SegmentReader interface {
	List(ctx context.Context) ([]segments.Segment, error)
	GetByID(ctx context.Context, segmentID string) (*segments.Segment, error)
}

// ProjectService exposes read-only project operations returning API DTOs.
// Both the CLI and the daemon HTTP layer render through it.
type ProjectService struct {
	atomStore *atoms.Store
	segStore  SegmentReader
	indexDir  string
	norm      *knowledge.Normalizer
}

// NewProjectService constructs a ProjectService for one project directory.
func NewProjectService(atomStore *atoms.Store, segStore SegmentReader, indexDir string, norm *knowledge.Normalizer) *ProjectService {
	return &ProjectService{
		atomStore: atomStore,
		segStore:  segStore,
		indexDir:  indexDir,
		norm:      norm,
	}
}

// Segments lists every segment row.
func (s *ProjectService) Segments(ctx context.Context) ([]Segment, error) {
	segs, err := s.segStore.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromSegments(segs), nil
}

// Segment fetches a single segment row.
func (s *ProjectService) Segment(ctx context.Context, segmentID string) (*Segment, error) {
	seg, err := s.segStore.GetByID(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	dto := FromSegment(*seg)
	return &dto, nil
}

// Atoms lists every atom record.
func (s *ProjectService) Atoms(ctx context.Context) ([]Atom, error) {
	list, err := s.atomStore.Load()
	if err != nil {
		return nil, err
	}
	return FromAtoms(list), nil
}

// Entities lists aggregated entities, optionally filtered by type.
func (s *ProjectService) Entities(ctx context.Context, entityType string) ([]Entity, error) {
	if entityType != "" && !knowledge.KnownEntityType(entityType) {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	index, err := knowledge.LoadOrInit(s.indexDir, s.norm)
	if err != nil {
		return nil, err
	}
	return FromEntityIndex(index.Entities, entityType), nil
}

// Topics returns the aggregated topic document.
func (s *ProjectService) Topics(ctx context.Context) (TopicListResponse, error) {
	index, err := knowledge.LoadOrInit(s.indexDir, s.norm)
	if err != nil {
		return TopicListResponse{}, err
	}
	return FromTopicIndex(index.Topics), nil
}

// Graph returns the full knowledge graph document.
func (s *ProjectService) Graph(ctx context.Context) (*knowledge.Graph, error) {
	index, err := knowledge.LoadOrInit(s.indexDir, s.norm)
	if err != nil {
		return nil, err
	}
	return index.Graph, nil
}

// Annotations returns per-atom annotations.
func (s *ProjectService) Annotations(ctx context.Context) ([]knowledge.Annotation, error) {
	index, err := knowledge.LoadOrInit(s.indexDir, s.norm)
	if err != nil {
		return nil, err
	}
	return index.Annotations, nil
}

// SearchLexical ranks atoms against the query without an embedding API.
func (s *ProjectService) SearchLexical(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	list, err := s.atomStore.Load()
	if err != nil {
		return nil, err
	}
	matches := search.Lexical(atoms.Texts(list), query, limit)
	return FromMatches(matches, "lexical"), nil
}
