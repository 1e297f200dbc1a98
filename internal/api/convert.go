package api

import (
	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/search"
	"loom/internal/segments"
	"loom/internal/workflow"
)

// FromSegment converts a segment row to its API representation.
func FromSegment(seg segments.Segment) Segment {
	dto := Segment{
		SegmentID:           seg.SegmentID,
		StartMS:             seg.StartMS,
		EndMS:               seg.EndMS,
		DurationMS:          seg.DurationMS,
		StartTime:           seg.StartTimeStr,
		EndTime:             seg.EndTimeStr,
		AtomCount:           len(seg.AtomRefs),
		Status:              string(seg.Status),
		AtomizationComplete: seg.AtomizationComplete,
		AnalysisComplete:    seg.AnalysisComplete,
		EntityCount:         seg.EntityCount,
		ErrorMessage:        seg.ErrorMessage,
	}
	if !seg.UpdatedAt.IsZero() {
		dto.UpdatedAt = seg.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSegments converts a slice of segment rows.
func FromSegments(segs []segments.Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, seg := range segs {
		out = append(out, FromSegment(seg))
	}
	return out
}

// FromAtom converts an atom record to its API representation.
func FromAtom(atom atoms.Atom) Atom {
	return Atom{
		AtomID:       atom.AtomID,
		StartMS:      atom.StartMS,
		EndMS:        atom.EndMS,
		DurationMS:   atom.DurationMS,
		Text:         atom.MergedText,
		Type:         atom.Type,
		Completeness: atom.Completeness,
	}
}

// FromAtoms converts a slice of atom records.
func FromAtoms(list []atoms.Atom) []Atom {
	out := make([]Atom, 0, len(list))
	for _, atom := range list {
		out = append(out, FromAtom(atom))
	}
	return out
}

// FromEntity converts an aggregated entity record.
func FromEntity(entityType string, entity knowledge.Entity) Entity {
	return Entity{
		Name:     entity.Name,
		Type:     entityType,
		Mentions: entity.Mentions,
		Atoms:    entity.AtomIDs,
		Segments: entity.SegmentIDs,
		Context:  entity.Context,
	}
}

// FromEntityIndex flattens the typed entity lists into one slice. When
// entityType is non-empty, only that list is converted.
func FromEntityIndex(idx *knowledge.EntityIndex, entityType string) []Entity {
	if idx == nil {
		return nil
	}
	types := knowledge.EntityTypes
	if entityType != "" {
		types = []string{entityType}
	}
	var out []Entity
	for _, t := range types {
		for _, entity := range idx.ByType(t) {
			out = append(out, FromEntity(t, entity))
		}
	}
	return out
}

// FromTopics converts a topic list.
func FromTopics(topics []knowledge.Topic) []Topic {
	out := make([]Topic, 0, len(topics))
	for _, topic := range topics {
		out = append(out, Topic{
			Name:     topic.Name,
			Weight:   topic.Weight,
			Segments: topic.SegmentIDs,
		})
	}
	return out
}

// FromTopicIndex converts the aggregated topic document.
func FromTopicIndex(idx *knowledge.TopicIndex) TopicListResponse {
	if idx == nil {
		return TopicListResponse{}
	}
	tags := make([]string, 0, len(idx.Tags))
	for _, tag := range idx.Tags {
		tags = append(tags, tag.Name)
	}
	return TopicListResponse{
		Primary:   FromTopics(idx.PrimaryTopics),
		Secondary: FromTopics(idx.SecondaryTopics),
		Tags:      tags,
	}
}

// FromGraph summarizes the knowledge graph.
func FromGraph(graph *knowledge.Graph) GraphSummary {
	if graph == nil {
		return GraphSummary{}
	}
	return GraphSummary{Nodes: len(graph.Nodes), Edges: len(graph.Edges)}
}

// FromProgress converts a workflow progress snapshot.
func FromProgress(p workflow.Progress) Progress {
	return Progress{
		State:          string(p.State),
		CurrentSegment: p.CurrentSegment,
		TotalSegments:  p.TotalSegments,
		Analyzed:       p.Analyzed,
		Analyzing:      p.Analyzing,
		Pending:        p.Pending,
		Failed:         p.Failed,
		Percent:        p.Percent,
		TotalEntities:  p.TotalEntities,
		LastError:      p.LastError,
	}
}

// FromMatches converts search matches, labelling their source path.
func FromMatches(matches []search.Match, source string) []SearchResult {
	out := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		out = append(out, SearchResult{
			ID:     match.ID,
			Text:   match.Text,
			Score:  match.Score,
			Source: source,
		})
	}
	return out
}
