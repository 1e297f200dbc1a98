package knowledge

import (
	"errors"
	"fmt"
)

// ErrInvalidFragment marks a fragment that fails validation; the index is
// left untouched when it is returned.
var ErrInvalidFragment = errors.New("invalid segment fragment")

// EntityFragment is one raw entity extraction from a segment analysis. Name
// is the surface string as the model emitted it; canonicalization happens
// during merge.
type EntityFragment struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	AtomIDs []string `json:"atoms"`
}

// TopicFragment carries a segment's topic extraction.
type TopicFragment struct {
	Primary   []string `json:"primary_topics"`
	Secondary []string `json:"secondary_topics"`
	Tags      []string `json:"tags"`
}

// GraphFragment carries a segment's graph contribution.
type GraphFragment struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Fragment is everything one segment analysis contributes to the index.
type Fragment struct {
	SegmentID   string           `json:"segment_id"`
	Entities    []EntityFragment `json:"entities"`
	Topics      TopicFragment    `json:"topics"`
	Graph       GraphFragment    `json:"graph"`
	Annotations []Annotation     `json:"annotations"`
}

// BuildGraphFragment derives a segment's graph contribution from its entity
// and topic extractions: one node per entity, one node per primary topic,
// co-occurrence edges between entities in the segment, and belongs_to edges
// from each entity to each primary topic.
func BuildGraphFragment(norm *Normalizer, entities []EntityFragment, topics TopicFragment) GraphFragment {
	var frag GraphFragment
	seen := map[string]struct{}{}

	type vertex struct{ id, name, typ string }
	var entityVertices []vertex
	for _, entity := range entities {
		canonical := norm.Canonical(entity.Name)
		id := NodeID(entity.Type, canonical)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		frag.Nodes = append(frag.Nodes, Node{ID: id, Name: canonical, Type: entity.Type, Mentions: 1})
		entityVertices = append(entityVertices, vertex{id: id, name: canonical, typ: entity.Type})
	}

	var topicVertices []vertex
	for _, topic := range topics.Primary {
		if topic == "" {
			continue
		}
		id := NodeID("topic", topic)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		frag.Nodes = append(frag.Nodes, Node{ID: id, Name: topic, Type: "topic", Mentions: 1})
		topicVertices = append(topicVertices, vertex{id: id, name: topic, typ: "topic"})
	}

	for i := 0; i < len(entityVertices); i++ {
		for j := i + 1; j < len(entityVertices); j++ {
			frag.Edges = append(frag.Edges, Edge{
				Source:   entityVertices[i].id,
				Target:   entityVertices[j].id,
				Relation: RelationCoOccurrence,
				Weight:   1,
			})
		}
		for _, topic := range topicVertices {
			frag.Edges = append(frag.Edges, Edge{
				Source:   entityVertices[i].id,
				Target:   topic.id,
				Relation: RelationBelongsTo,
				Weight:   1,
			})
		}
	}
	return frag
}

// ValidateFragment checks a fragment before any mutation, so a merge either
// applies fully or not at all.
func ValidateFragment(frag Fragment) error {
	if frag.SegmentID == "" {
		return fmt.Errorf("%w: missing segment id", ErrInvalidFragment)
	}
	for i, entity := range frag.Entities {
		if entity.Name == "" {
			return fmt.Errorf("%w: entity %d has no name", ErrInvalidFragment, i)
		}
		if !KnownEntityType(entity.Type) {
			return fmt.Errorf("%w: entity %q has unknown type %q", ErrInvalidFragment, entity.Name, entity.Type)
		}
		for _, atomID := range entity.AtomIDs {
			if atomID == "" {
				return fmt.Errorf("%w: entity %q references an empty atom id", ErrInvalidFragment, entity.Name)
			}
		}
	}
	for i, node := range frag.Graph.Nodes {
		if node.ID == "" || node.Name == "" {
			return fmt.Errorf("%w: graph node %d incomplete", ErrInvalidFragment, i)
		}
	}
	for i, edge := range frag.Graph.Edges {
		if edge.Source == "" || edge.Target == "" || edge.Relation == "" {
			return fmt.Errorf("%w: graph edge %d incomplete", ErrInvalidFragment, i)
		}
	}
	for i, annotation := range frag.Annotations {
		if annotation.AtomID == "" {
			return fmt.Errorf("%w: annotation %d has no atom id", ErrInvalidFragment, i)
		}
	}
	return nil
}

// Merge folds one segment's fragment into the index. atomTexts maps atom id
// to merged text for the whole store; it is the source of truth for mention
// recounting. Merging the same segment twice is a no-op for every counter.
// Returns the number of raw entity extractions processed (advisory, stored
// on the segment row).
//
// Merge does not persist; callers persist the index before flipping the
// segment's status so a crash never records an analyzed segment whose
// contribution is missing.
func (idx *Index) Merge(frag Fragment, atomTexts map[string]string) (int, error) {
	if err := ValidateFragment(frag); err != nil {
		return 0, err
	}

	for _, raw := range frag.Entities {
		canonical := idx.norm.Canonical(raw.Name)
		entity := idx.Entities.Find(raw.Type, canonical)
		if entity == nil {
			entity = idx.Entities.upsert(raw.Type, Entity{Name: canonical, Type: raw.Type})
		}
		entity.AtomIDs = unionSets(entity.AtomIDs, raw.AtomIDs)
		entity.SegmentIDs = addToSet(entity.SegmentIDs, frag.SegmentID)
		for _, topic := range frag.Topics.Primary {
			if topic != "" {
				entity.Context = addToSet(entity.Context, topic)
			}
		}
		// Recount from the union of atom texts. Summing fragment counts
		// would double-count atoms shared between segments or re-runs.
		mentions := 0
		for _, atomID := range entity.AtomIDs {
			if text, ok := atomTexts[atomID]; ok {
				mentions += idx.norm.CountOccurrences(text, canonical)
			}
		}
		entity.Mentions = mentions
	}
	idx.Entities.RecomputeStatistics()

	idx.Topics.PrimaryTopics = mergeTopicList(idx.Topics.PrimaryTopics, frag.Topics.Primary, frag.SegmentID)
	idx.Topics.SecondaryTopics = mergeTopicList(idx.Topics.SecondaryTopics, frag.Topics.Secondary, frag.SegmentID)
	idx.Topics.Tags = mergeTopicList(idx.Topics.Tags, frag.Topics.Tags, frag.SegmentID)

	for _, node := range frag.Graph.Nodes {
		idx.Graph.mergeNode(node, frag.SegmentID)
	}
	for _, edge := range frag.Graph.Edges {
		idx.Graph.mergeEdge(edge, frag.SegmentID)
	}

	for _, annotation := range frag.Annotations {
		replaced := false
		for i := range idx.Annotations {
			if idx.Annotations[i].AtomID == annotation.AtomID {
				idx.Annotations[i] = annotation
				replaced = true
				break
			}
		}
		if !replaced {
			idx.Annotations = append(idx.Annotations, annotation)
		}
	}

	return len(frag.Entities), nil
}
