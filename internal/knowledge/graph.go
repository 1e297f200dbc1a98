package knowledge

import "fmt"

// Edge relations emitted by the fragment builder.
const (
	RelationCoOccurrence = "co_occurrence"
	RelationBelongsTo    = "belongs_to"
)

// Node is a graph vertex. ID is always "{type}_{name}" so the same entity
// extracted from two segments lands on one node.
type Node struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Mentions   int      `json:"mentions"`
	SegmentIDs []string `json:"segments"`
}

// Edge is a graph relation, deduplicated by the (source, target, relation)
// triple. Weight counts distinct contributing segments.
type Edge struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Relation   string   `json:"relation"`
	Weight     int      `json:"weight"`
	SegmentIDs []string `json:"segments"`
}

// Graph is the aggregated knowledge-graph document.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewGraph returns an empty graph document.
func NewGraph() *Graph {
	return &Graph{}
}

// NodeID returns the canonical vertex key for an entity or topic.
func NodeID(nodeType, name string) string {
	return fmt.Sprintf("%s_%s", nodeType, name)
}

func (g *Graph) findNode(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *Graph) findEdge(source, target, relation string) *Edge {
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Source == source && e.Target == target && e.Relation == relation {
			return e
		}
	}
	return nil
}

// mergeNode upserts a node; mentions grow only when segmentID is new.
func (g *Graph) mergeNode(node Node, segmentID string) {
	existing := g.findNode(node.ID)
	if existing == nil {
		node.SegmentIDs = []string{segmentID}
		if node.Mentions == 0 {
			node.Mentions = 1
		}
		g.Nodes = append(g.Nodes, node)
		return
	}
	if !containsString(existing.SegmentIDs, segmentID) {
		existing.SegmentIDs = addToSet(existing.SegmentIDs, segmentID)
		existing.Mentions += node.Mentions
	}
}

// mergeEdge upserts an edge; weight grows only when segmentID is new.
func (g *Graph) mergeEdge(edge Edge, segmentID string) {
	existing := g.findEdge(edge.Source, edge.Target, edge.Relation)
	if existing == nil {
		edge.SegmentIDs = []string{segmentID}
		if edge.Weight == 0 {
			edge.Weight = 1
		}
		g.Edges = append(g.Edges, edge)
		return
	}
	if !containsString(existing.SegmentIDs, segmentID) {
		existing.SegmentIDs = addToSet(existing.SegmentIDs, segmentID)
		existing.Weight += edge.Weight
	}
}
