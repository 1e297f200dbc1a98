package knowledge

import "sort"

// Entity type names, in the order entity documents list them.
const (
	TypePerson       = "persons"
	TypeCountry      = "countries"
	TypeOrganization = "organizations"
	TypeTimePoint    = "time_points"
	TypeEvent        = "events"
	TypeConcept      = "concepts"
)

// EntityTypes lists every recognized entity type.
var EntityTypes = []string{
	TypePerson,
	TypeCountry,
	TypeOrganization,
	TypeTimePoint,
	TypeEvent,
	TypeConcept,
}

// KnownEntityType reports whether t is one of the recognized entity types.
func KnownEntityType(t string) bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is one canonical-named record in the aggregated entity document.
// Mentions always equals the occurrence count of the canonical name (and
// its variants) across the text of exactly the atoms in AtomIDs; it is
// recomputed on every merge, never incremented.
type Entity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Mentions   int      `json:"mentions"`
	AtomIDs    []string `json:"atoms"`
	SegmentIDs []string `json:"segments"`
	Context    []string `json:"context"`
}

// EntityStatistics summarizes the aggregated entity document.
type EntityStatistics struct {
	TotalEntities int            `json:"total_entities"`
	ByType        map[string]int `json:"by_type"`
}

// EntityIndex is the aggregated entity document, one list per type.
type EntityIndex struct {
	Persons       []Entity         `json:"persons"`
	Countries     []Entity         `json:"countries"`
	Organizations []Entity         `json:"organizations"`
	TimePoints    []Entity         `json:"time_points"`
	Events        []Entity         `json:"events"`
	Concepts      []Entity         `json:"concepts"`
	Statistics    EntityStatistics `json:"statistics"`
}

// NewEntityIndex returns an empty entity document.
func NewEntityIndex() *EntityIndex {
	return &EntityIndex{Statistics: EntityStatistics{ByType: typeCounts(nil)}}
}

func (idx *EntityIndex) typeList(entityType string) *[]Entity {
	switch entityType {
	case TypePerson:
		return &idx.Persons
	case TypeCountry:
		return &idx.Countries
	case TypeOrganization:
		return &idx.Organizations
	case TypeTimePoint:
		return &idx.TimePoints
	case TypeEvent:
		return &idx.Events
	case TypeConcept:
		return &idx.Concepts
	default:
		return nil
	}
}

// ByType returns the entity list for entityType, nil for unknown types.
func (idx *EntityIndex) ByType(entityType string) []Entity {
	list := idx.typeList(entityType)
	if list == nil {
		return nil
	}
	return *list
}

// Find returns the entity with the given canonical name and type, or nil.
func (idx *EntityIndex) Find(entityType, name string) *Entity {
	list := idx.typeList(entityType)
	if list == nil {
		return nil
	}
	for i := range *list {
		if (*list)[i].Name == name {
			return &(*list)[i]
		}
	}
	return nil
}

func (idx *EntityIndex) upsert(entityType string, entity Entity) *Entity {
	list := idx.typeList(entityType)
	*list = append(*list, entity)
	return &(*list)[len(*list)-1]
}

// RecomputeStatistics refreshes the totals and re-sorts each type list by
// descending mentions.
func (idx *EntityIndex) RecomputeStatistics() {
	byType := make(map[string]int, len(EntityTypes))
	total := 0
	for _, entityType := range EntityTypes {
		list := idx.typeList(entityType)
		sort.SliceStable(*list, func(i, j int) bool {
			return (*list)[i].Mentions > (*list)[j].Mentions
		})
		byType[entityType] = len(*list)
		total += len(*list)
	}
	idx.Statistics = EntityStatistics{TotalEntities: total, ByType: byType}
}

func typeCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(EntityTypes))
	for _, entityType := range EntityTypes {
		out[entityType] = counts[entityType]
	}
	return out
}

// addToSet appends value to set if absent, keeping the slice sorted.
func addToSet(set []string, value string) []string {
	idx := sort.SearchStrings(set, value)
	if idx < len(set) && set[idx] == value {
		return set
	}
	set = append(set, "")
	copy(set[idx+1:], set[idx:])
	set[idx] = value
	return set
}

// unionSets merges two string sets into a sorted, deduplicated slice.
func unionSets(a, b []string) []string {
	out := append([]string(nil), a...)
	sort.Strings(out)
	for _, value := range b {
		out = addToSet(out, value)
	}
	return out
}

// containsString reports set membership; set need not be sorted.
func containsString(set []string, value string) bool {
	for _, member := range set {
		if member == value {
			return true
		}
	}
	return false
}
