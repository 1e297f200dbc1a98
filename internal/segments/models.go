package segments

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an analysis segment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAtomized  Status = "atomized"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusAtomized,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// legalTransitions is the segment state machine. Same-status writes are
// always allowed (used to attach fields like error_message without moving
// the segment). pending→analyzing is deliberately absent: a segment must be
// atomized before analysis can start.
var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusAtomized},
	StatusAtomized:  {StatusAnalyzing},
	StatusAnalyzing: {StatusAnalyzed, StatusFailed, StatusAtomized},
	StatusAnalyzed:  {StatusAnalyzing, StatusAtomized},
	StatusFailed:    {StatusAnalyzing, StatusAtomized},
}

// CanTransition reports whether moving a segment from one status to another
// is legal.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Segment is one fixed-duration analysis window over the atom store.
//
// AtomRefs holds positional indices into the atom store, not atom-id
// strings: indices are validated against the store length on load and are
// immune to id collisions, which string references historically were not.
type Segment struct {
	SegmentID           string    `json:"segment_id"`
	StartMS             int64     `json:"start_ms"`
	EndMS               int64     `json:"end_ms"`
	DurationMS          int64     `json:"duration_ms"`
	StartTimeStr        string    `json:"start_time_str"`
	EndTimeStr          string    `json:"end_time_str"`
	AtomRefs            []int     `json:"atom_refs"`
	Status              Status    `json:"status"`
	AtomizationComplete bool      `json:"atomization_complete"`
	AnalysisComplete    bool      `json:"analysis_complete"`
	EntityCount         int       `json:"entity_count"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FormatID returns the canonical segment id for a window ordinal (1-based).
func FormatID(ordinal int) string {
	return fmt.Sprintf("SEG_%03d", ordinal)
}

// ValidRefs reports whether every positional reference is in range for a
// store of atomCount atoms.
func (s Segment) ValidRefs(atomCount int) bool {
	for _, ref := range s.AtomRefs {
		if ref < 0 || ref >= atomCount {
			return false
		}
	}
	return true
}

func msToTimeStr(ms int64) string {
	seconds := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
