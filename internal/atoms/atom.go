package atoms

import (
	"fmt"
	"strings"
)

// Atom is the smallest unit of transcript meaning produced by atomization.
// Atoms are read-only once stored; the store is only ever replaced wholesale
// or repaired with AssignUniqueIDs.
type Atom struct {
	AtomID             string `json:"atom_id"`
	StartMS            int64  `json:"start_ms"`
	EndMS              int64  `json:"end_ms"`
	DurationMS         int64  `json:"duration_ms"`
	MergedText         string `json:"merged_text"`
	Type               string `json:"type"`
	Completeness       string `json:"completeness"`
	SourceUtteranceIDs []int  `json:"source_utterance_ids,omitempty"`
}

// Validate checks the per-record invariants the rest of the pipeline relies on.
func (a Atom) Validate() error {
	if strings.TrimSpace(a.AtomID) == "" {
		return fmt.Errorf("atom missing atom_id")
	}
	if strings.TrimSpace(a.MergedText) == "" {
		return fmt.Errorf("atom %s: merged_text must not be empty", a.AtomID)
	}
	if a.EndMS <= a.StartMS {
		return fmt.Errorf("atom %s: end_ms %d must be after start_ms %d", a.AtomID, a.EndMS, a.StartMS)
	}
	if a.DurationMS != a.EndMS-a.StartMS {
		return fmt.Errorf("atom %s: duration_ms %d does not equal end_ms-start_ms %d", a.AtomID, a.DurationMS, a.EndMS-a.StartMS)
	}
	return nil
}

// AssignUniqueIDs renumbers atoms so identity is a pure function of position
// in the store. The operation is idempotent: renumbering an already
// renumbered slice yields the same ids.
func AssignUniqueIDs(atoms []Atom) []Atom {
	renumbered := make([]Atom, len(atoms))
	for i, atom := range atoms {
		atom.AtomID = FormatID(i)
		renumbered[i] = atom
	}
	return renumbered
}

// FormatID returns the canonical atom id for a store position.
func FormatID(position int) string {
	return fmt.Sprintf("A%03d", position+1)
}

// VideoDurationMS returns the total transcript duration covered by atoms.
func VideoDurationMS(atoms []Atom) int64 {
	var max int64
	for _, atom := range atoms {
		if atom.EndMS > max {
			max = atom.EndMS
		}
	}
	return max
}

// Texts builds the atom-id to merged-text map used for mention recounting.
func Texts(atoms []Atom) map[string]string {
	texts := make(map[string]string, len(atoms))
	for _, atom := range atoms {
		texts[atom.AtomID] = atom.MergedText
	}
	return texts
}
