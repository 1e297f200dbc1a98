package segments

import (
	"time"

	"loom/internal/atoms"
)

// Partition walks the atom list in time order and closes a window whenever
// window video time has elapsed or the atoms are exhausted. Each window
// records the positional indices of the atoms whose start falls inside
// [window_start, window_end). The final window may be shorter than window.
func Partition(atomList []atoms.Atom, window time.Duration) []Segment {
	if len(atomList) == 0 {
		return nil
	}

	windowMS := window.Milliseconds()
	totalMS := atoms.VideoDurationMS(atomList)
	now := time.Now().UTC()

	var result []Segment
	var start int64
	ordinal := 1
	for start < totalMS {
		end := start + windowMS
		if end > totalMS {
			end = totalMS
		}

		var refs []int
		for i, atom := range atomList {
			if atom.StartMS >= start && atom.StartMS < end {
				refs = append(refs, i)
			}
		}

		status := StatusPending
		if len(refs) > 0 {
			status = StatusAtomized
		}
		result = append(result, Segment{
			SegmentID:           FormatID(ordinal),
			StartMS:             start,
			EndMS:               end,
			DurationMS:          end - start,
			StartTimeStr:        msToTimeStr(start),
			EndTimeStr:          msToTimeStr(end),
			AtomRefs:            refs,
			Status:              status,
			AtomizationComplete: len(refs) > 0,
			UpdatedAt:           now,
		})

		start = end
		ordinal++
	}
	return result
}

// Resolve translates a segment's positional references into atoms. Indices
// outside the store are skipped and returned separately so callers can log
// them; a segment with zero resolvable references is unanalyzable.
func Resolve(seg Segment, atomList []atoms.Atom) (resolved []atoms.Atom, invalid []int) {
	for _, ref := range seg.AtomRefs {
		if ref < 0 || ref >= len(atomList) {
			invalid = append(invalid, ref)
			continue
		}
		resolved = append(resolved, atomList[ref])
	}
	return resolved, invalid
}
