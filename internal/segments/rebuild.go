package segments

import (
	"context"
	"time"

	"loom/internal/atoms"
)

// LoadOrRebuild returns the persisted segment table, rebuilding it from the
// atom store when it is empty or any stored positional reference is out of
// range. A rebuild is always full-table: partially repairing a table whose
// references point at a different atom ordering would silently attach atoms
// to the wrong windows. Rebuilt reports whether a rebuild happened.
func LoadOrRebuild(ctx context.Context, store *Store, atomList []atoms.Atom, window time.Duration) (segs []Segment, rebuilt bool, err error) {
	segs, err = store.List(ctx)
	if err != nil {
		return nil, false, err
	}

	valid := len(segs) > 0
	for _, seg := range segs {
		if !seg.ValidRefs(len(atomList)) {
			valid = false
			break
		}
	}
	if valid {
		return segs, false, nil
	}

	segs = Partition(atomList, window)
	if err := store.ReplaceAll(ctx, segs); err != nil {
		return nil, false, err
	}
	segs, err = store.List(ctx)
	if err != nil {
		return nil, false, err
	}
	return segs, true, nil
}
