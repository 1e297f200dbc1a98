package workflow

import (
	"context"
	"fmt"

	"loom/internal/knowledge"
	"loom/internal/segments"
)

// Progress is a point-in-time projection of the run: segment counts from
// the state table and entity totals from the aggregated index.
type Progress struct {
	State          RunState `json:"state"`
	CurrentSegment string   `json:"current_segment,omitempty"`
	TotalSegments  int      `json:"total_segments"`
	Analyzed       int      `json:"analyzed"`
	Analyzing      int      `json:"analyzing"`
	Pending        int      `json:"pending"`
	Failed         int      `json:"failed"`
	Percent        float64  `json:"percent"`
	TotalEntities  int      `json:"total_entities"`
	LastError      string   `json:"last_error,omitempty"`
}

// Progress reports the current analysis progress. The entity total comes
// from the aggregated index statistics; per-segment entity counts are
// advisory and are never summed.
func (m *Manager) Progress(ctx context.Context) (Progress, error) {
	stats, err := m.segStore.Stats(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("segment stats: %w", err)
	}

	index, err := knowledge.LoadOrInit(m.indexDir, m.norm)
	if err != nil {
		return Progress{}, fmt.Errorf("load aggregated index: %w", err)
	}
	indexStats := index.Statistics()

	state, current := m.State()
	p := Progress{
		State:          state,
		CurrentSegment: current,
		Analyzed:       stats[segments.StatusAnalyzed],
		Analyzing:      stats[segments.StatusAnalyzing],
		Pending:        stats[segments.StatusPending] + stats[segments.StatusAtomized],
		Failed:         stats[segments.StatusFailed],
		TotalEntities:  indexStats.TotalEntities,
	}
	for _, count := range stats {
		p.TotalSegments += count
	}
	if p.TotalSegments > 0 {
		p.Percent = float64(p.Analyzed) / float64(p.TotalSegments) * 100
	}
	if err := m.LastError(); err != nil {
		p.LastError = err.Error()
	}
	return p, nil
}
