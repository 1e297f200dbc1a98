// Package workflow drives incremental transcript analysis: a single
// background worker pulls pending segments from the state table, runs the
// analyzer, merges the resulting fragment into the aggregated index, and
// persists the index before flipping the segment status. Interrupted runs
// resume from the state table without repeating completed work.
package workflow
