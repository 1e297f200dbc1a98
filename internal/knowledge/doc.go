// Package knowledge maintains the aggregated whole-transcript index:
// entities, topics, a knowledge graph, and per-atom annotations, merged
// incrementally one segment at a time. Entity names are alias-normalized,
// mention counts are recomputed from source atom text on every merge, and
// all documents are rewritten atomically after each segment so an
// interrupted run resumes from the last fully merged segment.
package knowledge
