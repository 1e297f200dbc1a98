// Package atoms holds the canonical, stably-identified list of atomic
// transcript units for one project, persisted as JSONL.
//
// Atom ids are positional (A001, A002, ...) and must be pairwise distinct;
// duplicate ids are a fatal identity violation because every downstream
// entity-to-atom mapping assumes uniqueness. AssignUniqueIDs repairs a store
// by renumbering, and the operation is idempotent.
package atoms
