// Package segments partitions the atom store into fixed-duration analysis
// windows and persists them as a SQLite-backed state table. Segments
// reference atoms by position, move through a small status state machine
// (pending, atomized, analyzing, analyzed, failed), and the whole table is
// rebuilt from the atom store whenever a stored reference goes out of range.
package segments
