// Package search keeps atom embeddings in a SQLite table and answers
// semantic queries by cosine similarity. It serves the CLI search command
// only; the analysis loop never depends on it.
package search
