package search

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// DBFilename is the vector index database inside a project data directory.
const DBFilename = "search.db"

// ErrDimensionMismatch indicates a query vector whose length differs from
// the stored vectors.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

const defaultQueryLimit = 10

// Entry is one indexed text chunk with its embedding.
type Entry struct {
	ID     string
	Text   string
	Vector []float32
}

// Match is one ranked query result.
type Match struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store persists atom embeddings in SQLite and ranks queries by cosine
// similarity. The corpus is one transcript's atoms, small enough to scan
// in memory; no approximate index is needed.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    id     TEXT PRIMARY KEY,
    text   TEXT NOT NULL,
    dim    INTEGER NOT NULL,
    vector BLOB NOT NULL
);
`

// Open initializes or connects to the search database.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFilename))
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create search schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes entries, replacing any existing rows with the same id.
func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if entry.ID == "" || len(entry.Vector) == 0 {
			return fmt.Errorf("index entry %q: id and vector required", entry.ID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, text, dim, vector) VALUES (?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET text = excluded.text, dim = excluded.dim, vector = excluded.vector`,
			entry.ID, entry.Text, len(entry.Vector), encodeVector(entry.Vector),
		)
		if err != nil {
			return fmt.Errorf("index entry %q: %w", entry.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Query ranks every stored chunk against the query vector and returns the
// top limit matches by cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector required")
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, dim, vector FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id   string
			text string
			dim  int
			blob []byte
		)
		if err := rows.Scan(&id, &text, &dim, &blob); err != nil {
			return nil, err
		}
		if dim != len(vector) {
			return nil, fmt.Errorf("%w: chunk %s has %d dims, query has %d", ErrDimensionMismatch, id, dim, len(vector))
		}
		stored, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		matches = append(matches, Match{ID: id, Text: text, Score: cosine(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, value := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(value))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("vector blob has %d bytes, want %d", len(blob), 4*dim)
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
