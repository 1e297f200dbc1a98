package segments

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale tables are rebuilt from the atom store, so no migration
// machinery is needed.
const schemaVersion = 1

// DBFilename is the canonical name of the segment state table inside a
// project data directory.
const DBFilename = "segments.db"

var (
	// ErrNotFound indicates no segment exists with the requested id.
	ErrNotFound = errors.New("segment not found")
	// ErrIllegalTransition indicates a status change the state machine forbids.
	ErrIllegalTransition = errors.New("illegal segment transition")
	// ErrSchemaMismatch indicates the database schema version doesn't match.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// Store manages segment state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the segment database.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFilename)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// ReplaceAll discards the stored table and writes a freshly partitioned one.
// Partial repair is deliberately not offered: positional references are only
// meaningful relative to one specific atom ordering.
func (s *Store) ReplaceAll(ctx context.Context, segs []Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	for _, seg := range segs {
		refs, err := json.Marshal(seg.AtomRefs)
		if err != nil {
			return fmt.Errorf("encode atom refs for %s: %w", seg.SegmentID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO segments (
                segment_id, start_ms, end_ms, duration_ms, start_time_str, end_time_str,
                atom_refs, status, atomization_complete, analysis_complete,
                entity_count, error_message, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.SegmentID, seg.StartMS, seg.EndMS, seg.DurationMS,
			seg.StartTimeStr, seg.EndTimeStr, string(refs), seg.Status,
			boolToInt(seg.AtomizationComplete), boolToInt(seg.AnalysisComplete),
			seg.EntityCount, nullableString(seg.ErrorMessage),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert segment %s: %w", seg.SegmentID, err)
		}
	}
	return tx.Commit()
}

// List returns every segment ordered by segment id.
func (s *Store) List(ctx context.Context) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+segmentColumns+` FROM segments ORDER BY segment_id`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segs []Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// GetByID fetches a segment by identifier.
func (s *Store) GetByID(ctx context.Context, segmentID string) (*Segment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE segment_id = ?`, segmentID)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, segmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return &seg, nil
}

// NextPending returns the segment the driver loop should process next: the
// first atomized-but-unanalyzed segment that is not failed, else the first
// never-atomized pending segment, else nil. A segment stuck in analyzing
// (crash before the status flip) is re-selected, which is what makes the
// loop resumable.
func (s *Store) NextPending(ctx context.Context) (*Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments
         WHERE atomization_complete = 1 AND analysis_complete = 0 AND status != ?
         ORDER BY segment_id LIMIT 1`, StatusFailed)
	seg, err := scanSegment(row)
	if err == nil {
		return &seg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("next pending segment: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments
         WHERE atomization_complete = 0 AND status = ?
         ORDER BY segment_id LIMIT 1`, StatusPending)
	seg, err = scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending segment: %w", err)
	}
	return &seg, nil
}

// UpdateField mutates optional fields during a status update.
type UpdateField func(*Segment)

// WithAnalysisComplete marks the analysis flag.
func WithAnalysisComplete(complete bool) UpdateField {
	return func(seg *Segment) { seg.AnalysisComplete = complete }
}

// WithEntityCount records the advisory per-segment entity count.
func WithEntityCount(count int) UpdateField {
	return func(seg *Segment) { seg.EntityCount = count }
}

// WithErrorMessage attaches an error message to the segment.
func WithErrorMessage(message string) UpdateField {
	return func(seg *Segment) { seg.ErrorMessage = message }
}

// UpdateStatus performs a transactional read-modify-write of one segment.
// Illegal transitions fail with ErrIllegalTransition; entering analyzed or
// atomized clears any stale error message.
func (s *Store) UpdateStatus(ctx context.Context, segmentID string, status Status, fields ...UpdateField) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE segment_id = ?`, segmentID)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, segmentID)
	}
	if err != nil {
		return fmt.Errorf("read segment: %w", err)
	}

	if !CanTransition(seg.Status, status) {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrIllegalTransition, seg.Status, status, segmentID)
	}

	seg.Status = status
	if status == StatusAnalyzed || status == StatusAtomized {
		seg.ErrorMessage = ""
	}
	for _, field := range fields {
		field(&seg)
	}

	if err := writeSegment(ctx, tx, seg); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset reverts one segment to atomized for re-analysis without touching its
// atomization state. Segments that were never atomized are left alone.
func (s *Store) Reset(ctx context.Context, segmentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments
         SET status = ?, analysis_complete = 0, entity_count = 0,
             error_message = NULL, updated_at = ?
         WHERE segment_id = ? AND atomization_complete = 1`,
		StatusAtomized,
		time.Now().UTC().Format(time.RFC3339Nano),
		segmentID,
	)
	if err != nil {
		return fmt.Errorf("reset segment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s (or not atomized)", ErrNotFound, segmentID)
	}
	return nil
}

// ResetAll reverts every atomized segment to atomized for re-analysis.
func (s *Store) ResetAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments
         SET status = ?, analysis_complete = 0, entity_count = 0,
             error_message = NULL, updated_at = ?
         WHERE atomization_complete = 1`,
		StatusAtomized,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reset all segments: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of segments grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM segments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("segment stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const segmentColumns = "segment_id, start_ms, end_ms, duration_ms, start_time_str, end_time_str, atom_refs, status, atomization_complete, analysis_complete, entity_count, error_message, updated_at"

func writeSegment(ctx context.Context, tx *sql.Tx, seg Segment) error {
	refs, err := json.Marshal(seg.AtomRefs)
	if err != nil {
		return fmt.Errorf("encode atom refs: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE segments
         SET start_ms = ?, end_ms = ?, duration_ms = ?, start_time_str = ?, end_time_str = ?,
             atom_refs = ?, status = ?, atomization_complete = ?, analysis_complete = ?,
             entity_count = ?, error_message = ?, updated_at = ?
         WHERE segment_id = ?`,
		seg.StartMS, seg.EndMS, seg.DurationMS, seg.StartTimeStr, seg.EndTimeStr,
		string(refs), seg.Status, boolToInt(seg.AtomizationComplete), boolToInt(seg.AnalysisComplete),
		seg.EntityCount, nullableString(seg.ErrorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		seg.SegmentID,
	)
	if err != nil {
		return fmt.Errorf("update segment %s: %w", seg.SegmentID, err)
	}
	return nil
}

func scanSegment(scanner interface{ Scan(dest ...any) error }) (Segment, error) {
	var (
		seg          Segment
		refsRaw      string
		statusStr    string
		atomization  int
		analysis     int
		errorMessage sql.NullString
		updatedRaw   string
	)
	if err := scanner.Scan(
		&seg.SegmentID,
		&seg.StartMS,
		&seg.EndMS,
		&seg.DurationMS,
		&seg.StartTimeStr,
		&seg.EndTimeStr,
		&refsRaw,
		&statusStr,
		&atomization,
		&analysis,
		&seg.EntityCount,
		&errorMessage,
		&updatedRaw,
	); err != nil {
		return Segment{}, err
	}

	if err := json.Unmarshal([]byte(refsRaw), &seg.AtomRefs); err != nil {
		return Segment{}, fmt.Errorf("decode atom refs for %s: %w", seg.SegmentID, err)
	}
	seg.Status = Status(statusStr)
	seg.AtomizationComplete = atomization != 0
	seg.AnalysisComplete = analysis != 0
	seg.ErrorMessage = errorMessage.String
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		seg.UpdatedAt = updated
	}
	return seg, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
