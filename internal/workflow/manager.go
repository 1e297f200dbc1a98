package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/analysis"
	"loom/internal/atoms"
	"loom/internal/knowledge"
	"loom/internal/logging"
	"loom/internal/segments"
)

// ErrAlreadyRunning is returned by Start and AnalyzeOne while a run is in
// flight. Runs never queue: the aggregator is a single-writer design.
var ErrAlreadyRunning = errors.New("analysis already running")

// RunState describes the lifecycle of the most recent analysis run.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// SegmentAnalyzer is the analysis boundary the driver loop depends on.
type SegmentAnalyzer interface {
	AnalyzeSegment(ctx context.Context, seg segments.Segment, resolved []atoms.Atom) (*analysis.Result, error)
}

// Manager drives incremental analysis: one background worker, one analyzing
// segment at a time, merge persisted before the status flip.
type Manager struct {
	atomStore *atoms.Store
	segStore  *segments.Store
	analyzer  SegmentAnalyzer
	norm      *knowledge.Normalizer
	indexDir  string
	window    time.Duration
	logger    *slog.Logger

	mu             sync.Mutex
	running        bool
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	state          RunState
	currentSegment string
	lastErr        error
}

// NewManager constructs a Manager. indexDir is where the aggregated index
// documents live, normally the project data directory.
func NewManager(atomStore *atoms.Store, segStore *segments.Store, analyzer SegmentAnalyzer, norm *knowledge.Normalizer, indexDir string, window time.Duration, logger *slog.Logger) *Manager {
	if norm == nil {
		norm = knowledge.DefaultNormalizer()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		atomStore: atomStore,
		segStore:  segStore,
		analyzer:  analyzer,
		norm:      norm,
		indexDir:  indexDir,
		window:    window,
		logger:    logger,
		state:     RunIdle,
	}
}

// Start launches the background run. It fails fast with ErrAlreadyRunning
// while a run is in flight.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.state = RunRunning
	m.lastErr = nil
	m.wg.Add(1)
	m.mu.Unlock()

	runID := uuid.NewString()
	go m.run(runCtx, runID)
	return nil
}

// Stop cancels the background run and waits for the worker to exit. The
// segment in flight completes its merge before the worker honors the
// cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wait blocks until the current run finishes.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Running reports whether a run is in flight.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// State returns the current run state and the segment in flight, if any.
func (m *Manager) State() (RunState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.currentSegment
}

// LastError returns the error that ended the most recent run, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setCurrentSegment(segmentID string) {
	m.mu.Lock()
	m.currentSegment = segmentID
	m.mu.Unlock()
}

func (m *Manager) finish(state RunState, err error) {
	m.mu.Lock()
	m.running = false
	m.cancel = nil
	m.state = state
	m.currentSegment = ""
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, runID string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldCorrelationID, runID))
	logger.Info("incremental analysis started")

	state, err := m.processSegments(ctx, logger)
	if err != nil {
		logger.Error("incremental analysis aborted", logging.Error(err))
	} else {
		logger.Info("incremental analysis finished", logging.String("run_state", string(state)))
	}
	m.finish(state, err)
}

// processSegments is the driver loop. Per-segment analysis failures mark
// the segment failed and continue; identity violations and storage errors
// abort the whole run.
func (m *Manager) processSegments(ctx context.Context, logger *slog.Logger) (RunState, error) {
	atomList, err := m.atomStore.Load()
	if err != nil {
		return RunFailed, fmt.Errorf("load atoms: %w", err)
	}
	if len(atomList) == 0 {
		return RunFailed, errors.New("no atoms to analyze; run ingest first")
	}
	atomTexts := atoms.Texts(atomList)

	index, err := knowledge.LoadOrInit(m.indexDir, m.norm)
	if err != nil {
		return RunFailed, fmt.Errorf("load aggregated index: %w", err)
	}

	if _, rebuilt, err := segments.LoadOrRebuild(ctx, m.segStore, atomList, m.window); err != nil {
		return RunFailed, fmt.Errorf("load segment table: %w", err)
	} else if rebuilt {
		logger.Info("segment table rebuilt from atom store")
	}

	for {
		// Cancellation is honored only here, at the segment boundary.
		if ctx.Err() != nil {
			return RunCancelled, nil
		}

		seg, err := m.segStore.NextPending(ctx)
		if err != nil {
			return RunFailed, fmt.Errorf("next pending segment: %w", err)
		}
		if seg == nil {
			return RunCompleted, nil
		}

		if !seg.AtomizationComplete {
			logger.Warn("next segment not atomized, stopping",
				logging.String(logging.FieldSegment, seg.SegmentID))
			if err := m.segStore.UpdateStatus(ctx, seg.SegmentID, segments.StatusPending,
				segments.WithErrorMessage("atomization not complete")); err != nil {
				return RunFailed, fmt.Errorf("record atomization gap: %w", err)
			}
			return RunCompleted, nil
		}

		m.setCurrentSegment(seg.SegmentID)
		if err := m.analyzeSegment(ctx, logger, *seg, atomList, atomTexts, index); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return RunCancelled, nil
			}
			var abort *abortError
			if errors.As(err, &abort) {
				return RunFailed, abort.err
			}
			// Per-segment failure: record it and keep going.
			logger.Error("segment analysis failed",
				logging.String(logging.FieldSegment, seg.SegmentID),
				logging.Error(err))
			if updateErr := m.segStore.UpdateStatus(ctx, seg.SegmentID, segments.StatusFailed,
				segments.WithErrorMessage(err.Error())); updateErr != nil {
				return RunFailed, fmt.Errorf("mark segment failed: %w", updateErr)
			}
		}
		m.setCurrentSegment("")
	}
}

// abortError wraps storage-level failures that must end the run instead of
// failing a single segment.
type abortError struct{ err error }

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// analyzeSegment runs one segment end to end: resolve, analyze, merge,
// persist, and only then flip the status. The ordering is the crash
// recovery contract: an interrupted run re-selects the segment, and a
// second merge of the same fragment is a no-op.
func (m *Manager) analyzeSegment(ctx context.Context, logger *slog.Logger, seg segments.Segment, atomList []atoms.Atom, atomTexts map[string]string, index *knowledge.Index) error {
	if err := m.segStore.UpdateStatus(ctx, seg.SegmentID, segments.StatusAnalyzing); err != nil {
		return &abortError{fmt.Errorf("mark segment analyzing: %w", err)}
	}

	resolved, invalid := segments.Resolve(seg, atomList)
	for _, ref := range invalid {
		logger.Warn("skipping out-of-range atom reference",
			logging.String(logging.FieldSegment, seg.SegmentID),
			logging.Int("ref", ref))
	}
	if len(resolved) == 0 {
		return errors.New("no atoms in segment")
	}

	logger.Info("analyzing segment",
		logging.String(logging.FieldSegment, seg.SegmentID),
		logging.Int("atoms", len(resolved)))

	result, err := m.analyzer.AnalyzeSegment(ctx, seg, resolved)
	if err != nil {
		return err
	}
	if result.Fallback {
		logger.Warn("segment analysis degraded to default structure",
			logging.String(logging.FieldSegment, seg.SegmentID))
	}

	entityCount, err := index.Merge(result.Fragment, atomTexts)
	if err != nil {
		return fmt.Errorf("merge fragment: %w", err)
	}
	// Persist happens-before the status flip: a crash between the two
	// leaves the segment analyzing and the loop re-selects it.
	if err := index.Persist(); err != nil {
		return &abortError{fmt.Errorf("persist aggregated index: %w", err)}
	}

	if err := m.segStore.UpdateStatus(ctx, seg.SegmentID, segments.StatusAnalyzed,
		segments.WithAnalysisComplete(true),
		segments.WithEntityCount(entityCount)); err != nil {
		return &abortError{fmt.Errorf("mark segment analyzed: %w", err)}
	}

	logger.Info("segment analyzed",
		logging.String(logging.FieldSegment, seg.SegmentID),
		logging.Int("entities", entityCount),
		logging.Bool("fallback", result.Fallback))
	return nil
}

// AnalyzeOne analyzes a single segment synchronously. A segment that was
// never atomized gets "atomization not complete" recorded and the call
// returns without analyzing.
func (m *Manager) AnalyzeOne(ctx context.Context, segmentID string) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.state = RunRunning
	m.currentSegment = segmentID
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()
	defer cancel()

	err := m.analyzeOne(runCtx, segmentID)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.finish(RunCancelled, nil)
		err = nil
	case err != nil:
		m.finish(RunFailed, err)
	case runCtx.Err() != nil:
		m.finish(RunCancelled, nil)
	default:
		m.finish(RunCompleted, nil)
	}
	return err
}

func (m *Manager) analyzeOne(ctx context.Context, segmentID string) error {
	atomList, err := m.atomStore.Load()
	if err != nil {
		return fmt.Errorf("load atoms: %w", err)
	}
	atomTexts := atoms.Texts(atomList)

	seg, err := m.segStore.GetByID(ctx, segmentID)
	if err != nil {
		return err
	}
	if !seg.AtomizationComplete {
		if updateErr := m.segStore.UpdateStatus(ctx, segmentID, segments.StatusPending,
			segments.WithErrorMessage("atomization not complete")); updateErr != nil {
			return fmt.Errorf("record atomization gap: %w", updateErr)
		}
		return nil
	}

	index, err := knowledge.LoadOrInit(m.indexDir, m.norm)
	if err != nil {
		return fmt.Errorf("load aggregated index: %w", err)
	}

	if err := m.analyzeSegment(ctx, m.logger, *seg, atomList, atomTexts, index); err != nil {
		var abort *abortError
		if errors.As(err, &abort) {
			return abort.err
		}
		if updateErr := m.segStore.UpdateStatus(ctx, segmentID, segments.StatusFailed,
			segments.WithErrorMessage(err.Error())); updateErr != nil {
			return fmt.Errorf("mark segment failed: %w", updateErr)
		}
		return err
	}
	return nil
}
