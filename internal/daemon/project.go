package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loom/internal/analysis"
	"loom/internal/api"
	"loom/internal/atoms"
	"loom/internal/config"
	"loom/internal/knowledge"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/search"
	"loom/internal/segments"
	"loom/internal/services/embedding"
	"loom/internal/services/llm"
	"loom/internal/workflow"
)

// Project bundles the open stores and the analysis manager for one project
// directory.
type Project struct {
	ID      string
	Dir     string
	Atoms   *atoms.Store
	Store   *segments.Store
	Manager *workflow.Manager
	Service *api.ProjectService

	embedClient *embedding.Client
	notify      notifications.Service
	logger      *slog.Logger
}

func openProject(projectID, dir string, cfg *config.Config, completer *llm.Client, embedClient *embedding.Client, notify notifications.Service, logger *slog.Logger) (*Project, error) {
	segStore, err := segments.Open(dir)
	if err != nil {
		return nil, err
	}

	projectLogger := logger.With(logging.String(logging.FieldProject, projectID))
	atomStore := atoms.NewStore(dir)
	norm := knowledge.DefaultNormalizer()

	var analyzer workflow.SegmentAnalyzer
	if completer != nil {
		analyzer = analysis.NewAnalyzer(completer, norm, projectLogger,
			analysis.WithAnnotationBatchSize(cfg.Analysis.AnnotationBatchSize))
	} else {
		analyzer = unconfiguredAnalyzer{}
	}

	window := time.Duration(cfg.Analysis.SegmentWindowMinutes) * time.Minute
	manager := workflow.NewManager(atomStore, segStore, analyzer, norm, dir, window, projectLogger)

	return &Project{
		ID:          projectID,
		Dir:         dir,
		Atoms:       atomStore,
		Store:       segStore,
		Manager:     manager,
		Service:     api.NewProjectService(atomStore, segStore, dir, norm),
		embedClient: embedClient,
		notify:      notify,
		logger:      projectLogger,
	}, nil
}

// StartAnalysis launches the background run and notifies on completion.
func (p *Project) StartAnalysis(ctx context.Context) error {
	progress, err := p.Manager.Progress(ctx)
	if err != nil {
		return err
	}
	if err := p.Manager.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	_ = p.notify.NotifyAnalysisStarted(ctx, p.ID, progress.Pending)

	started := time.Now()
	go func() {
		p.Manager.Wait()
		done, err := p.Manager.Progress(context.Background())
		if err != nil {
			p.logger.Warn("progress snapshot failed", logging.Error(err))
			return
		}
		if runErr := p.Manager.LastError(); runErr != nil {
			_ = p.notify.NotifyError(context.Background(), runErr, "analysis")
			return
		}
		_ = p.notify.NotifyAnalysisCompleted(context.Background(), p.ID, done.Analyzed, done.Failed, time.Since(started))
	}()
	return nil
}

// Search ranks atoms against the query, preferring the vector store when an
// embedding client is configured and the project has indexed vectors.
func (p *Project) Search(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	if p.embedClient != nil {
		results, err := p.vectorSearch(ctx, query, limit)
		if err == nil && results != nil {
			return results, nil
		}
		if err != nil {
			p.logger.Warn("vector search failed, falling back to lexical", logging.Error(err))
		}
	}
	return p.Service.SearchLexical(ctx, query, limit)
}

func (p *Project) vectorSearch(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	store, err := search.Open(p.Dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// Nothing indexed yet; let the caller fall back.
		return nil, nil
	}

	vector, err := p.embedClient.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := store.Query(ctx, vector, limit)
	if err != nil {
		return nil, err
	}
	return api.FromMatches(matches, "vector"), nil
}

// Close releases the project's store handles.
func (p *Project) Close() error {
	return p.Store.Close()
}

// unconfiguredAnalyzer surfaces a configuration error instead of analyzing.
type unconfiguredAnalyzer struct{}

func (unconfiguredAnalyzer) AnalyzeSegment(context.Context, segments.Segment, []atoms.Atom) (*analysis.Result, error) {
	return nil, errors.New("llm.api_key is not configured")
}
