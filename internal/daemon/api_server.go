package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/segments"
	"loom/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/projects", srv.handleProjects)
	mux.HandleFunc("/api/projects/", srv.handleProject)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, for tests and status output.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DataDir:      status.DataDir,
		LockFilePath: status.LockFilePath,
		Projects:     status.Projects,
	})
}

func (s *apiServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	projects, err := s.daemon.ListProjects()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectListResponse{Projects: projects})
}

// handleProject routes /api/projects/{id}/... to per-project handlers.
func (s *apiServer) handleProject(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	}
	project, err := s.daemon.Project(parts[0])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.routeProject(w, r, project, parts[1:])
}

func (s *apiServer) routeProject(w http.ResponseWriter, r *http.Request, project *Project, parts []string) {
	if len(parts) == 0 {
		s.writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	switch parts[0] {
	case "progress":
		s.handleProgress(w, r, project)
	case "analysis":
		s.handleAnalysis(w, r, project, parts[1:])
	case "segments":
		s.handleSegments(w, r, project, parts[1:])
	case "atoms":
		s.handleAtoms(w, r, project)
	case "entities":
		s.handleEntities(w, r, project)
	case "topics":
		s.handleTopics(w, r, project)
	case "graph":
		s.handleGraph(w, r, project)
	case "annotations":
		s.handleAnnotations(w, r, project)
	case "search":
		s.handleSearch(w, r, project)
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	progress, err := project.Manager.Progress(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProgress(progress))
}

func (s *apiServer) handleAnalysis(w http.ResponseWriter, r *http.Request, project *Project, parts []string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if len(parts) != 1 {
		s.writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	switch parts[0] {
	case "start":
		if err := project.StartAnalysis(r.Context()); err != nil {
			if errors.Is(err, workflow.ErrAlreadyRunning) {
				s.writeError(w, http.StatusConflict, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"state": "started"})
	case "stop":
		project.Manager.Stop()
		s.writeJSON(w, http.StatusOK, map[string]string{"state": "stopped"})
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *apiServer) handleSegments(w http.ResponseWriter, r *http.Request, project *Project, parts []string) {
	switch len(parts) {
	case 0:
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		segs, err := project.Service.Segments(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.SegmentListResponse{Segments: segs})
	case 1:
		if parts[0] == "reset" {
			s.handleResetAll(w, r, project)
			return
		}
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		seg, err := project.Service.Segment(r.Context(), parts[0])
		if err != nil {
			s.writeSegmentError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SegmentResponse{Segment: *seg})
	case 2:
		s.handleSegmentAction(w, r, project, parts[0], parts[1])
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *apiServer) handleSegmentAction(w http.ResponseWriter, r *http.Request, project *Project, segmentID, action string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "analyze":
		if err := project.Manager.AnalyzeOne(r.Context(), segmentID); err != nil {
			if errors.Is(err, workflow.ErrAlreadyRunning) {
				s.writeError(w, http.StatusConflict, err.Error())
				return
			}
			s.writeSegmentError(w, err)
			return
		}
		seg, err := project.Service.Segment(r.Context(), segmentID)
		if err != nil {
			s.writeSegmentError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SegmentResponse{Segment: *seg})
	case "reset":
		if err := project.Store.Reset(r.Context(), segmentID); err != nil {
			s.writeSegmentError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"state": "reset"})
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *apiServer) handleResetAll(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := project.Store.ResetAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"reset": count})
}

func (s *apiServer) handleAtoms(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list, err := project.Service.Atoms(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AtomListResponse{Atoms: list})
}

func (s *apiServer) handleEntities(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entityType := strings.TrimSpace(r.URL.Query().Get("type"))
	entities, err := project.Service.Entities(r.Context(), entityType)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntityListResponse{Entities: entities})
}

func (s *apiServer) handleTopics(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	topics, err := project.Service.Topics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, topics)
}

func (s *apiServer) handleGraph(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	graph, err := project.Service.Graph(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

func (s *apiServer) handleAnnotations(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	annotations, err := project.Service.Annotations(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, annotations)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request, project *Project) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := project.Search(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Results: results})
}

func (s *apiServer) writeSegmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segments.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "segment not found")
	case errors.Is(err, segments.ErrIllegalTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
