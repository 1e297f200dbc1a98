package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/services/embedding"
	"loom/internal/services/llm"
)

// Daemon coordinates the per-project analysis services and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	notify notifications.Service

	completer   *llm.Client
	embedClient *embedding.Client

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	projects map[string]*Project

	running atomic.Bool
	api     *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DataDir      string
	LockFilePath string
	Projects     []string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		notify:   notifications.NewService(cfg),
		lockPath: filepath.Join(cfg.Paths.LogDir, "loomd.lock"),
		projects: make(map[string]*Project),
	}
	d.lock = flock.New(d.lockPath)

	if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
		d.completer = llm.NewClient(llm.Config{
			APIKey:         key,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			RetryAttempts:  cfg.LLM.RetryAttempts,
		})
	}
	if cfg.Embed.Enabled {
		client, err := embedding.NewClient(embedding.Config{
			APIKey:  cfg.Embed.APIKey,
			BaseURL: cfg.Embed.BaseURL,
			Model:   cfg.Embed.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		d.embedClient = client
	}
	return d, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another loomd instance holds %s", d.lockPath)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.api = api
	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("data_dir", d.cfg.Paths.DataDir),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API, stops every project's analysis run, closes
// stores, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()

	d.mu.Lock()
	projects := make([]*Project, 0, len(d.projects))
	for _, p := range d.projects {
		projects = append(projects, p)
	}
	d.projects = make(map[string]*Project)
	d.mu.Unlock()

	for _, p := range projects {
		p.Manager.Stop()
		if err := p.Close(); err != nil {
			d.logger.Warn("project close failed",
				logging.String(logging.FieldProject, p.ID),
				logging.Error(err))
		}
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock release failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// APIAddr returns the bound API listener address, empty when disabled.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Status reports runtime state.
func (d *Daemon) Status() Status {
	projects, err := d.ListProjects()
	if err != nil {
		projects = nil
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DataDir:      d.cfg.Paths.DataDir,
		LockFilePath: d.lockPath,
		Projects:     projects,
	}
}

// ListProjects enumerates project directories under the data dir.
func (d *Daemon) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(d.cfg.Paths.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// Project returns (lazily opening) the service bundle for projectID.
func (d *Daemon) Project(projectID string) (*Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" || strings.ContainsAny(projectID, "/\\") {
		return nil, fmt.Errorf("invalid project id %q", projectID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.projects[projectID]; ok {
		return p, nil
	}

	dir := d.cfg.ProjectDir(projectID)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	p, err := openProject(projectID, dir, d.cfg, d.completer, d.embedClient, d.notify, d.logger)
	if err != nil {
		return nil, err
	}
	d.projects[projectID] = p
	return p, nil
}
