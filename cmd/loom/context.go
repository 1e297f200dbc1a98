package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"loom/internal/api"
	"loom/internal/atoms"
	"loom/internal/config"
	"loom/internal/knowledge"
	"loom/internal/logging"
	"loom/internal/segments"
	"loom/internal/services/llm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger builds a console logger honoring the configured level and format.
func (c *commandContext) logger() *slog.Logger {
	cfg := c.configValue()
	if cfg == nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// projectHandles bundles the open stores for one project directory.
type projectHandles struct {
	ID    string
	Dir   string
	Atoms *atoms.Store
	Store *segments.Store
}

func (p *projectHandles) Close() {
	if p.Store != nil {
		p.Store.Close()
	}
}

func (p *projectHandles) service() *api.ProjectService {
	return api.NewProjectService(p.Atoms, p.Store, p.Dir, knowledge.DefaultNormalizer())
}

// openProject opens the stores for an existing project.
func (c *commandContext) openProject(projectID string) (*projectHandles, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dir := cfg.ProjectDir(projectID)
	atomStore := atoms.NewStore(dir)
	if !atomStore.Exists() {
		return nil, fmt.Errorf("project %s has no atoms; run loom ingest first", projectID)
	}
	segStore, err := segments.Open(dir)
	if err != nil {
		return nil, err
	}
	return &projectHandles{ID: projectID, Dir: dir, Atoms: atomStore, Store: segStore}, nil
}

// completer builds the chat-completion client, failing when no key is set.
func (c *commandContext) completer() (*llm.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.LLM.APIKey)
	if key == "" {
		return nil, fmt.Errorf("llm.api_key is not configured; set it in config.toml")
	}
	return llm.NewClient(llm.Config{
		APIKey:         key,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.LLM.RetryAttempts,
	}), nil
}
