package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// LLM contains connection settings for the chat-completion API used by
// atomization, deep analysis, and atom annotation.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Embeddings contains connection settings for the embedding API used by the
// peripheral search features.
type Embeddings struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Analysis contains tuning for segment partitioning and the analysis loop.
type Analysis struct {
	SegmentWindowMinutes int `toml:"segment_window_minutes"`
	AtomizeBatchSize     int `toml:"atomize_batch_size"`
	AnnotationBatchSize  int `toml:"annotation_batch_size"`
}

// Workflow contains configuration for driver-loop timing.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures push notifications for long-running analyses.
// An empty topic disables notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config is the top-level configuration document.
type Config struct {
	Paths    Paths         `toml:"paths"`
	LLM      LLM           `toml:"llm"`
	Embed    Embeddings    `toml:"embeddings"`
	Analysis Analysis      `toml:"analysis"`
	Workflow Workflow      `toml:"workflow"`
	Logging  Logging       `toml:"logging"`
	Notify   Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "loom", "config.toml"), nil
}

// Load reads configuration from path (or the default location when path is
// empty). It returns the parsed config, the path used, and whether a config
// file existed. A missing file yields defaults, not an error.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
		resolved = defaultPath
	}
	resolved = ExpandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := cfg.normalize(); err != nil {
				return nil, resolved, false, err
			}
			return &cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, resolved, true, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading tilde against the user home directory.
func ExpandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ProjectDir returns the data directory of a single project.
func (c *Config) ProjectDir(projectID string) string {
	return filepath.Join(c.Paths.DataDir, projectID)
}

func (c *Config) normalize() error {
	c.Paths.DataDir = ExpandPath(c.Paths.DataDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Embed.APIKey = strings.TrimSpace(c.Embed.APIKey)
	c.Embed.BaseURL = strings.TrimSpace(c.Embed.BaseURL)
	c.Embed.Model = strings.TrimSpace(c.Embed.Model)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("LOOM_LLM_API_KEY"))
	}
	if c.Embed.APIKey == "" {
		c.Embed.APIKey = strings.TrimSpace(os.Getenv("LOOM_EMBED_API_KEY"))
	}
	return nil
}
