package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "projects")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Notify.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLLMKey sets the chat-completion API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.APIKey = key
	}
}

// WithLLMBaseURL points the chat-completion client at a test server.
func WithLLMBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.BaseURL = url
	}
}

// WithSegmentWindowMinutes overrides the partition window.
func WithSegmentWindowMinutes(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analysis.SegmentWindowMinutes = minutes
	}
}
