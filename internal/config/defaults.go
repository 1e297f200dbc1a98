package config

const (
	defaultDataDir              = "~/.local/share/loom/projects"
	defaultLogDir               = "~/.local/share/loom/logs"
	defaultAPIBind              = "127.0.0.1:7603"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "anthropic/claude-sonnet-4.5"
	defaultLLMTimeoutSeconds    = 120
	defaultLLMRetryAttempts     = 3
	defaultEmbedBaseURL         = "https://api.openai.com/v1"
	defaultEmbedModel           = "text-embedding-3-small"
	defaultSegmentWindowMinutes = 20
	defaultAtomizeBatchSize     = 50
	defaultAnnotationBatchSize  = 20
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNtfyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Embed: Embeddings{
			BaseURL: defaultEmbedBaseURL,
			Model:   defaultEmbedModel,
		},
		Analysis: Analysis{
			SegmentWindowMinutes: defaultSegmentWindowMinutes,
			AtomizeBatchSize:     defaultAtomizeBatchSize,
			AnnotationBatchSize:  defaultAnnotationBatchSize,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notify: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
	}
}
