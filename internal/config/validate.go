package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if c.Analysis.SegmentWindowMinutes <= 0 {
		problems = append(problems, "analysis.segment_window_minutes must be positive")
	}
	if c.Analysis.AtomizeBatchSize <= 0 {
		problems = append(problems, "analysis.atomize_batch_size must be positive")
	}
	if c.Analysis.AnnotationBatchSize <= 0 {
		problems = append(problems, "analysis.annotation_batch_size must be positive")
	}
	if c.LLM.RetryAttempts <= 0 {
		problems = append(problems, "llm.retry_attempts must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		problems = append(problems, "workflow.error_retry_interval must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
