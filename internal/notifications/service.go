package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/config"
)

const userAgent = "Loom-Go/0.1.0"

// Service defines the notification surface exposed to the analysis workflow.
type Service interface {
	NotifyIngestCompleted(ctx context.Context, projectID string, atomCount int) error
	NotifyAnalysisStarted(ctx context.Context, projectID string, pending int) error
	NotifyAnalysisCompleted(ctx context.Context, projectID string, analyzed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notify.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notify.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyIngestCompleted(ctx context.Context, projectID string, atomCount int) error {
	data := payload{
		title:   "Loom - Ingest Complete",
		message: fmt.Sprintf("Ingested %s: %d atoms ready for analysis", strings.TrimSpace(projectID), atomCount),
		tags:    []string{"loom", "ingest", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAnalysisStarted(ctx context.Context, projectID string, pending int) error {
	data := payload{
		title:   "Loom - Analysis Started",
		message: fmt.Sprintf("Started analyzing %s: %d segments pending", strings.TrimSpace(projectID), pending),
		tags:    []string{"loom", "analysis", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAnalysisCompleted(ctx context.Context, projectID string, analyzed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Loom - Analysis Complete"
		message = fmt.Sprintf("Analysis of %s complete: %d segments in %s", strings.TrimSpace(projectID), analyzed, durationText)
	} else {
		title = "Loom - Analysis Complete (with errors)"
		message = fmt.Sprintf("Analysis of %s complete: %d succeeded, %d failed in %s", strings.TrimSpace(projectID), analyzed, failed, durationText)
	}

	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"loom", "analysis", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Loom - Error",
		message:  builder.String(),
		tags:     []string{"loom", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Loom - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"loom", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyIngestCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifyAnalysisStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyAnalysisCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
