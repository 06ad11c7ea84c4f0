package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediabot/internal/config"
)

const userAgent = "Mediabot-Go/0.1.0"

// Service defines the operator notification surface. Events go to an ntfy
// topic so the operator hears about daemon lifecycle and job failures
// without watching the chat.
type Service interface {
	NotifyDaemonStarted(ctx context.Context) error
	NotifyDaemonStopped(ctx context.Context) error
	NotifyJobFailed(ctx context.Context, jobID int64, summary, reason string) error
	NotifyQueueSummary(ctx context.Context, completed, failed int, window time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		daemonEvents:   cfg.Notifications.DaemonEvents,
		jobFailures:    cfg.Notifications.JobFailures,
		queueSummaries: cfg.Notifications.QueueSummaries,
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

	daemonEvents   bool
	jobFailures    bool
	queueSummaries bool
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context) error {
	if !n.daemonEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Mediabot - Started",
		message: "Bot daemon is up and polling for updates",
		tags:    []string{"mediabot", "daemon", "started"},
	})
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context) error {
	if !n.daemonEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Mediabot - Stopped",
		message: "Bot daemon shut down",
		tags:    []string{"mediabot", "daemon", "stopped"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID int64, summary, reason string) error {
	if !n.jobFailures {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	return n.send(ctx, payload{
		title:    "Mediabot - Job Failed",
		message:  fmt.Sprintf("Job #%d (%s) failed: %s", jobID, strings.TrimSpace(summary), reason),
		tags:     []string{"mediabot", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyQueueSummary(ctx context.Context, completed, failed int, window time.Duration) error {
	if !n.queueSummaries {
		return nil
	}
	window = window.Round(time.Second)
	if window < 0 {
		window = 0
	}
	var message string
	if failed == 0 {
		message = fmt.Sprintf("%d jobs completed in the last %s", completed, window)
	} else {
		message = fmt.Sprintf("%d jobs completed, %d failed in the last %s", completed, failed, window)
	}
	return n.send(ctx, payload{
		title:   "Mediabot - Queue Summary",
		message: message,
		tags:    []string{"mediabot", "queue", "summary"},
	})
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
	return n.send(ctx, payload{
		title:    "Mediabot - Error",
		message:  builder.String(),
		tags:     []string{"mediabot", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Mediabot - Test",
		message:  "Notification system test",
		tags:     []string{"mediabot", "test"},
		priority: "low",
	})
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
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context) error  { return nil }
func (noopService) NotifyDaemonStopped(context.Context) error  { return nil }
func (noopService) NotifyJobFailed(context.Context, int64, string, string) error {
	return nil
}
func (noopService) NotifyQueueSummary(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }

// NewNop returns a Service that discards every notification. Used by tests
// and by components that run before configuration is loaded.
func NewNop() Service { return noopService{} }
