package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hikfetch/internal/config"
	"hikfetch/internal/jobs"
	"hikfetch/internal/services"
)

const (
	userAgent      = "HikFetch/0.1.0"
	defaultTimeout = 10 * time.Second
)

// Service publishes job outcomes.
type Service interface {
	JobFinished(ctx context.Context, snap jobs.Snapshot) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// message is one ntfy publish: the body plus the headers ntfy reads.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func (m message) request(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(m.body))
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        m.title,
		"Tags":         strings.Join(m.tags, ","),
		"Priority":     m.priority,
	}
	for name, value := range headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Enabled() bool { return true }

// JobFinished sends one message for completed or failed jobs. Other states
// are ignored.
func (n *ntfyService) JobFinished(ctx context.Context, snap jobs.Snapshot) error {
	code := strings.TrimSpace(snap.DisplayCode)
	if code == "" {
		code = snap.ID
	}
	window := fmt.Sprintf("%s to %s", snap.Params.Start, snap.Params.End)

	switch snap.State {
	case jobs.StateCompleted:
		files := 0
		if snap.Result != nil {
			files = snap.Result.Files
		}
		return n.send(ctx, message{
			title: "HikFetch - Job Complete",
			body: fmt.Sprintf("✅ Job %s saved %d file(s) from channel %d (%s)\n%s",
				code, files, snap.Params.Channel, snap.Params.Media, window),
			tags: []string{"hikfetch", "job", "completed"},
		})
	case jobs.StateFailed:
		reason := strings.TrimSpace(snap.Error)
		if reason == "" {
			reason = "unknown"
		}
		return n.send(ctx, message{
			title:    "HikFetch - Job Failed",
			body:     fmt.Sprintf("❌ Job %s failed: %s\n%s", code, reason, window),
			tags:     []string{"hikfetch", "job", "failed"},
			priority: "high",
		})
	default:
		return nil
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "HikFetch - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"hikfetch", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := msg.request(ctx, n.endpoint)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "ntfy", "build request", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "ntfy", "publish", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode < 300 {
		return nil
	}
	marker := services.ErrTransient
	if resp.StatusCode < 500 {
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "notifications", "ntfy",
		fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
}

type noopService struct{}

func (noopService) JobFinished(context.Context, jobs.Snapshot) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
func (noopService) Enabled() bool                                    { return false }
