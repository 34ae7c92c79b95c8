package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"captionsaver/internal/config"
	"captionsaver/internal/transcript"
)

const userAgent = "captionsaver/0.1"

// Event names a notification type.
type Event string

const (
	EventTranscriptSaved     Event = "transcript_saved"
	EventCaptionsUnavailable Event = "captions_unavailable"
	EventError               Event = "error"
	EventTest                Event = "test"

	// Checkpoints fire every autosave interval and are never published.
	EventCheckpoint   Event = "checkpoint"
	EventSessionReset Event = "session_reset"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotificationTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTranscriptSaved:
		title := payloadString(payload, "title")
		if title == "" {
			title = "Untitled Meeting"
		}
		body := fmt.Sprintf("📝 Saved: %s (%d lines)", title, payloadInt(payload, "lines"))
		if path := payloadString(payload, "path"); path != "" {
			body += "\nFile: " + path
		}
		return message{
			title: "Captionsaver - Transcript Saved",
			body:  body,
			tags:  []string{"captionsaver", "transcript", "saved"},
		}, true
	case EventCaptionsUnavailable:
		return message{
			title:    "Captionsaver - Captions Off",
			body:     fmt.Sprintf("⚠️ Could not enable captions after %d attempts", payloadInt(payload, "attempts")),
			tags:     []string{"captionsaver", "captions", "warning"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payloadString(payload, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Captionsaver - Error",
			body:     b.String(),
			tags:     []string{"captionsaver", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Captionsaver - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"captionsaver", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Sink announces finished transcripts.
type Sink struct {
	svc Service
}

// NewSink wraps svc as an export sink.
func NewSink(svc Service) *Sink {
	return &Sink{svc: svc}
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "ntfy" }

// Export publishes EventTranscriptSaved for doc.
func (s *Sink) Export(ctx context.Context, doc transcript.Document) error {
	if s == nil || s.svc == nil {
		return nil
	}
	return s.svc.Publish(ctx, EventTranscriptSaved, Payload{
		"id":    doc.ID,
		"title": doc.Title,
		"lines": len(doc.Lines),
	})
}
