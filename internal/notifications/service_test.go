package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"captionsaver/internal/config"
	"captionsaver/internal/notifications"
	"captionsaver/internal/transcript"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTranscriptSaved, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop for nil config, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte("topic not allowed"))
		}
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "transcript saved",
			event:         notifications.EventTranscriptSaved,
			payload:       notifications.Payload{"title": "Weekly sync", "lines": 42, "path": "/tmp/Weekly sync-2026-04-07.txt"},
			expectTitle:   "Captionsaver - Transcript Saved",
			expectMessage: "📝 Saved: Weekly sync (42 lines)\nFile: /tmp/Weekly sync-2026-04-07.txt",
			expectTags:    "captionsaver,transcript,saved",
		},
		{
			name:          "untitled transcript",
			event:         notifications.EventTranscriptSaved,
			payload:       notifications.Payload{"lines": 3},
			expectTitle:   "Captionsaver - Transcript Saved",
			expectMessage: "📝 Saved: Untitled Meeting (3 lines)",
			expectTags:    "captionsaver,transcript,saved",
		},
		{
			name:           "captions unavailable",
			event:          notifications.EventCaptionsUnavailable,
			payload:        notifications.Payload{"attempts": 10},
			expectTitle:    "Captionsaver - Captions Off",
			expectMessage:  "⚠️ Could not enable captions after 10 attempts",
			expectTags:     "captionsaver,captions,warning",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "export", "error": errors.New("disk full")},
			expectTitle:    "Captionsaver - Error",
			expectMessage:  "❌ Error with export: disk full",
			expectTags:     "captionsaver,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Captionsaver - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "captionsaver,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventCheckpoint, notifications.EventSessionReset, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic not allowed") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

func TestSinkPublishesSavedTranscript(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	sink := notifications.NewSink(notifications.NewService(&cfg))
	if sink.Name() != "ntfy" {
		t.Fatalf("unexpected sink name %q", sink.Name())
	}
	doc := transcript.Document{ID: "m1", Title: "Retro", Lines: []string{"[00:00] a", "[00:01] b"}}
	if err := sink.Export(context.Background(), doc); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got.calls != 1 || got.body != "📝 Saved: Retro (2 lines)" {
		t.Fatalf("unexpected publish %+v", got)
	}
}
