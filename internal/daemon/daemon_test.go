package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"captionsaver/internal/captions"
	"captionsaver/internal/config"
	"captionsaver/internal/daemon"
	"captionsaver/internal/logging"
	"captionsaver/internal/notifications"
	"captionsaver/internal/testsupport"
	"captionsaver/internal/transcript"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewComponentLoggers(logging.NewNop(), nil), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.IngestAddr == "" {
		t.Fatal("expected ingest address")
	}
	if status.Captions != daemon.CaptionsDisabled {
		t.Fatalf("expected captions disabled, got %s", status.Captions)
	}
	if strings.Join(status.Sinks, ",") != "file,history,ntfy" {
		t.Fatalf("unexpected sinks %v", status.Sinks)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newDaemon(t, cfg)
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStopFlushesCurrentMeeting(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	notifier := &recordingNotifier{}
	d := newDaemon(t, cfg, daemon.WithNotifier(notifier))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	d.SetTitle("Design review")
	id := d.Recorder().ID()
	d.Recorder().Push(transcript.Observation{SourceID: "a", Text: "let us begin with the agenda"})
	d.Stop()

	entries, err := os.ReadDir(cfg.Paths.ExportDir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "Design review-") {
		t.Fatalf("unexpected exports %v", entries)
	}

	store := testsupport.MustOpenStore(t, cfg)
	meeting, err := store.Get(context.Background(), id)
	if err != nil || meeting == nil {
		t.Fatalf("expected meeting %s in history: %v", id, err)
	}
	if meeting.InProgress() {
		t.Fatal("expected meeting marked ended after flush")
	}
	if !notifier.has(notifications.EventTranscriptSaved) {
		t.Fatal("expected saved notification")
	}
}

func TestAutosaveCheckpointsIntoHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest(), testsupport.WithRefreshInterval(20))
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	id := d.Recorder().ID()
	d.Recorder().Push(transcript.Observation{Text: "checkpoint this line please"})

	store := testsupport.MustOpenStore(t, cfg)
	waitFor(t, "checkpoint", func() bool {
		m, err := store.Get(context.Background(), id)
		return err == nil && m != nil && m.InProgress() && m.LineCount == 1
	})
}

func TestFinishFailurePublishesError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	blocker := filepath.Join(testsupport.BaseDir(cfg), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Paths.ExportDir = filepath.Join(blocker, "exports")

	notifier := &recordingNotifier{}
	d := newDaemon(t, cfg, daemon.WithNotifier(notifier))
	d.Recorder().Push(transcript.Observation{Text: "this export is going to fail"})

	if _, err := d.Finish(context.Background()); err == nil || !strings.Contains(err.Error(), "file:") {
		t.Fatalf("expected file sink error, got %v", err)
	}
	if !notifier.has(notifications.EventError) {
		t.Fatal("expected error notification")
	}
	if len(d.Lines()) != 1 {
		t.Fatal("expected meeting kept after failed finish")
	}
}

func TestCaptionsUnavailableAfterRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	cfg.Captions.RetryIntervalMS = 5
	cfg.Captions.MaxAttempts = 3

	notifier := &recordingNotifier{}
	enabler := captions.EnablerFunc(func(context.Context) error { return errors.New("button not found") })
	d := newDaemon(t, cfg, daemon.WithNotifier(notifier), daemon.WithEnabler(enabler))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	waitFor(t, "captions unavailable", func() bool {
		return d.Status().Captions == daemon.CaptionsUnavailable
	})
	if !notifier.has(notifications.EventCaptionsUnavailable) {
		t.Fatal("expected captions notification")
	}
}

func TestCaptionsEnabledByCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest(), testsupport.WithStubbedCommand("enable-captions", "exit 0"))
	cfg.Captions.RetryIntervalMS = 5
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	waitFor(t, "captions enabled", func() bool {
		return d.Status().Captions == daemon.CaptionsEnabled
	})
}

func TestIngestCaptureFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	capture := filepath.Join(cfg.Paths.DataDir, "captures", "session.jsonl")
	d := newDaemon(t, cfg, daemon.WithCapture(capture))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+d.IngestAddr()+"/v1/fragments", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"sourceId": "n1", "text": "captured through the socket"}); err != nil {
		t.Fatalf("write fragment: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "title", "title": "Captured"}); err != nil {
		t.Fatalf("write title: %v", err)
	}
	var ack map[string]any
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	_ = conn.Close()

	if got := d.Lines(); len(got) != 1 || !strings.HasSuffix(got[0], "captured through the socket") {
		t.Fatalf("unexpected lines %q", got)
	}
	d.Stop()

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if !strings.Contains(string(data), `"captured through the socket"`) {
		t.Fatalf("capture missing fragment: %s", data)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	d := newDaemon(t, cfg)
	sent, msg, err := d.TestNotification(context.Background())
	if err != nil || sent || msg != "ntfy topic not configured" {
		t.Fatalf("unexpected result %v %q %v", sent, msg, err)
	}
}
