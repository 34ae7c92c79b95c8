package ingest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"captionsaver/internal/ingest"
	"captionsaver/internal/observe"
	"captionsaver/internal/session"
	"captionsaver/internal/testsupport"
	"captionsaver/internal/transcript"
)

type memorySink struct {
	mu   sync.Mutex
	docs []transcript.Document
}

func (m *memorySink) Export(_ context.Context, doc transcript.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *memorySink) last() (transcript.Document, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.docs) == 0 {
		return transcript.Document{}, 0
	}
	return m.docs[len(m.docs)-1], len(m.docs)
}

func startServer(t *testing.T, origins ...string) (*ingest.Server, *session.Recorder, *memorySink, *httptest.Server) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.AllowedOrigins = origins
	sink := &memorySink{}
	rec, err := session.NewRecorder(session.Options{Sinks: []session.ExportSink{sink}, SkipEmpty: true})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	srv := ingest.NewServer(cfg, rec, nil)
	if srv == nil {
		t.Fatal("expected server")
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, rec, sink, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/fragments"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readAck(t *testing.T, conn *websocket.Conn) ingest.Ack {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ack ingest.Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		t.Fatalf("decode ack %s: %v", data, err)
	}
	return ack
}

func TestFragmentsTitleAndFinish(t *testing.T) {
	_, rec, sink, ts := startServer(t)
	conn := dial(t, ts, nil)

	send(t, conn, `{"sourceId":"n1","text":"hello ther"}`)
	send(t, conn, `{"type":"fragment","sourceId":"n1","text":"hello there"}`)
	send(t, conn, `{"sourceId":"n2","text":"Bob: yes"}`)
	send(t, conn, `{"type":"title","title":"Standup"}`)

	ack := readAck(t, conn)
	if ack.Type != "ack" || ack.Op != "title" || !ack.OK || ack.Lines != 2 {
		t.Fatalf("unexpected title ack %+v", ack)
	}
	sessionID := rec.ID()

	send(t, conn, `{"type":"finish"}`)
	ack = readAck(t, conn)
	if !ack.OK || ack.Op != "finish" || ack.SessionID != sessionID || ack.Lines != 2 {
		t.Fatalf("unexpected finish ack %+v", ack)
	}
	doc, n := sink.last()
	if n != 1 || doc.Title != "Standup" || len(doc.Lines) != 2 || !strings.HasSuffix(doc.Lines[0], "hello there") {
		t.Fatalf("unexpected exported doc %+v", doc)
	}
	if rec.ID() == sessionID {
		t.Fatal("expected a new session after finish")
	}

	send(t, conn, `{"type":"finish"}`)
	if ack := readAck(t, conn); !ack.OK || !ack.Skipped {
		t.Fatalf("expected skipped finish for empty session, got %+v", ack)
	}
}

func TestResetAndErrors(t *testing.T) {
	_, rec, sink, ts := startServer(t)
	conn := dial(t, ts, nil)

	send(t, conn, `{"text":"discard these words please"}`)
	send(t, conn, `{"type":"reset"}`)
	if ack := readAck(t, conn); !ack.OK || ack.Op != "reset" {
		t.Fatalf("unexpected reset ack %+v", ack)
	}
	if rec.Status().Lines != 0 {
		t.Fatal("reset should clear the session")
	}
	if _, n := sink.last(); n != 0 {
		t.Fatal("reset must not export")
	}

	send(t, conn, `not json`)
	if ack := readAck(t, conn); ack.Type != "error" || ack.Error == "" {
		t.Fatalf("expected decode error ack, got %+v", ack)
	}
	send(t, conn, `{"sourceId":"x"}`)
	if ack := readAck(t, conn); ack.Type != "error" || !strings.Contains(ack.Error, "text") {
		t.Fatalf("expected missing text error, got %+v", ack)
	}
	send(t, conn, `{"type":"dance"}`)
	if ack := readAck(t, conn); ack.Type != "error" || ack.Op != "dance" {
		t.Fatalf("expected unknown type error, got %+v", ack)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	if ack := readAck(t, conn); ack.Type != "error" {
		t.Fatalf("expected binary rejection, got %+v", ack)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, rec, _, ts := startServer(t)
	conn := dial(t, ts, nil)
	send(t, conn, `{"text":"counting this fragment"}`)
	send(t, conn, `{"type":"title","title":"Health"}`)
	readAck(t, conn)

	resp, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	var health ingest.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.SessionID != rec.ID() || health.Lines != 1 || health.Title != "Health" {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Connections != 1 || health.FragmentsReceived != 1 {
		t.Fatalf("unexpected counters %+v", health)
	}

	post, err := http.Post(ts.URL+"/v1/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST health: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", post.StatusCode)
	}
}

func TestOriginAllowlist(t *testing.T) {
	_, _, _, ts := startServer(t, "chrome-extension://abc")
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/fragments"

	if _, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}}); err == nil {
		t.Fatal("expected disallowed origin to be rejected")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	dial(t, ts, http.Header{"Origin": {"chrome-extension://abc"}})
}

func TestCaptureWritesReplayableFragments(t *testing.T) {
	srv, _, _, ts := startServer(t)
	var buf bytes.Buffer
	srv.SetCapture(observe.NewJSONLWriter(&buf))
	conn := dial(t, ts, nil)
	send(t, conn, `{"sourceId":"n1","text":"captured words here","observedAt":"2026-03-01T10:00:00Z"}`)
	send(t, conn, `{"type":"title","title":"sync"}`)
	readAck(t, conn)

	var got []transcript.Observation
	if err := observe.NewJSONLSource(&buf, "capture").Run(context.Background(), func(obs transcript.Observation) {
		got = append(got, obs)
	}); err != nil {
		t.Fatalf("replay capture: %v", err)
	}
	if len(got) != 1 || got[0].SourceID != "n1" || got[0].Text != "captured words here" {
		t.Fatalf("unexpected capture %+v", got)
	}
}

func TestNewServerDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIngest())
	if srv := ingest.NewServer(cfg, nil, nil); srv != nil {
		t.Fatal("expected nil server when ingest disabled")
	}
}

func TestStartAndStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec, err := session.NewRecorder(session.Options{})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	srv := ingest.NewServer(cfg, rec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	url := "ws://" + srv.Addr() + "/v1/fragments"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	send(t, conn, `{"type":"title","title":"before stop"}`)
	readAck(t, conn)

	srv.Stop()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection closed after Stop")
	}
}

type slowController struct {
	*session.Recorder
	delay   time.Duration
	started chan struct{}
	once    sync.Once
	pushed  atomic.Bool
}

func (c *slowController) Push(obs transcript.Observation) transcript.Result {
	c.once.Do(func() { close(c.started) })
	time.Sleep(c.delay)
	res := c.Recorder.Push(obs)
	c.pushed.Store(true)
	return res
}

func TestStopWaitsForInFlightFragment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec, err := session.NewRecorder(session.Options{})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	ctrl := &slowController{Recorder: rec, delay: 300 * time.Millisecond, started: make(chan struct{})}
	srv := ingest.NewServer(cfg, ctrl, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/v1/fragments", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	send(t, conn, `{"sourceId":"n1","text":"hello there after stop"}`)

	select {
	case <-ctrl.started:
	case <-time.After(5 * time.Second):
		t.Fatal("push never started")
	}
	srv.Stop()
	if !ctrl.pushed.Load() {
		t.Fatal("fragment pushed after Stop returned")
	}
	if st := rec.Status(); st.Lines != 1 {
		t.Fatalf("expected 1 line before Stop returned, got %d", st.Lines)
	}

	late, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/v1/fragments", nil)
	if err == nil {
		_ = late.Close()
		t.Fatal("expected dial to fail after Stop")
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
}

func TestSetCaptureNilStopsTee(t *testing.T) {
	srv, _, _, ts := startServer(t)
	var buf bytes.Buffer
	srv.SetCapture(observe.NewJSONLWriter(&buf))
	srv.SetCapture(nil)
	conn := dial(t, ts, nil)
	send(t, conn, `{"sourceId":"n1","text":"not captured here"}`)
	send(t, conn, `{"type":"title","title":"sync"}`)
	readAck(t, conn)
	if buf.Len() != 0 {
		t.Fatalf("expected empty capture, got %q", buf.String())
	}
}
