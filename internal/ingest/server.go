package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"captionsaver/internal/config"
	"captionsaver/internal/logging"
	"captionsaver/internal/observe"
	"captionsaver/internal/session"
	"captionsaver/internal/transcript"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 5 * time.Second
)

// Controller is the slice of the session recorder the server drives.
type Controller interface {
	Push(obs transcript.Observation) transcript.Result
	SetTitle(title string)
	Finish(ctx context.Context) (session.FinishResult, error)
	Reset()
	Status() session.Status
}

// Server hosts the fragment websocket and health endpoint.
type Server struct {
	bind     string
	origins  []string
	maxBytes int64
	ctrl     Controller
	logger   *slog.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
	started  time.Time

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closed   bool
	handlers sync.WaitGroup
	capture  atomic.Pointer[observe.JSONLWriter]

	connections atomic.Int64
	received    atomic.Uint64
}

// NewServer builds a server from the [ingest] section. It returns nil when no
// listen address is configured.
func NewServer(cfg *config.Config, ctrl Controller, logger *slog.Logger) *Server {
	if cfg == nil || ctrl == nil || strings.TrimSpace(cfg.Ingest.ListenAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:     cfg.Ingest.ListenAddr,
		origins:  append([]string(nil), cfg.Ingest.AllowedOrigins...),
		maxBytes: int64(cfg.Ingest.MaxMessageKiB) * 1024,
		ctrl:     ctrl,
		logger:   logger,
		started:  time.Now(),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// SetCapture tees every accepted fragment to w for later replay.
// Passing nil stops the tee.
func (s *Server) SetCapture(w *observe.JSONLWriter) {
	s.capture.Store(w)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/fragments", s.handleFragments)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("ingest listen: %w", err)
	}
	s.listener = listener
	s.started = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "ingest server error", "ingest_serve_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("ingest server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, closes open websockets and waits for their
// handlers to return, so no fragment arrives after it returns.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		delete(s.conns, conn)
	}
	s.mu.Unlock()

	s.handlers.Wait()
}

// enter registers a fragment handler. It fails once Stop has begun.
func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.connections.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.connections.Add(-1)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, s.logger, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	st := s.ctrl.Status()
	writeJSON(w, s.logger, http.StatusOK, Health{
		Status:            "ok",
		SessionID:         st.ID,
		Title:             st.Title,
		Lines:             st.Lines,
		Connections:       s.connections.Load(),
		FragmentsReceived: s.received.Load(),
		UptimeSeconds:     int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleFragments(w http.ResponseWriter, r *http.Request) {
	if !s.enter() {
		writeJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"error": "server shutting down"})
		return
	}
	defer s.handlers.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	remote := r.RemoteAddr
	logger := s.logger.With(logging.String(logging.FieldRemote, remote))
	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)
	logger.Info("caption client connected")

	if s.maxBytes > 0 {
		conn.SetReadLimit(s.maxBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnWithContext(logger, "caption client dropped", "ingest_disconnect",
					logging.Error(err),
					logging.String(logging.FieldImpact, "fragments stop until the client reconnects"),
				)
			} else {
				logger.Info("caption client disconnected")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			s.reply(conn, logger, Ack{Type: "error", Error: "expected a text message"})
			continue
		}
		if ack, ok := s.handleMessage(r.Context(), logger, data); ok {
			s.reply(conn, logger, ack)
		}
	}
}

// handleMessage applies one message and returns the reply, if any.
func (s *Server) handleMessage(ctx context.Context, logger *slog.Logger, data []byte) (Ack, bool) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return Ack{Type: "error", Error: err.Error()}, true
	}

	switch env.Type {
	case TypeFragment:
		frag := env.fragment()
		obs := frag.Observation()
		if obs.ObservedAt.IsZero() {
			obs.ObservedAt = time.Now()
		}
		s.received.Add(1)
		s.ctrl.Push(obs)
		if capture := s.capture.Load(); capture != nil {
			if err := capture.Write(obs); err != nil {
				logger.Debug("capture write failed", logging.Error(err))
			}
		}
		return Ack{}, false
	case TypeTitle:
		s.ctrl.SetTitle(env.Title)
		st := s.ctrl.Status()
		return Ack{Type: "ack", Op: TypeTitle, OK: true, SessionID: st.ID, Lines: st.Lines}, true
	case TypeFinish:
		res, err := s.ctrl.Finish(ctx)
		ack := Ack{Type: "ack", Op: TypeFinish, OK: err == nil, SessionID: res.Document.ID, Lines: len(res.Document.Lines), Skipped: res.Skipped}
		if err != nil {
			ack.Error = err.Error()
		}
		return ack, true
	case TypeReset:
		s.ctrl.Reset()
		st := s.ctrl.Status()
		return Ack{Type: "ack", Op: TypeReset, OK: true, SessionID: st.ID}, true
	default:
		return Ack{Type: "error", Op: env.Type, Error: fmt.Sprintf("unknown message type %q", env.Type)}, true
	}
}

func (s *Server) reply(conn *websocket.Conn, logger *slog.Logger, ack Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		logger.Error("encode ack", logging.Error(err))
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Debug("ack write failed", logging.Error(err))
	}
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}
