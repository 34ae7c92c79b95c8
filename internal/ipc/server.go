package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"

	"captionsaver/internal/daemon"
	"captionsaver/internal/logging"
)

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "Captionsaver"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	service *service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		service:   srv,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// OnShutdown installs the function the Stop RPC runs. Without one the daemon
// rejects remote stop requests.
func (s *Server) OnShutdown(fn func()) {
	s.service.mu.Lock()
	defer s.service.mu.Unlock()
	s.service.shutdown = fn
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse status checks"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	shutdown func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status()
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Finish(_ FinishRequest, resp *FinishResponse) error {
	res, err := s.daemon.Finish(s.ctx)
	if err != nil {
		return err
	}
	*resp = FinishResponse{
		SessionID: res.Document.ID,
		Title:     res.Document.Title,
		StartedAt: res.Document.StartedAt,
		Lines:     len(res.Document.Lines),
		Skipped:   res.Skipped,
	}
	return nil
}

func (s *service) Reset(_ ResetRequest, resp *ResetResponse) error {
	resp.SessionID = s.daemon.Reset().ID
	return nil
}

func (s *service) SetTitle(req TitleRequest, resp *TitleResponse) error {
	st := s.daemon.SetTitle(req.Title)
	resp.SessionID = st.ID
	resp.Title = st.Title
	return nil
}

func (s *service) Lines(req LinesRequest, resp *LinesResponse) error {
	if req.Tail < 0 {
		return fmt.Errorf("tail must be non-negative, got %d", req.Tail)
	}
	st := s.daemon.Recorder().Status()
	lines := s.daemon.Lines()
	resp.SessionID = st.ID
	resp.Title = st.Title
	resp.Total = len(lines)
	if req.Tail > 0 && req.Tail < len(lines) {
		lines = lines[len(lines)-req.Tail:]
	}
	resp.Lines = lines
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	if fn == nil {
		return errors.New("daemon does not accept remote stop requests")
	}
	s.logger.Info("stop requested over IPC")
	// Reply before the listener goes away.
	go fn()
	resp.Stopping = true
	return nil
}
