package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"captionsaver/internal/captions"
	"captionsaver/internal/config"
	"captionsaver/internal/export"
	"captionsaver/internal/history"
	"captionsaver/internal/ingest"
	"captionsaver/internal/logging"
	"captionsaver/internal/notifications"
	"captionsaver/internal/observe"
	"captionsaver/internal/session"
	"captionsaver/internal/transcript"
)

// ErrAlreadyRunning is returned by Start when another process holds the lock.
var ErrAlreadyRunning = errors.New("another captionsaver daemon instance is already running")

const flushTimeout = 30 * time.Second

// CaptionState reports the outcome of caption auto-enable.
type CaptionState string

const (
	CaptionsDisabled    CaptionState = "disabled"
	CaptionsPending     CaptionState = "pending"
	CaptionsEnabled     CaptionState = "enabled"
	CaptionsUnavailable CaptionState = "unavailable"
)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier replaces the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		if svc != nil {
			d.notifier = svc
		}
	}
}

// WithEnabler replaces the caption enabler built from [captions].
func WithEnabler(e captions.Enabler) Option {
	return func(d *Daemon) {
		d.enabler = e
	}
}

// WithCapture tees every ingested fragment to a JSONL file at path.
func WithCapture(path string) Option {
	return func(d *Daemon) {
		d.capturePath = strings.TrimSpace(path)
	}
}

// WithClock overrides the recorder clock.
func WithClock(clock transcript.Clock) Option {
	return func(d *Daemon) {
		d.clock = clock
	}
}

// Daemon owns the recorder and every background loop feeding it.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	loggers  *logging.ComponentLoggers
	store    *history.Store
	recorder *session.Recorder
	redis    *export.RedisSink
	notifier notifications.Service
	ingest   *ingest.Server
	enabler  captions.Enabler
	clock    transcript.Clock
	sinks    []string

	capturePath string
	captureFile *os.File

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	captions  atomic.Value
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool           `json:"running"`
	StartedAt     time.Time      `json:"started_at,omitzero"`
	Session       session.Status `json:"session"`
	IngestAddr    string         `json:"ingest_addr,omitempty"`
	Captions      CaptionState   `json:"captions"`
	Sinks         []string       `json:"sinks"`
	ExportDir     string         `json:"export_dir"`
	HistoryDBPath string         `json:"history_db_path"`
	LockFilePath  string         `json:"lock_file_path"`
	CapturePath   string         `json:"capture_path,omitempty"`
}

// New constructs a daemon with initialized dependencies. The caller keeps
// ownership of store until Close.
func New(cfg *config.Config, store *history.Store, loggers *logging.ComponentLoggers, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and history store")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "captionsaver.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   loggers.For("daemon"),
		loggers:  loggers,
		store:    store,
		notifier: notifications.NewService(cfg),
		clock:    transcript.SystemClock{},
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Captions.AutoEnable {
		enabler, err := captions.NewCommandEnabler(cfg.Captions.EnableCommand)
		if err != nil {
			return nil, fmt.Errorf("caption enabler: %w", err)
		}
		d.enabler = enabler
	}
	for _, opt := range opts {
		opt(d)
	}
	d.setCaptions(CaptionsDisabled)

	redisSink, err := export.NewRedisSinkFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis sink: %w", err)
	}
	d.redis = redisSink

	sinks := []session.ExportSink{export.NewFileSink(cfg.Paths.ExportDir), store}
	if redisSink != nil {
		sinks = append(sinks, redisSink)
	}
	sinks = append(sinks, notifications.NewSink(d.notifier))
	for _, sink := range sinks {
		d.sinks = append(d.sinks, session.SinkName(sink))
	}

	recorder, err := session.NewRecorderFromConfig(cfg, d.clock, sinks, loggers)
	if err != nil {
		if redisSink != nil {
			_ = redisSink.Close()
		}
		return nil, fmt.Errorf("session recorder: %w", err)
	}
	d.recorder = recorder
	d.ingest = ingest.NewServer(cfg, recorder, loggers.For("ingest"))
	return d, nil
}

// Start acquires the daemon lock and launches ingest, autosave and caption
// auto-enable.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.startIngest(runCtx); err != nil {
		cancel()
		d.closeCapture()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startedAt = time.Now()

	if d.redis != nil {
		pingCtx, pingCancel := context.WithTimeout(runCtx, 2*time.Second)
		if err := d.redis.Ping(pingCtx); err != nil {
			logging.WarnWithContext(d.logger, "redis unreachable", "redis_unreachable",
				logging.Error(err),
				logging.String("addr", d.cfg.Redis.Addr),
				logging.String(logging.FieldImpact, "finish will fail until redis is reachable"),
				logging.String(logging.FieldErrorHint, "check redis.addr or clear it to disable the sink"),
			)
		}
		pingCancel()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.recorder.Autosave(runCtx, d.cfg.RefreshInterval(), d.store)
	}()

	if d.enabler != nil {
		d.setCaptions(CaptionsPending)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.enableCaptions(runCtx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("captionsaver daemon started",
		logging.String("lock", d.lockPath),
		logging.String("ingest", d.ingest.Addr()),
		logging.String("sinks", strings.Join(d.sinks, ",")),
	)
	return nil
}

func (d *Daemon) startIngest(ctx context.Context) error {
	if d.ingest == nil {
		return nil
	}
	if d.capturePath != "" {
		if err := os.MkdirAll(filepath.Dir(d.capturePath), 0o755); err != nil {
			return fmt.Errorf("create capture directory: %w", err)
		}
		f, err := os.OpenFile(d.capturePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		d.captureFile = f
		d.ingest.SetCapture(observe.NewJSONLWriter(f))
	}
	if err := d.ingest.Start(ctx); err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	return nil
}

func (d *Daemon) enableCaptions(ctx context.Context) {
	logger := d.loggers.For("captions")
	loop := captions.NewRetryLoop(d.cfg, logger)
	attempts, err := loop.Run(ctx, d.enabler)
	switch {
	case err == nil:
		d.setCaptions(CaptionsEnabled)
	case errors.Is(err, captions.ErrAttemptsExhausted):
		d.setCaptions(CaptionsUnavailable)
		logging.WarnWithContext(logger, "captions could not be enabled", "captions_unavailable",
			logging.Int("attempts", attempts),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no fragments arrive until captions are turned on manually"),
			logging.String(logging.FieldErrorHint, "check captions.enable_command"),
		)
		if pubErr := d.notifier.Publish(ctx, notifications.EventCaptionsUnavailable, notifications.Payload{"attempts": attempts}); pubErr != nil {
			logger.Debug("captions notification failed", logging.Error(pubErr))
		}
	default:
		d.setCaptions(CaptionsPending)
	}
}

// Stop halts background loops, flushes the current meeting and releases the
// daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ingest.Stop()
	d.wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	if _, err := d.Finish(flushCtx); err != nil {
		logging.ErrorWithContext(d.logger, "final flush failed", "final_flush_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-progress checkpoint remains in history"),
			logging.String(logging.FieldErrorHint, "export it later with captionsaver history export"),
		)
	}
	cancel()

	d.closeCapture()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("captionsaver daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

func (d *Daemon) closeCapture() {
	if d.captureFile == nil {
		return
	}
	d.ingest.SetCapture(nil)
	if err := d.captureFile.Close(); err != nil {
		d.logger.Warn("failed to close capture file", logging.Error(err))
	}
	d.captureFile = nil
}

// Finish exports the current meeting. A sink failure is also published as
// an error notification.
func (d *Daemon) Finish(ctx context.Context) (session.FinishResult, error) {
	res, err := d.recorder.Finish(ctx)
	if err != nil {
		if pubErr := d.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"context": "transcript export",
			"error":   err.Error(),
		}); pubErr != nil {
			d.logger.Debug("error notification failed", logging.Error(pubErr))
		}
	}
	return res, err
}

// Reset discards the current meeting without exporting it.
func (d *Daemon) Reset() session.Status {
	d.recorder.Reset()
	return d.recorder.Status()
}

// SetTitle names the current meeting.
func (d *Daemon) SetTitle(title string) session.Status {
	d.recorder.SetTitle(title)
	return d.recorder.Status()
}

// Lines returns the formatted transcript of the current meeting.
func (d *Daemon) Lines() []string {
	return d.recorder.Lines()
}

// Recorder exposes the session recorder.
func (d *Daemon) Recorder() *session.Recorder {
	return d.recorder
}

// IngestAddr returns the bound websocket address, empty when ingest is
// disabled or not started.
func (d *Daemon) IngestAddr() string {
	return d.ingest.Addr()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:       d.running.Load(),
		StartedAt:     started,
		Session:       d.recorder.Status(),
		IngestAddr:    d.ingest.Addr(),
		Captions:      d.captionState(),
		Sinks:         append([]string(nil), d.sinks...),
		ExportDir:     d.cfg.Paths.ExportDir,
		HistoryDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
		CapturePath:   d.capturePath,
	}
}

func (d *Daemon) setCaptions(state CaptionState) {
	d.captions.Store(state)
}

func (d *Daemon) captionState() CaptionState {
	state, _ := d.captions.Load().(CaptionState)
	return state
}
