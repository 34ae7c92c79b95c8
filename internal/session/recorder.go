package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"captionsaver/internal/logging"
	"captionsaver/internal/transcript"
)

// ObservationSource pushes observations until it is exhausted or ctx ends.
type ObservationSource interface {
	Run(ctx context.Context, push func(transcript.Observation)) error
}

// ExportSink receives finished transcripts. Implementations must be
// idempotent per document ID.
type ExportSink interface {
	Export(ctx context.Context, doc transcript.Document) error
}

// Checkpointer persists an in-progress transcript.
type Checkpointer interface {
	Checkpoint(ctx context.Context, doc transcript.Document) error
}

// Options configures a Recorder.
type Options struct {
	Engine       transcript.Options
	Sinks        []ExportSink
	DefaultTitle string
	SkipEmpty    bool
	Logger       *slog.Logger
	// NewID generates session IDs; defaults to random UUIDs.
	NewID func() string
}

// Status summarizes the current session.
type Status struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
	Lines     int       `json:"lines"`
	Revision  uint64    `json:"revision"`
	Saved     uint64    `json:"saved_revision"`
	LastLine  string    `json:"last_line,omitempty"`
}

// FinishResult reports what Finish exported.
type FinishResult struct {
	Document transcript.Document
	Skipped  bool
}

// Recorder records one meeting at a time. It is safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	engine       *transcript.Engine
	clock        transcript.Clock
	sinks        []ExportSink
	defaultTitle string
	skipEmpty    bool
	logger       *slog.Logger
	newID        func() string

	id       string
	title    string
	revision uint64
	saved    uint64
}

// NewRecorder builds the engine and opens the first session.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Engine.Clock == nil {
		opts.Engine.Clock = transcript.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = logger
	}
	engine, err := transcript.NewEngine(opts.Engine)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	r := &Recorder{
		engine:       engine,
		clock:        opts.Engine.Clock,
		sinks:        append([]ExportSink(nil), opts.Sinks...),
		defaultTitle: strings.TrimSpace(opts.DefaultTitle),
		skipEmpty:    opts.SkipEmpty,
		logger:       logger,
		newID:        newID,
	}
	r.rotateLocked()
	return r, nil
}

// Push folds one observation into the current session.
func (r *Recorder) Push(obs transcript.Observation) transcript.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.engine.Observe(obs)
	if res.Decision.Changed() {
		r.revision++
	}
	return res
}

// SetTitle names the current session. Blank titles revert to the default.
func (r *Recorder) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		title = r.defaultTitle
	}
	if title != r.title {
		r.title = title
		r.revision++
	}
}

// ID returns the current session ID.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Status reports the current session.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		ID:        r.id,
		Title:     r.title,
		StartedAt: r.engine.StartedAt(),
		Lines:     r.engine.Len(),
		Revision:  r.revision,
		Saved:     r.saved,
	}
	if n := r.engine.Len(); n > 0 {
		if line, err := r.engine.Line(n - 1); err == nil {
			st.LastLine = transcript.FormatLine(line)
		}
	}
	return st
}

// Lines renders the current transcript.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Lines()
}

// Document snapshots the current session as an exportable document.
func (r *Recorder) Document() transcript.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.documentLocked()
}

func (r *Recorder) documentLocked() transcript.Document {
	return transcript.Document{
		ID:        r.id,
		Title:     r.title,
		StartedAt: r.engine.StartedAt(),
		EndedAt:   r.clock.Now(),
		Lines:     r.engine.Lines(),
	}
}

// Finish exports the current session to every sink. Empty sessions are
// skipped when SkipEmpty is set. The session is rotated only when every sink
// succeeds; otherwise the joined sink errors are returned and a later Finish
// exports the same document again.
func (r *Recorder) Finish(ctx context.Context) (FinishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.documentLocked()
	logger := r.logger.With(logging.String(logging.FieldSessionID, doc.ID))
	if len(doc.Lines) == 0 && r.skipEmpty {
		logger.Debug("finish skipped for empty session")
		return FinishResult{Document: doc, Skipped: true}, nil
	}

	var errs []error
	for _, sink := range r.sinks {
		name := SinkName(sink)
		if err := sink.Export(ctx, doc); err != nil {
			logging.WarnWithContext(logger, "export sink failed", "export_failed",
				logging.String(logging.FieldSink, name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session kept open for retry"),
				logging.String(logging.FieldErrorHint, "fix the sink and run finish again"),
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		logger.Debug("export sink completed", logging.String(logging.FieldSink, name))
	}
	if err := errors.Join(errs...); err != nil {
		return FinishResult{Document: doc}, err
	}

	logger.Info("session finished",
		logging.String("title", doc.Title),
		logging.Int("lines", len(doc.Lines)),
		logging.Int("sinks", len(r.sinks)),
	)
	r.rotateLocked()
	return FinishResult{Document: doc}, nil
}

// Reset discards the current session without exporting it.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.id
	r.rotateLocked()
	r.logger.Info("session reset",
		logging.String("previous_session_id", previous),
		logging.String(logging.FieldSessionID, r.id),
	)
}

func (r *Recorder) rotateLocked() {
	r.engine.Reset()
	r.id = r.newID()
	r.title = r.defaultTitle
	r.revision = 0
	r.saved = 0
}

// Checkpoint persists the session through cp when it changed since the last
// checkpoint. It reports whether anything was written.
func (r *Recorder) Checkpoint(ctx context.Context, cp Checkpointer) (bool, error) {
	r.mu.Lock()
	if r.revision == r.saved || r.engine.Len() == 0 {
		r.mu.Unlock()
		return false, nil
	}
	doc := r.documentLocked()
	revision := r.revision
	r.mu.Unlock()

	if err := cp.Checkpoint(ctx, doc); err != nil {
		return false, fmt.Errorf("checkpoint session %s: %w", doc.ID, err)
	}

	r.mu.Lock()
	if r.id == doc.ID && revision > r.saved {
		r.saved = revision
	}
	r.mu.Unlock()
	return true, nil
}

// Autosave checkpoints every interval until ctx is cancelled. Checkpoint
// failures are logged and retried on the next tick.
func (r *Recorder) Autosave(ctx context.Context, interval time.Duration, cp Checkpointer) {
	if interval <= 0 || cp == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Checkpoint(ctx, cp); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(r.logger, "autosave failed", "autosave_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "in-progress transcript not persisted"),
				)
			}
		}
	}
}

// Consume drains src into the recorder.
func (r *Recorder) Consume(ctx context.Context, src ObservationSource) error {
	return src.Run(ctx, func(obs transcript.Observation) {
		r.Push(obs)
	})
}

// SinkName labels a sink for logs and errors.
func SinkName(sink ExportSink) string {
	if named, ok := sink.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", sink)
}
