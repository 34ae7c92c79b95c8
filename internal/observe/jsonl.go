package observe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"captionsaver/internal/logging"
	"captionsaver/internal/transcript"
)

const maxLineBytes = 1 << 20

// JSONLSource replays fragments from a reader, one per line.
type JSONLSource struct {
	r       io.Reader
	name    string
	lenient bool
	logger  *slog.Logger
}

// JSONLOption customizes a JSONLSource.
type JSONLOption func(*JSONLSource)

// WithLenient skips malformed lines with a warning instead of failing.
func WithLenient(logger *slog.Logger) JSONLOption {
	return func(s *JSONLSource) {
		s.lenient = true
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewJSONLSource reads from r; name labels errors (a file path or "stdin").
func NewJSONLSource(r io.Reader, name string, opts ...JSONLOption) *JSONLSource {
	s := &JSONLSource{r: r, name: name, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run pushes every fragment in order. Blank lines and lines starting with
// '#' are ignored.
func (s *JSONLSource) Run(ctx context.Context, push func(transcript.Observation)) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			push(transcript.Observation{Text: line})
			continue
		}
		frag, err := ParseFragment([]byte(line))
		if err != nil {
			if s.lenient {
				logging.WarnWithContext(s.logger, "skipping malformed fragment", "fragment_invalid",
					logging.String("source", s.name),
					logging.Int("line", lineNo),
					logging.Error(err),
					logging.String(logging.FieldImpact, "fragment ignored"),
				)
				continue
			}
			return fmt.Errorf("%s:%d: %w", s.name, lineNo, err)
		}
		push(frag.Observation())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", s.name, err)
	}
	return nil
}

// JSONLWriter appends observations in the format JSONLSource reads. It is
// safe for concurrent use.
type JSONLWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewJSONLWriter wraps w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write encodes obs as one line and flushes it.
func (j *JSONLWriter) Write(obs transcript.Observation) error {
	data, err := json.Marshal(FromObservation(obs))
	if err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.w.Flush()
}
