package transcript

import (
	"strings"
	"time"
)

// Document is a finished transcript handed to export sinks.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Lines     []string  `json:"lines"`
}

// Text joins the document lines with newlines, the layout of exported files.
func (d Document) Text() string {
	return strings.Join(d.Lines, "\n")
}

// FormatLine renders a line as "[mm:ss] text".
func FormatLine(line Line) string {
	return "[" + line.Timestamp + "] " + line.Text
}

// Lines renders the ledger in order. It does not modify the session.
func (e *Engine) Lines() []string {
	out := make([]string, 0, e.state.ledger.len())
	for _, line := range e.state.ledger.lines {
		out = append(out, FormatLine(line))
	}
	return out
}

// Snapshot returns a copy of the ledger.
func (e *Engine) Snapshot() []Line {
	return e.state.ledger.snapshot()
}

// Len returns the number of lines in the current session.
func (e *Engine) Len() int {
	return e.state.ledger.len()
}

// StartedAt returns the instant the current session started.
func (e *Engine) StartedAt() time.Time {
	return e.state.start
}

// Reset discards the ledger and source table and restarts the session clock.
func (e *Engine) Reset() {
	e.state = newSessionState(e.clock.Now())
}
