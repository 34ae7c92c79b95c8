package transcript

import "time"

// SourceID identifies the producer of a fragment across re-renders. Only
// equality matters. The empty SourceID marks an untracked fragment.
type SourceID string

// Line is one consolidated transcript entry.
type Line struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	Canonical string `json:"canonical"`
}

// ledger is append-only; indices stay valid until the whole session resets.
type ledger struct {
	lines []Line
}

func (l *ledger) append(line Line) int {
	l.lines = append(l.lines, line)
	return len(l.lines) - 1
}

func (l *ledger) revise(index int, text, canonical string) {
	l.lines[index].Text = text
	l.lines[index].Canonical = canonical
}

func (l *ledger) at(index int) Line { return l.lines[index] }

func (l *ledger) len() int { return len(l.lines) }

func (l *ledger) snapshot() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

type sourceTable map[SourceID]int

func (t sourceTable) lookup(id SourceID) (int, bool) {
	if id == "" {
		return 0, false
	}
	index, ok := t[id]
	return index, ok
}

func (t sourceTable) record(id SourceID, index int) {
	if id == "" {
		return
	}
	t[id] = index
}

// sessionState bundles everything a reset discards. It is always replaced as
// a whole so the source table can never point past the ledger.
type sessionState struct {
	ledger  ledger
	sources sourceTable
	start   time.Time
}

func newSessionState(start time.Time) *sessionState {
	return &sessionState{sources: make(sourceTable), start: start}
}
