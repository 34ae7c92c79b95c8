package transcript

import (
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"captionsaver/internal/logging"
	"captionsaver/internal/textutil"
)

// ErrIndexOutOfRange is returned by Line for indices outside the ledger.
var ErrIndexOutOfRange = errors.New("line index out of range")

// Observation is one sighting of caption text.
type Observation struct {
	SourceID   SourceID
	Text       string
	ObservedAt time.Time
}

// Decision reports what Observe did with an observation.
type Decision int

const (
	// DecisionDropped means the fragment failed the acceptability filter.
	DecisionDropped Decision = iota
	// DecisionUnchanged means a matching line was found but kept its text.
	DecisionUnchanged
	// DecisionUpdated means the source's own line was revised in place.
	DecisionUpdated
	// DecisionMerged means a recent line absorbed the fragment.
	DecisionMerged
	// DecisionAppended means a new line was started.
	DecisionAppended
)

func (d Decision) String() string {
	switch d {
	case DecisionDropped:
		return "dropped"
	case DecisionUnchanged:
		return "unchanged"
	case DecisionUpdated:
		return "updated"
	case DecisionMerged:
		return "merged"
	case DecisionAppended:
		return "appended"
	default:
		return "unknown"
	}
}

// Changed reports whether the decision modified the ledger.
func (d Decision) Changed() bool {
	return d == DecisionUpdated || d == DecisionMerged || d == DecisionAppended
}

// Result describes the outcome of one Observe call. Index is the affected
// line, or -1 when the fragment was dropped.
type Result struct {
	Decision Decision
	Index    int
}

// Options configures an Engine. Zero-valued fields fall back to defaults.
type Options struct {
	Normalizer *textutil.Normalizer
	Policy     *Policy
	Clock      Clock
	// Logger receives one debug record per consolidated fragment. Callers
	// pass a component logger.
	Logger *slog.Logger
}

// Engine consolidates observations for a single session at a time.
type Engine struct {
	normalizer *textutil.Normalizer
	policy     Policy
	clock      Clock
	logger     *slog.Logger

	state *sessionState
}

// NewEngine builds an engine and starts its first session at clock.Now().
func NewEngine(opts Options) (*Engine, error) {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		var err error
		normalizer, err = textutil.NewNormalizer(textutil.NormalizerOptions{Denylist: textutil.DefaultDenylist})
		if err != nil {
			return nil, err
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		normalizer: normalizer,
		policy:     policy,
		clock:      clock,
		logger:     logger,
	}
	e.state = newSessionState(clock.Now())
	return e, nil
}

// Policy returns the thresholds the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Observe folds one observation into the ledger.
func (e *Engine) Observe(obs Observation) Result {
	if !e.normalizer.IsAcceptable(obs.Text) {
		return Result{Decision: DecisionDropped, Index: -1}
	}
	text := textutil.CollapseWhitespace(obs.Text)
	canonical := e.normalizer.Canonicalize(text)
	result := e.consolidate(obs.SourceID, text, canonical)
	e.logger.Debug("fragment consolidated",
		logging.String(logging.FieldDecision, result.Decision.String()),
		logging.Int(logging.FieldLineIndex, result.Index),
		logging.String(logging.FieldSourceID, string(obs.SourceID)),
	)
	return result
}

func (e *Engine) consolidate(id SourceID, text, canonical string) Result {
	st := e.state

	if index, ok := st.sources.lookup(id); ok {
		current := st.ledger.at(index)
		if canonical != current.Canonical && utf8.RuneCountInString(text) >= utf8.RuneCountInString(current.Text) {
			st.ledger.revise(index, text, canonical)
			return Result{Decision: DecisionUpdated, Index: index}
		}
		return Result{Decision: DecisionUnchanged, Index: index}
	}

	if !e.policy.protected(text) {
		if index, ok := e.findMergeTarget(canonical); ok {
			decision := DecisionUnchanged
			if utf8.RuneCountInString(text) > utf8.RuneCountInString(st.ledger.at(index).Text) {
				st.ledger.revise(index, text, canonical)
				decision = DecisionMerged
			}
			st.sources.record(id, index)
			return Result{Decision: decision, Index: index}
		}
	}

	index := st.ledger.append(Line{
		Timestamp: FormatElapsed(e.clock.Now().Sub(st.start)),
		Text:      text,
		Canonical: canonical,
	})
	st.sources.record(id, index)
	return Result{Decision: DecisionAppended, Index: index}
}

// findMergeTarget scans the newest MergeWindow lines, newest first, for the
// first unprotected line that is a near duplicate or prefix of canonical.
func (e *Engine) findMergeTarget(canonical string) (int, bool) {
	st := e.state
	stop := max(0, st.ledger.len()-e.policy.MergeWindow)
	for i := st.ledger.len() - 1; i >= stop; i-- {
		candidate := st.ledger.at(i)
		if e.policy.protected(candidate.Text) {
			continue
		}
		if !e.policy.mergeEligible(candidate.Canonical, canonical) {
			continue
		}
		if textutil.IsNearDuplicateOrPrefix(candidate.Canonical, canonical, e.policy.MaxMergeDistance) {
			return i, true
		}
	}
	return 0, false
}

// Line returns a copy of the line at index.
func (e *Engine) Line(index int) (Line, error) {
	if index < 0 || index >= e.state.ledger.len() {
		return Line{}, ErrIndexOutOfRange
	}
	return e.state.ledger.at(index), nil
}
