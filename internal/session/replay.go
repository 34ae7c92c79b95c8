package session

import (
	"context"
	"time"

	"captionsaver/internal/transcript"
)

// Replay drains src like Consume but drives clock from each observation's
// capture time, so line labels reflect the recorded stream rather than the
// replay speed. The session start is pinned to the first observation.
// An untimed stream starts at the wall clock. The recorder must have been
// built with clock as its engine clock.
func (r *Recorder) Replay(ctx context.Context, src ObservationSource, clock *transcript.ReplayClock) error {
	first := true
	return src.Run(ctx, func(obs transcript.Observation) {
		switch {
		case !obs.ObservedAt.IsZero():
			clock.Set(obs.ObservedAt)
		case first && clock.Now().IsZero():
			clock.Set(time.Now())
		}
		if first {
			first = false
			r.restartClock()
		}
		r.Push(obs)
	})
}

// restartClock restarts the session timeline without changing its identity.
func (r *Recorder) restartClock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine.Reset()
	r.revision = 0
	r.saved = 0
}
