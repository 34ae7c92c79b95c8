package transcript

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies the current instant to an Engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading, so
// elapsed labels are immune to wall-clock steps.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// ReplayClock is advanced explicitly, typically to the capture time of each
// replayed observation. It never moves backwards.
type ReplayClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewReplayClock returns a clock positioned at start.
func NewReplayClock(start time.Time) *ReplayClock {
	return &ReplayClock{now: start}
}

// Now returns the last instant the clock was moved to.
func (c *ReplayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Instants earlier than the current one are ignored.
func (c *ReplayClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// Advance moves the clock forward by d. Non-positive durations are ignored.
func (c *ReplayClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FormatElapsed renders d as zero-padded "mm:ss", truncating to whole
// seconds. Minutes keep growing past 99 rather than rolling into hours.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
