// Package coalesce collapses bursts of pointer events into the minimum
// number of processing steps while preserving the most recent value.
//
// Two independent rate limits cooperate: a frame scheduler that aligns
// position updates to display frames (last-write-wins, at most one frame
// of latency), and a content throttle that bounds how often expensive
// style re-sampling runs. Neither owns a goroutine; the session event loop
// selects on TimerC the way the domwatch observer loop drains its
// debouncer.
package coalesce

import "time"

// DefaultFrameInterval approximates one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// DefaultContentPeriod is the minimum spacing between content recomputes
// for the floating tooltip.
const DefaultContentPeriod = 200 * time.Millisecond

// Point is a pointer position in viewport coordinates.
type Point struct {
	X float64
	Y float64
}

// FrameScheduler coalesces position updates to one callback per display
// frame. Scheduling while a frame is pending only replaces the stored
// position; the deadline is never extended, so continuous movement still
// fires every frame. A superseded position is never delivered.
type FrameScheduler struct {
	interval time.Duration
	fire     func(Point)

	timer   *time.Timer
	timerCh <-chan time.Time
	pending bool
	latest  Point
}

// NewFrameScheduler creates a scheduler delivering to fire. A zero
// interval uses DefaultFrameInterval.
func NewFrameScheduler(interval time.Duration, fire func(Point)) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval, fire: fire}
}

// Schedule records a position for the next frame. The first call after an
// idle period arms the frame timer; further calls before it fires only
// overwrite the position.
func (f *FrameScheduler) Schedule(p Point) {
	f.latest = p
	if f.pending {
		return
	}
	f.pending = true
	if f.timer == nil {
		f.timer = time.NewTimer(f.interval)
	} else {
		f.timer.Reset(f.interval)
	}
	f.timerCh = f.timer.C
}

// TimerC returns the channel that fires at the next frame boundary, or
// nil when nothing is pending. Select on it from the owning event loop.
func (f *FrameScheduler) TimerC() <-chan time.Time {
	if !f.pending {
		return nil
	}
	return f.timerCh
}

// Fire delivers the most recent position. Call when TimerC fires.
func (f *FrameScheduler) Fire() {
	if !f.pending {
		return
	}
	f.pending = false
	f.timerCh = nil
	f.fire(f.latest)
}

// Pending reports whether a frame callback is armed.
func (f *FrameScheduler) Pending() bool {
	return f.pending
}

// Stop cancels any pending frame. No callback runs after Stop returns;
// safe to call repeatedly and from every teardown path.
func (f *FrameScheduler) Stop() {
	f.pending = false
	f.timerCh = nil
	if f.timer != nil {
		f.timer.Stop()
	}
}

// ContentThrottle rate-limits expensive content recomputation
// independently of position updates. Re-sampling runs at most once per
// period while the fingerprint is unchanged, so changed content is never
// stale for more than one period; an actual render only happens when the
// fingerprint moves.
type ContentThrottle struct {
	period   time.Duration
	lastHash string
	lastAt   time.Time
	now      func() time.Time
}

// NewContentThrottle creates a throttle. A zero period uses
// DefaultContentPeriod.
func NewContentThrottle(period time.Duration) *ContentThrottle {
	if period <= 0 {
		period = DefaultContentPeriod
	}
	return &ContentThrottle{period: period, now: time.Now}
}

// Due reports whether enough time has passed to re-sample content.
func (t *ContentThrottle) Due() bool {
	return t.lastAt.IsZero() || t.now().Sub(t.lastAt) >= t.period
}

// Commit records a completed sample and reports whether the content
// actually changed and needs a render.
func (t *ContentThrottle) Commit(fingerprint string) bool {
	t.lastAt = t.now()
	if fingerprint == t.lastHash {
		return false
	}
	t.lastHash = fingerprint
	return true
}

// Reset forgets the cached fingerprint so the next Due() is immediate.
// Called when the tracked target changes: new node, fresh content.
func (t *ContentThrottle) Reset() {
	t.lastHash = ""
	t.lastAt = time.Time{}
}
