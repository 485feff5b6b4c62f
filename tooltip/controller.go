package tooltip

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/typelens/typelens/coalesce"
	"github.com/typelens/typelens/host"
	"github.com/typelens/typelens/idgen"
	"github.com/typelens/typelens/inspect"
)

// State is the controller lifecycle state. Inactive means the session is
// off: no floating tooltip, no listeners, no pinned creation.
type State int

const (
	StateInactive State = iota
	StateIdle              // active, no current target
	StateTracking          // active, valid target, tooltip visible
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	default:
		return "inactive"
	}
}

// Placement and lifecycle constants.
const (
	// PointerOffset shifts the floating tooltip away from the cursor.
	PointerOffset = 10.0
	// EdgeMargin: pointer positions this close to a viewport edge count
	// as having left the page.
	EdgeMargin = 15.0
	// DefaultSelectionDebounce waits for the selection gesture to settle.
	DefaultSelectionDebounce = 100 * time.Millisecond
	// DefaultCopyRevert holds the copy confirmation state.
	DefaultCopyRevert = 2 * time.Second

	// Nominal floating tooltip box, used to flip placement at the
	// right/bottom viewport edges before the element has ever rendered.
	floatingWidth  = 260.0
	floatingHeight = 180.0
)

// Config wires a Controller. Surface and Overlay are required.
type Config struct {
	Surface   inspect.Surface
	Overlay   Overlay
	Notifier  host.Notifier
	Clipboard host.Clipboard
	Logger    *slog.Logger

	FrameInterval     time.Duration
	ContentPeriod     time.Duration
	SelectionDebounce time.Duration
	CopyRevert        time.Duration
	NewID             idgen.Generator
}

// pendingSelection is a selection gesture waiting out the debounce.
type pendingSelection struct {
	pos  coalesce.Point
	ref  inspect.Ref
	text string
	html string
}

// Controller is the tooltip state machine. All methods must be called
// from a single event-handling goroutine (the session loop), so no
// locking is needed; the only discipline is that every timer armed here
// is cancelable through teardown.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	state     State
	target    inspect.Ref
	latestRef inspect.Ref
	content   Content

	frames   *coalesce.FrameScheduler
	throttle *coalesce.ContentThrottle
	frameCtx context.Context

	pins     map[string]*Pinned
	occupied map[GridKey]bool

	selTimer  *time.Timer
	selC      <-chan time.Time
	selPend   *pendingSelection
	deb       time.Duration

	revertTimer *time.Timer
	revertC     <-chan time.Time
	confirmed   string
}

// NewController creates an inactive controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Surface == nil {
		return nil, fmt.Errorf("tooltip: config needs a Surface")
	}
	if cfg.Overlay == nil {
		return nil, fmt.Errorf("tooltip: config needs an Overlay")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = host.NewCallback(nil)
	}
	if cfg.SelectionDebounce <= 0 {
		cfg.SelectionDebounce = DefaultSelectionDebounce
	}
	if cfg.CopyRevert <= 0 {
		cfg.CopyRevert = DefaultCopyRevert
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.Prefixed("pin_", idgen.Default)
	}

	c := &Controller{
		cfg:      cfg,
		logger:   cfg.Logger,
		state:    StateInactive,
		throttle: coalesce.NewContentThrottle(cfg.ContentPeriod),
		pins:     make(map[string]*Pinned),
		occupied: make(map[GridKey]bool),
		deb:      cfg.SelectionDebounce,
	}
	c.frames = coalesce.NewFrameScheduler(cfg.FrameInterval, c.onFramePos)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Active reports whether the session is on.
func (c *Controller) Active() bool { return c.state != StateInactive }

// Content returns the floating tooltip's current content.
func (c *Controller) Content() Content { return c.content }

// Activate transitions Inactive → Idle: create the hidden floating
// tooltip. Idempotent when already active. An error at this boundary runs
// the full teardown so a half-active session can never leak.
func (c *Controller) Activate(ctx context.Context) error {
	if c.state != StateInactive {
		return nil
	}
	if err := c.cfg.Overlay.EnsureFloating(ctx); err != nil {
		c.teardown(ctx, true)
		return fmt.Errorf("tooltip: activate: %w", err)
	}
	c.state = StateIdle
	c.logger.Debug("tooltip: activated")
	return nil
}

// Deactivate transitions to Inactive: cancel every timer, destroy the
// floating tooltip, and unless preservePinned is set, destroy all pinned
// tooltips. Idempotent; usable from error paths.
func (c *Controller) Deactivate(ctx context.Context, preservePinned bool) {
	c.teardown(ctx, !preservePinned)
}

// Toggle implements the host's idempotent toggle: activates when
// inactive, deactivates (destroying pinned tooltips) when active.
// Returns the resulting active flag.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	if c.Active() {
		c.Deactivate(ctx, false)
		return false, nil
	}
	if err := c.Activate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// PointerMoved records a raw pointer event. Position delivery is frame
// coalesced: only the most recent position survives to the next frame.
func (c *Controller) PointerMoved(pos coalesce.Point, ref inspect.Ref) {
	if !c.Active() {
		return
	}
	c.latestRef = ref
	c.frames.Schedule(pos)
}

// PointerLeft handles mouseout to a non-descendant, the document root, or
// a departure from the page.
func (c *Controller) PointerLeft(ctx context.Context) {
	if !c.Active() {
		return
	}
	c.frames.Stop()
	c.dropTarget(ctx)
}

// FrameC is the pending frame channel for the session loop select, nil
// when no frame is armed.
func (c *Controller) FrameC() <-chan time.Time { return c.frames.TimerC() }

// OnFrame delivers the coalesced position. Call when FrameC fires.
func (c *Controller) OnFrame(ctx context.Context) {
	c.frameCtx = ctx
	c.frames.Fire()
	c.frameCtx = nil
}

func (c *Controller) onFramePos(pos coalesce.Point) {
	ctx := c.frameCtx
	if ctx == nil {
		ctx = context.Background()
	}
	c.evaluate(ctx, pos)
}

// evaluate is the per-frame step: revalidate the target, drive the
// Idle/Tracking transition, update position every frame and content per
// the throttle policy.
func (c *Controller) evaluate(ctx context.Context, pos coalesce.Point) {
	if !c.Active() {
		return
	}

	vp, err := c.cfg.Surface.Viewport(ctx)
	if err != nil {
		c.logger.Warn("tooltip: viewport read failed", "error", err)
		c.dropTarget(ctx)
		return
	}

	// Near the viewport edge the tooltip would fight the chrome; treat
	// it as leaving.
	if pos.X < EdgeMargin || pos.Y < EdgeMargin ||
		pos.X > vp.Width-EdgeMargin || pos.Y > vp.Height-EdgeMargin {
		c.dropTarget(ctx)
		return
	}

	// Refs are never trusted across events: page content may have
	// mutated, so describe and classify from scratch.
	info, err := c.cfg.Surface.Describe(ctx, c.latestRef)
	if err != nil || info == nil || !inspect.Classify(info, vp) {
		if err != nil {
			c.logger.Debug("tooltip: describe failed", "error", err)
		}
		c.dropTarget(ctx)
		return
	}

	if c.target != c.latestRef {
		c.target = c.latestRef
		c.throttle.Reset()
	}

	place := placeFloating(pos, vp)
	if c.state == StateIdle {
		c.state = StateTracking
		if err := c.cfg.Overlay.ShowFloating(ctx, place); err != nil {
			c.logger.Warn("tooltip: show failed", "error", err)
		}
	} else {
		if err := c.cfg.Overlay.MoveFloating(ctx, place); err != nil {
			c.logger.Warn("tooltip: move failed", "error", err)
		}
	}

	if !c.throttle.Due() {
		return
	}
	content := Content{Style: inspect.SnapshotOf(info), Color: inspect.ColorOf(info)}
	if c.throttle.Commit(content.Fingerprint()) {
		c.content = content
		if err := c.cfg.Overlay.SetFloatingContent(ctx, content); err != nil {
			c.logger.Warn("tooltip: content render failed", "error", err)
		}
	}
}

// dropTarget transitions Tracking → Idle.
func (c *Controller) dropTarget(ctx context.Context) {
	c.target = nil
	if c.state != StateTracking {
		return
	}
	c.state = StateIdle
	c.throttle.Reset()
	if err := c.cfg.Overlay.HideFloating(ctx); err != nil {
		c.logger.Warn("tooltip: hide failed", "error", err)
	}
}

// EscapePressed deactivates the session from the keyboard: the floating
// tooltip goes away and exactly one deactivation acknowledgement is
// emitted, but pinned tooltips survive until the host tears down.
func (c *Controller) EscapePressed(ctx context.Context) {
	if !c.Active() {
		return
	}
	c.teardown(ctx, false)
	if err := c.cfg.Notifier.Notify(ctx, host.DeactivateSignal()); err != nil {
		c.logger.Warn("tooltip: deactivate signal failed", "error", err)
	}
}

// SelectionMade records a mouseup selection gesture. Creation is
// debounced so the pinned tooltip reflects the settled selection.
func (c *Controller) SelectionMade(pos coalesce.Point, ref inspect.Ref, text, html string) {
	if !c.Active() {
		return
	}
	c.selPend = &pendingSelection{pos: pos, ref: ref, text: text, html: html}
	if c.selTimer == nil {
		c.selTimer = time.NewTimer(c.deb)
	} else {
		c.selTimer.Stop()
		c.selTimer.Reset(c.deb)
	}
	c.selC = c.selTimer.C
}

// SelectionC is the selection debounce channel, nil when idle.
func (c *Controller) SelectionC() <-chan time.Time { return c.selC }

// OnSelectionSettled creates the pinned tooltip for the debounced
// selection. Call when SelectionC fires.
func (c *Controller) OnSelectionSettled(ctx context.Context) {
	pend := c.selPend
	c.selPend = nil
	c.selC = nil
	if pend == nil || !c.Active() {
		return
	}
	if pend.text == "" {
		return
	}

	grid := GridKeyFor(pend.pos)
	if c.occupied[grid] {
		c.logger.Debug("tooltip: pin suppressed, bucket occupied",
			"col", grid.Col, "row", grid.Row)
		return
	}

	content := c.contentFor(ctx, pend.ref)
	pin := &Pinned{
		ID:        c.cfg.NewID(),
		Pos:       pend.pos,
		X:         pend.pos.X,
		Y:         pend.pos.Y,
		Grid:      grid,
		Content:   content,
		Snippet:   CaptureSnippet(pend.text, pend.html),
		CreatedAt: time.Now(),
	}

	if err := c.cfg.Overlay.CreatePinned(ctx, *pin); err != nil {
		c.logger.Warn("tooltip: pin render failed", "id", pin.ID, "error", err)
		return
	}
	c.pins[pin.ID] = pin
	c.occupied[grid] = true
	c.logger.Debug("tooltip: pinned", "id", pin.ID, "pins", len(c.pins))
}

// contentFor captures content from the selection's anchor node, falling
// back to the floating tooltip's current content.
func (c *Controller) contentFor(ctx context.Context, ref inspect.Ref) Content {
	if ref == nil {
		return c.content
	}
	info, err := c.cfg.Surface.Describe(ctx, ref)
	if err != nil || info == nil {
		return c.content
	}
	return Content{Style: inspect.SnapshotOf(info), Color: inspect.ColorOf(info)}
}

// ClosePinned dismisses one pinned tooltip. Its grid bucket stays
// occupied so a repeated gesture at the same spot does not flicker a new
// pin into existence.
func (c *Controller) ClosePinned(ctx context.Context, id string) bool {
	pin, ok := c.pins[id]
	if !ok {
		return false
	}
	delete(c.pins, id)
	if err := c.cfg.Overlay.RemovePinned(ctx, pin.ID); err != nil {
		c.logger.Warn("tooltip: unpin failed", "id", id, "error", err)
	}
	return true
}

// Pins returns the pinned tooltips ordered by creation time.
func (c *Controller) Pins() []Pinned {
	out := make([]Pinned, 0, len(c.pins))
	for _, p := range c.pins {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CopyValue writes a displayed field value through the host clipboard.
// Success arms the confirmation state for the revert period; failure is
// logged and swallowed, never a user-facing error.
func (c *Controller) CopyValue(ctx context.Context, value string) {
	if c.cfg.Clipboard == nil {
		return
	}
	if err := c.cfg.Clipboard.Write(ctx, value); err != nil {
		c.logger.Warn("tooltip: clipboard write failed", "error", err)
		return
	}
	c.confirmed = value
	if c.revertTimer == nil {
		c.revertTimer = time.NewTimer(c.cfg.CopyRevert)
	} else {
		c.revertTimer.Stop()
		c.revertTimer.Reset(c.cfg.CopyRevert)
	}
	c.revertC = c.revertTimer.C
}

// Confirmed returns the value whose copy affordance is currently in the
// confirmation state, empty after revert.
func (c *Controller) Confirmed() string { return c.confirmed }

// RevertC is the copy-confirmation revert channel, nil when idle.
func (c *Controller) RevertC() <-chan time.Time { return c.revertC }

// OnCopyRevert clears the confirmation state. Call when RevertC fires.
func (c *Controller) OnCopyRevert() {
	c.confirmed = ""
	c.revertC = nil
}

// SearchFamily emits one font lookup request for a tooltip's font-family
// affordance.
func (c *Controller) SearchFamily(ctx context.Context, fontFamily string) error {
	if fontFamily == "" {
		return nil
	}
	if err := c.cfg.Notifier.Notify(ctx, host.SearchSignal(fontFamily)); err != nil {
		return fmt.Errorf("tooltip: search signal: %w", err)
	}
	return nil
}

// teardown is the single exit routine shared by deactivation, Escape,
// and error recovery. Idempotent: every path through the controller ends
// here and may do so more than once.
func (c *Controller) teardown(ctx context.Context, destroyPinned bool) {
	c.frames.Stop()
	if c.selTimer != nil {
		c.selTimer.Stop()
	}
	c.selC = nil
	c.selPend = nil
	if c.revertTimer != nil {
		c.revertTimer.Stop()
	}
	c.revertC = nil
	c.confirmed = ""

	c.target = nil
	c.latestRef = nil
	c.throttle.Reset()
	c.content = Content{}

	if err := c.cfg.Overlay.Teardown(ctx, destroyPinned); err != nil {
		c.logger.Warn("tooltip: overlay teardown failed", "error", err)
	}
	if destroyPinned {
		c.pins = make(map[string]*Pinned)
		c.occupied = make(map[GridKey]bool)
	}

	if c.state != StateInactive {
		c.logger.Debug("tooltip: deactivated", "pins_kept", len(c.pins))
	}
	c.state = StateInactive
}

// placeFloating positions the tooltip at the pointer plus the fixed
// offset, flipping to the opposite side of the cursor when it would
// overflow the right or bottom edge, then clamping into the viewport.
func placeFloating(pos coalesce.Point, vp inspect.Viewport) coalesce.Point {
	x := pos.X + PointerOffset
	if x+floatingWidth > vp.Width {
		x = pos.X - PointerOffset - floatingWidth
	}
	if x < 0 {
		x = 0
	}

	y := pos.Y + PointerOffset
	if y+floatingHeight > vp.Height {
		y = pos.Y - PointerOffset - floatingHeight
	}
	if y < 0 {
		y = 0
	}
	return coalesce.Point{X: x, Y: y}
}
