// Package session attaches the inspection core to one page. A Session
// owns a tooltip.Controller and runs the single event-loop goroutine the
// controller requires: tracker events, frame ticks, selection debounces
// and copy reverts are all handled here, in order, one at a time. Control
// surfaces (HTTP, MCP) never touch the controller directly; they post
// closures onto the loop and wait for the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/typelens/typelens/coalesce"
	"github.com/typelens/typelens/host"
	"github.com/typelens/typelens/idgen"
	"github.com/typelens/typelens/inspect"
	"github.com/typelens/typelens/observability"
	"github.com/typelens/typelens/tooltip"
)

// ErrClosed is returned by control calls after the session loop exited.
var ErrClosed = errors.New("session: closed")

// Config wires a Session. Surface and Overlay are required; everything
// else has a working default.
type Config struct {
	Surface   inspect.Surface
	Overlay   tooltip.Overlay
	Source    EventSource
	Notifier  host.Notifier
	Clipboard host.Clipboard
	Logger    *slog.Logger

	// EventLog records lifecycle events when set. Inspected content is
	// never written to it.
	EventLog *observability.EventLog

	ID                string
	FrameInterval     time.Duration
	ContentPeriod     time.Duration
	SelectionDebounce time.Duration
	CopyRevert        time.Duration
	NewID             idgen.Generator
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ID == "" {
		c.ID = idgen.Prefixed("sess_", idgen.Default)()
	}
}

// StateInfo is the externally visible session state.
type StateInfo struct {
	SessionID string `json:"session_id"`
	Active    bool   `json:"active"`
	State     string `json:"state"`
	Pinned    int    `json:"pinned"`
}

// InspectResult is a one-shot classification of a node by XPath.
type InspectResult struct {
	Inspectable bool             `json:"inspectable"`
	Content     *tooltip.Content `json:"content,omitempty"`
}

// Session runs the inspection loop for one page.
type Session struct {
	id     string
	cfg    Config
	logger *slog.Logger
	ctrl   *tooltip.Controller

	events chan Event
	cmds   chan func(context.Context)
	done   chan struct{}
}

// New creates a session around the given surface and overlay. The
// controller's signals are fanned out to the configured notifier and,
// when an event log is present, recorded there as lifecycle events.
func New(cfg Config) (*Session, error) {
	cfg.applyDefaults()

	s := &Session{
		id:     cfg.ID,
		cfg:    cfg,
		logger: cfg.Logger.With("session", cfg.ID),
		events: make(chan Event, 256),
		cmds:   make(chan func(context.Context)),
		done:   make(chan struct{}),
	}

	notifiers := []host.Notifier{}
	if cfg.Notifier != nil {
		notifiers = append(notifiers, cfg.Notifier)
	}
	if cfg.EventLog != nil {
		notifiers = append(notifiers, host.NewCallback(s.recordSignal))
	}

	clip := cfg.Clipboard
	if clip != nil {
		clip = &auditedClipboard{s: s, inner: clip}
	}

	ctrl, err := tooltip.NewController(tooltip.Config{
		Surface:           cfg.Surface,
		Overlay:           cfg.Overlay,
		Notifier:          host.NewRouter(s.logger, notifiers...),
		Clipboard:         clip,
		Logger:            s.logger,
		FrameInterval:     cfg.FrameInterval,
		ContentPeriod:     cfg.ContentPeriod,
		SelectionDebounce: cfg.SelectionDebounce,
		CopyRevert:        cfg.CopyRevert,
		NewID:             cfg.NewID,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.ctrl = ctrl
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// auditedClipboard records failed writes in the event log before the
// controller sees the error. Successful writes pass through untouched.
type auditedClipboard struct {
	s     *Session
	inner host.Clipboard
}

func (c *auditedClipboard) Write(ctx context.Context, value string) error {
	err := c.inner.Write(ctx, value)
	if err != nil {
		c.s.audit(ctx, observability.EventClipboardFailure, err.Error(), false)
	}
	return err
}

// recordSignal mirrors outbound signals into the event log.
func (s *Session) recordSignal(ctx context.Context, sig host.Signal) error {
	switch sig.Action {
	case host.ActionSearch:
		s.cfg.EventLog.Log(ctx, s.id, observability.EventSignalSearch, sig.FontFamily, true)
	case host.ActionDeactivate:
		s.cfg.EventLog.Log(ctx, s.id, observability.EventSignalDeactivate, "", true)
	}
	return nil
}

func (s *Session) audit(ctx context.Context, eventType, details string, success bool) {
	if s.cfg.EventLog == nil {
		return
	}
	s.cfg.EventLog.Log(ctx, s.id, eventType, details, success)
}

// Run drives the event loop until ctx is cancelled. It starts the event
// source (when one is configured), then serves events and timers. On exit
// the page overlay is torn down, pinned tooltips included, under a short
// background deadline so shutdown is not hostage to a dead page.
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.Source != nil {
		if err := s.cfg.Source.Start(ctx, s.events); err != nil {
			close(s.done)
			return fmt.Errorf("session: start event source: %w", err)
		}
	}
	s.logger.Info("session loop started")

	defer func() {
		close(s.done)
		if s.cfg.Source != nil {
			if err := s.cfg.Source.Stop(); err != nil {
				s.logger.Warn("event source stop", "error", err)
			}
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if s.ctrl.Active() {
			s.ctrl.Deactivate(shutCtx, false)
			s.audit(shutCtx, observability.EventDeactivated, "shutdown", true)
		}
		s.logger.Info("session loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.handle(ctx, ev)
		case fn := <-s.cmds:
			fn(ctx)
		case <-s.ctrl.FrameC():
			s.ctrl.OnFrame(ctx)
		case <-s.ctrl.SelectionC():
			before := len(s.ctrl.Pins())
			s.ctrl.OnSelectionSettled(ctx)
			if pins := s.ctrl.Pins(); len(pins) > before {
				s.audit(ctx, observability.EventPinCreated, pins[len(pins)-1].ID, true)
			}
		case <-s.ctrl.RevertC():
			s.ctrl.OnCopyRevert()
		}
	}
}

// handle dispatches one tracker event to the controller.
func (s *Session) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindPointerMove:
		s.ctrl.PointerMoved(coalesce.Point{X: ev.X, Y: ev.Y}, ev.XPath)
	case KindPointerLeave:
		s.ctrl.PointerLeft(ctx)
	case KindKeyDown:
		if ev.Key == "Escape" && s.ctrl.Active() {
			s.ctrl.EscapePressed(ctx)
			s.audit(ctx, observability.EventEscape, "", true)
		}
	case KindSelection:
		s.ctrl.SelectionMade(coalesce.Point{X: ev.X, Y: ev.Y}, ev.XPath, ev.Text, ev.HTML)
	case KindPinClose:
		if s.ctrl.ClosePinned(ctx, ev.PinID) {
			s.audit(ctx, observability.EventPinClosed, ev.PinID, true)
		}
	case KindCopy:
		s.ctrl.CopyValue(ctx, ev.Value)
	case KindSearch:
		if err := s.ctrl.SearchFamily(ctx, ev.Value); err != nil {
			s.logger.Warn("search signal", "error", err)
		}
	}
}

// Push injects an event as if the tracker had sent it. Used by tests and
// by embedders that drive the session without a browser.
func (s *Session) Push(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// do runs fn on the session loop and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func(context.Context)) error {
	ran := make(chan struct{})
	wrapped := func(loopCtx context.Context) {
		fn(loopCtx)
		close(ran)
	}
	select {
	case s.cmds <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle flips the session active state and reports the new state.
func (s *Session) Toggle(ctx context.Context) (bool, error) {
	var (
		active bool
		err    error
	)
	doErr := s.do(ctx, func(loopCtx context.Context) {
		active, err = s.ctrl.Toggle(loopCtx)
		if err != nil {
			// a failed activation tears the overlay back down
			s.audit(loopCtx, observability.EventActivated, err.Error(), false)
			s.audit(loopCtx, observability.EventTeardownError, err.Error(), false)
			return
		}
		if active {
			s.audit(loopCtx, observability.EventActivated, "", true)
		} else {
			s.audit(loopCtx, observability.EventDeactivated, "toggle", true)
		}
	})
	if doErr != nil {
		return false, doErr
	}
	return active, err
}

// State reports the current state machine state and pinned count.
func (s *Session) State(ctx context.Context) (StateInfo, error) {
	var info StateInfo
	err := s.do(ctx, func(context.Context) {
		info = StateInfo{
			SessionID: s.id,
			Active:    s.ctrl.Active(),
			State:     s.ctrl.State().String(),
			Pinned:    len(s.ctrl.Pins()),
		}
	})
	return info, err
}

// Pins returns the pinned tooltips, oldest first.
func (s *Session) Pins(ctx context.Context) ([]tooltip.Pinned, error) {
	var pins []tooltip.Pinned
	err := s.do(ctx, func(context.Context) {
		pins = s.ctrl.Pins()
	})
	return pins, err
}

// ClosePinned removes a pinned tooltip by id.
func (s *Session) ClosePinned(ctx context.Context, id string) (bool, error) {
	var closed bool
	err := s.do(ctx, func(loopCtx context.Context) {
		closed = s.ctrl.ClosePinned(loopCtx, id)
		if closed {
			s.audit(loopCtx, observability.EventPinClosed, id, true)
		}
	})
	return closed, err
}

// Copy writes a value through the session clipboard.
func (s *Session) Copy(ctx context.Context, value string) error {
	return s.do(ctx, func(loopCtx context.Context) {
		s.ctrl.CopyValue(loopCtx, value)
	})
}

// Inspect classifies the node at the given XPath and, when it qualifies
// as inspectable text, returns its typography and color snapshots. Works
// whether or not the session is active.
func (s *Session) Inspect(ctx context.Context, xpath string) (InspectResult, error) {
	var (
		res InspectResult
		err error
	)
	doErr := s.do(ctx, func(loopCtx context.Context) {
		res, err = s.inspectNode(loopCtx, xpath)
	})
	if doErr != nil {
		return InspectResult{}, doErr
	}
	return res, err
}

func (s *Session) inspectNode(ctx context.Context, xpath string) (InspectResult, error) {
	vp, err := s.cfg.Surface.Viewport(ctx)
	if err != nil {
		return InspectResult{}, fmt.Errorf("session: viewport: %w", err)
	}
	info, err := s.cfg.Surface.Describe(ctx, xpath)
	if err != nil {
		return InspectResult{}, fmt.Errorf("session: describe: %w", err)
	}
	if info == nil || !inspect.Classify(info, vp) {
		return InspectResult{}, nil
	}
	content := tooltip.Content{
		Style: inspect.SnapshotOf(info),
		Color: inspect.ColorOf(info),
	}
	return InspectResult{Inspectable: true, Content: &content}, nil
}
