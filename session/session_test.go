package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/typelens/typelens/dbopen"
	"github.com/typelens/typelens/host"
	"github.com/typelens/typelens/inspect"
	"github.com/typelens/typelens/observability"
	"github.com/typelens/typelens/tooltip"
)

type fakeSurface struct {
	vp    inspect.Viewport
	nodes map[string]*inspect.NodeInfo
}

func (s *fakeSurface) Describe(_ context.Context, ref inspect.Ref) (*inspect.NodeInfo, error) {
	key, ok := ref.(string)
	if !ok {
		return nil, nil
	}
	return s.nodes[key], nil
}

func (s *fakeSurface) Viewport(context.Context) (inspect.Viewport, error) {
	return s.vp, nil
}

func paragraph(family, color string) *inspect.NodeInfo {
	return &inspect.NodeInfo{
		Tag: "p",
		Style: inspect.Style{
			Display:       "block",
			Visibility:    "visible",
			Opacity:       1,
			FontFamily:    family,
			FontSize:      "16px",
			FontWeight:    "400",
			LineHeight:    "24px",
			LetterSpacing: "normal",
			TextAlign:     "left",
			Color:         color,
		},
		Rect:       inspect.Rect{X: 50, Y: 50, Width: 400, Height: 24},
		Text:       "Hello world from a paragraph",
		DirectText: "Hello world from a paragraph",
	}
}

type recorder struct {
	mu      sync.Mutex
	signals []host.Signal
	copied  []string
}

func (r *recorder) signal(_ context.Context, sig host.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
	return nil
}

func (r *recorder) clip(_ context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copied = append(r.copied, value)
	return nil
}

func (r *recorder) copiedValues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.copied...)
}

// startSession builds a session over fakes and runs its loop until the
// test ends.
func startSession(t *testing.T) (*Session, *recorder) {
	t.Helper()
	surface := &fakeSurface{
		vp: inspect.Viewport{Width: 1280, Height: 800, DefaultFontFamily: "Times"},
		nodes: map[string]*inspect.NodeInfo{
			"p1": paragraph("Arial, sans-serif", "rgb(255, 0, 0)"),
			"p2": paragraph("Georgia, serif", "rgb(0, 0, 255)"),
		},
	}
	rec := &recorder{}
	s, err := New(Config{
		Surface:           surface,
		Overlay:           tooltip.NewMemoryOverlay(),
		Notifier:          host.NewCallback(rec.signal),
		Clipboard:         host.ClipboardFunc(rec.clip),
		ID:                "sess_test",
		FrameInterval:     2 * time.Millisecond,
		SelectionDebounce: 2 * time.Millisecond,
		CopyRevert:        20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return s, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestToggleAndState(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t)

	info, err := s.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if info.Active || info.State != "inactive" || info.SessionID != "sess_test" {
		t.Fatalf("initial state = %+v", info)
	}

	active, err := s.Toggle(ctx)
	if err != nil || !active {
		t.Fatalf("Toggle on: got (%v, %v)", active, err)
	}
	info, _ = s.State(ctx)
	if !info.Active || info.State != "idle" {
		t.Fatalf("after toggle: %+v", info)
	}

	active, err = s.Toggle(ctx)
	if err != nil || active {
		t.Fatalf("Toggle off: got (%v, %v)", active, err)
	}
}

func TestPointerEventsDriveTracking(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t)

	if _, err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}

	s.Push(Event{Kind: KindPointerMove, X: 200, Y: 200, XPath: "p1"})
	waitFor(t, "tracking state", func() bool {
		info, err := s.State(ctx)
		return err == nil && info.State == "tracking"
	})

	s.Push(Event{Kind: KindPointerLeave})
	waitFor(t, "idle state", func() bool {
		info, err := s.State(ctx)
		return err == nil && info.State == "idle"
	})
}

func TestSelectionCreatesPin(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t)

	if _, err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}

	s.Push(Event{Kind: KindSelection, X: 100, Y: 100, XPath: "p1", Text: "Hello world"})
	waitFor(t, "pinned tooltip", func() bool {
		pins, err := s.Pins(ctx)
		return err == nil && len(pins) == 1
	})

	pins, _ := s.Pins(ctx)
	if pins[0].Content.Style == nil || pins[0].Content.Style.FontFamily != "Arial, sans-serif" {
		t.Fatalf("pin content = %+v", pins[0].Content)
	}

	closed, err := s.ClosePinned(ctx, pins[0].ID)
	if err != nil || !closed {
		t.Fatalf("ClosePinned: got (%v, %v)", closed, err)
	}
	closed, err = s.ClosePinned(ctx, pins[0].ID)
	if err != nil || closed {
		t.Fatalf("ClosePinned again: got (%v, %v)", closed, err)
	}
}

func TestEscapeDeactivatesAndSignals(t *testing.T) {
	ctx := context.Background()
	s, rec := startSession(t)

	if _, err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}

	s.Push(Event{Kind: KindKeyDown, Key: "Escape"})
	waitFor(t, "deactivation", func() bool {
		info, err := s.State(ctx)
		return err == nil && !info.Active
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.signals) != 1 || rec.signals[0].Action != host.ActionDeactivate {
		t.Fatalf("signals = %+v", rec.signals)
	}
}

func TestCopyEvent(t *testing.T) {
	ctx := context.Background()
	s, rec := startSession(t)

	if _, err := s.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Copy(ctx, "16px"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	got := rec.copiedValues()
	if len(got) != 1 || got[0] != "16px" {
		t.Fatalf("copied = %v", got)
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t)

	res, err := s.Inspect(ctx, "p2")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !res.Inspectable || res.Content == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Content.Style.FontFamily != "Georgia, serif" {
		t.Fatalf("family = %q", res.Content.Style.FontFamily)
	}
	if res.Content.Color == nil || res.Content.Color.Hex != "#0000ff" {
		t.Fatalf("color = %+v", res.Content.Color)
	}

	res, err = s.Inspect(ctx, "missing")
	if err != nil {
		t.Fatalf("Inspect missing: %v", err)
	}
	if res.Inspectable || res.Content != nil {
		t.Fatalf("missing node classified inspectable: %+v", res)
	}
}

func TestControlCallsAfterShutdown(t *testing.T) {
	surface := &fakeSurface{vp: inspect.Viewport{Width: 100, Height: 100}}
	s, err := New(Config{Surface: surface, Overlay: tooltip.NewMemoryOverlay()})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Run(ctx)
	}()
	cancel()
	<-stopped

	if _, err := s.Toggle(context.Background()); err != ErrClosed {
		t.Fatalf("Toggle after shutdown: %v, want ErrClosed", err)
	}
}

// startLoggedSession runs a session whose lifecycle events land in a
// real in-memory event log.
func startLoggedSession(t *testing.T, overlay tooltip.Overlay, clip host.Clipboard) (*Session, *observability.EventLog) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	log := observability.NewEventLog(db)

	surface := &fakeSurface{vp: inspect.Viewport{Width: 1280, Height: 800}}
	s, err := New(Config{
		Surface:           surface,
		Overlay:           overlay,
		Clipboard:         clip,
		EventLog:          log,
		ID:                "sess_test",
		FrameInterval:     2 * time.Millisecond,
		SelectionDebounce: 2 * time.Millisecond,
		CopyRevert:        20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return s, log
}

func findEvent(events []observability.SessionEvent, eventType string) *observability.SessionEvent {
	for i := range events {
		if events[i].EventType == eventType {
			return &events[i]
		}
	}
	return nil
}

func TestCopyFailureLogged(t *testing.T) {
	ctx := context.Background()
	broken := host.ClipboardFunc(func(context.Context, string) error {
		return errors.New("clipboard unavailable")
	})
	s, log := startLoggedSession(t, tooltip.NewMemoryOverlay(), broken)

	if _, err := s.Toggle(ctx); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if err := s.Copy(ctx, "#ff0000"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	events, err := log.Recent(ctx, "sess_test", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	ev := findEvent(events, observability.EventClipboardFailure)
	if ev == nil {
		t.Fatalf("no clipboard_failure event, got %+v", events)
	}
	if ev.Success {
		t.Fatal("clipboard_failure recorded as success")
	}
	if !strings.Contains(ev.Details, "clipboard unavailable") {
		t.Fatalf("details = %q", ev.Details)
	}
}

type brokenOverlay struct {
	tooltip.Overlay
}

func (brokenOverlay) EnsureFloating(context.Context) error {
	return errors.New("page detached")
}

func TestActivateFailureLogsTeardown(t *testing.T) {
	ctx := context.Background()
	s, log := startLoggedSession(t, brokenOverlay{tooltip.NewMemoryOverlay()}, nil)

	active, err := s.Toggle(ctx)
	if err == nil {
		t.Fatal("expected activation error")
	}
	if active {
		t.Fatal("session active after failed activation")
	}

	events, err := log.Recent(ctx, "sess_test", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	td := findEvent(events, observability.EventTeardownError)
	if td == nil {
		t.Fatalf("no teardown_error event, got %+v", events)
	}
	if td.Success || !strings.Contains(td.Details, "page detached") {
		t.Fatalf("teardown_error = %+v", td)
	}
	act := findEvent(events, observability.EventActivated)
	if act == nil || act.Success {
		t.Fatalf("activated event = %+v", act)
	}
}
