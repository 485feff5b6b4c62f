package tooltip

import (
	"context"
	"errors"
	"testing"

	"github.com/typelens/typelens/coalesce"
	"github.com/typelens/typelens/host"
	"github.com/typelens/typelens/inspect"
)

type fakeSurface struct {
	vp        inspect.Viewport
	nodes     map[string]*inspect.NodeInfo
	describes int
}

func (s *fakeSurface) Describe(_ context.Context, ref inspect.Ref) (*inspect.NodeInfo, error) {
	s.describes++
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

type harness struct {
	c       *Controller
	overlay *MemoryOverlay
	surface *fakeSurface
	signals *[]host.Signal
	copied  *[]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	surface := &fakeSurface{
		vp: inspect.Viewport{Width: 1280, Height: 800, DefaultFontFamily: "Times"},
		nodes: map[string]*inspect.NodeInfo{
			"p1":  paragraph("Arial, sans-serif", "rgb(255, 0, 0)"),
			"p2":  paragraph("Georgia, serif", "rgb(0, 0, 255)"),
			"img": {Tag: "img", Style: inspect.Style{Display: "block", Visibility: "visible", Opacity: 1}},
		},
	}
	overlay := NewMemoryOverlay()
	var signals []host.Signal
	var copied []string
	c, err := NewController(Config{
		Surface: surface,
		Overlay: overlay,
		Notifier: host.NewCallback(func(_ context.Context, sig host.Signal) error {
			signals = append(signals, sig)
			return nil
		}),
		Clipboard: host.ClipboardFunc(func(_ context.Context, value string) error {
			copied = append(copied, value)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return &harness{c: c, overlay: overlay, surface: surface, signals: &signals, copied: &copied}
}

// moveFrame delivers one pointer position and runs the frame step.
func (h *harness) moveFrame(ctx context.Context, pos coalesce.Point, ref inspect.Ref) {
	h.c.PointerMoved(pos, ref)
	h.c.OnFrame(ctx)
}

func (h *harness) pin(ctx context.Context, pos coalesce.Point, ref inspect.Ref, text, html string) {
	h.c.SelectionMade(pos, ref, text, html)
	h.c.OnSelectionSettled(ctx)
}

func TestToggleLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if h.c.Active() {
		t.Fatal("controller active before any toggle")
	}
	on, err := h.c.Toggle(ctx)
	if err != nil || !on {
		t.Fatalf("toggle on: got (%v, %v)", on, err)
	}
	if h.c.State() != StateIdle || !h.overlay.FloatingExists {
		t.Fatalf("after activation: state=%v exists=%v", h.c.State(), h.overlay.FloatingExists)
	}

	// Activate again is a no-op, not an error.
	if err := h.c.Activate(ctx); err != nil {
		t.Fatalf("re-activate: %v", err)
	}

	h.pin(ctx, coalesce.Point{X: 200, Y: 200}, "p1", "Hello", "")
	if len(h.overlay.Pins) != 1 {
		t.Fatalf("pins = %d, want 1", len(h.overlay.Pins))
	}

	on, err = h.c.Toggle(ctx)
	if err != nil || on {
		t.Fatalf("toggle off: got (%v, %v)", on, err)
	}
	if h.c.State() != StateInactive || h.overlay.FloatingExists {
		t.Fatal("toggle off left the floating tooltip alive")
	}
	if len(h.overlay.Pins) != 0 || len(h.c.Pins()) != 0 {
		t.Fatal("host deactivation must destroy pinned tooltips")
	}
}

type failingOverlay struct{ MemoryOverlay }

func (f *failingOverlay) EnsureFloating(context.Context) error {
	return errors.New("frame detached")
}

func TestActivateFailureStaysInactive(t *testing.T) {
	ctx := context.Background()
	c, err := NewController(Config{
		Surface: &fakeSurface{vp: inspect.Viewport{Width: 100, Height: 100}},
		Overlay: &failingOverlay{},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Activate(ctx); err == nil {
		t.Fatal("expected activation error")
	}
	if c.Active() {
		t.Fatal("failed activation must leave the controller inactive")
	}
}

func TestPointerTracking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	pos := coalesce.Point{X: 300, Y: 400}
	h.moveFrame(ctx, pos, "p1")

	if h.c.State() != StateTracking {
		t.Fatalf("state = %v, want tracking", h.c.State())
	}
	if !h.overlay.FloatingVisible {
		t.Fatal("floating tooltip not shown")
	}
	want := coalesce.Point{X: pos.X + PointerOffset, Y: pos.Y + PointerOffset}
	if h.overlay.FloatingPos != want {
		t.Fatalf("pos = %+v, want %+v", h.overlay.FloatingPos, want)
	}
	got := h.overlay.FloatingContent
	if got.Style == nil || got.Style.PrimaryFamily() != "Arial" {
		t.Fatalf("content style = %+v, want Arial", got.Style)
	}
	if got.Color == nil || got.Color.Hex != "#ff0000" {
		t.Fatalf("content color = %+v, want #ff0000", got.Color)
	}
}

func TestPointerEventsIgnoredWhenInactive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.c.PointerMoved(coalesce.Point{X: 300, Y: 400}, "p1")
	if h.c.FrameC() != nil {
		t.Fatal("inactive controller armed a frame")
	}
	h.c.OnFrame(ctx)
	if h.surface.describes != 0 || len(h.overlay.Ops) != 0 {
		t.Fatal("inactive controller touched its capabilities")
	}
}

func TestFrameCoalescing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		h.c.PointerMoved(coalesce.Point{X: float64(100 + i), Y: 300}, "p1")
	}
	h.c.OnFrame(ctx)

	if h.surface.describes != 1 {
		t.Fatalf("describes = %d, want 1 per frame", h.surface.describes)
	}
	want := coalesce.Point{X: 149 + PointerOffset, Y: 300 + PointerOffset}
	if h.overlay.FloatingPos != want {
		t.Fatalf("pos = %+v, want last position %+v", h.overlay.FloatingPos, want)
	}
}

func TestNonTextTargetHides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")
	if h.c.State() != StateTracking {
		t.Fatal("setup: not tracking")
	}

	h.moveFrame(ctx, coalesce.Point{X: 310, Y: 400}, "img")
	if h.c.State() != StateIdle || h.overlay.FloatingVisible {
		t.Fatalf("over non-text: state=%v visible=%v", h.c.State(), h.overlay.FloatingVisible)
	}

	// Unknown ref: not an element at all.
	h.moveFrame(ctx, coalesce.Point{X: 320, Y: 400}, "gone")
	if h.c.State() != StateIdle {
		t.Fatalf("over missing node: state=%v", h.c.State())
	}
}

func TestEdgeMarginHides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")
	h.moveFrame(ctx, coalesce.Point{X: 5, Y: 400}, "p1")
	if h.c.State() != StateIdle || h.overlay.FloatingVisible {
		t.Fatal("pointer at the viewport edge must hide the tooltip")
	}
}

func TestPointerLeft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")
	h.c.PointerLeft(ctx)
	if h.c.State() != StateIdle || h.overlay.FloatingVisible {
		t.Fatal("mouseout must return to idle and hide")
	}
	if h.c.FrameC() != nil {
		t.Fatal("mouseout left a frame armed")
	}
}

func TestPlacement(t *testing.T) {
	vp := inspect.Viewport{Width: 1280, Height: 800}
	tests := []struct {
		name string
		pos  coalesce.Point
		want coalesce.Point
	}{
		{"center", coalesce.Point{X: 300, Y: 400}, coalesce.Point{X: 310, Y: 410}},
		{"right edge flips", coalesce.Point{X: 1200, Y: 400}, coalesce.Point{X: 1200 - PointerOffset - floatingWidth, Y: 410}},
		{"bottom edge flips", coalesce.Point{X: 300, Y: 750}, coalesce.Point{X: 310, Y: 750 - PointerOffset - floatingHeight}},
		{"corner flips both", coalesce.Point{X: 1200, Y: 750}, coalesce.Point{X: 930, Y: 560}},
		{"clamped at origin", coalesce.Point{X: 100, Y: 30}, coalesce.Point{X: 110, Y: 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := placeFloating(tt.pos, vp); got != tt.want {
				t.Fatalf("placeFloating(%+v) = %+v, want %+v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestContentThrottling(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	countOps := func(name string) int {
		n := 0
		for _, op := range h.overlay.Ops {
			if op == name {
				n++
			}
		}
		return n
	}

	// Several frames over the same node within the content period: the
	// position tracks every frame but content renders once.
	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")
	h.moveFrame(ctx, coalesce.Point{X: 310, Y: 400}, "p1")
	h.moveFrame(ctx, coalesce.Point{X: 320, Y: 400}, "p1")
	if got := countOps("content"); got != 1 {
		t.Fatalf("content renders = %d, want 1", got)
	}

	// A new target re-samples immediately regardless of the period.
	h.moveFrame(ctx, coalesce.Point{X: 330, Y: 400}, "p2")
	if got := countOps("content"); got != 2 {
		t.Fatalf("content renders after target change = %d, want 2", got)
	}
	if h.overlay.FloatingContent.Style.PrimaryFamily() != "Georgia" {
		t.Fatalf("content family = %q, want Georgia", h.overlay.FloatingContent.Style.PrimaryFamily())
	}
}

func TestEscapePreservesPinned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.pin(ctx, coalesce.Point{X: 200, Y: 200}, "p1", "Hello", "")
	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")

	h.c.EscapePressed(ctx)

	if h.c.Active() || h.overlay.FloatingVisible {
		t.Fatal("escape must deactivate and hide the floating tooltip")
	}
	if len(h.overlay.Pins) != 1 || len(h.c.Pins()) != 1 {
		t.Fatal("escape must preserve pinned tooltips")
	}
	if len(*h.signals) != 1 || (*h.signals)[0].Action != host.ActionDeactivate {
		t.Fatalf("signals = %+v, want one deactivation", *h.signals)
	}

	// Escape while already inactive emits nothing.
	h.c.EscapePressed(ctx)
	if len(*h.signals) != 1 {
		t.Fatalf("second escape emitted %d signals", len(*h.signals)-1)
	}
}

func TestSelectionPinning(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.c.SelectionMade(coalesce.Point{X: 200, Y: 200}, "p1", "Hello world", "<b>Hello world</b>")
	if h.c.SelectionC() == nil {
		t.Fatal("selection did not arm the debounce timer")
	}
	h.c.OnSelectionSettled(ctx)
	if h.c.SelectionC() != nil {
		t.Fatal("settled selection left its timer channel armed")
	}

	pins := h.c.Pins()
	if len(pins) != 1 {
		t.Fatalf("pins = %d, want 1", len(pins))
	}
	pin := pins[0]
	if pin.Snippet.Text != "Hello world" {
		t.Fatalf("snippet text = %q", pin.Snippet.Text)
	}
	if pin.Content.Style == nil || pin.Content.Style.PrimaryFamily() != "Arial" {
		t.Fatalf("pin content = %+v, want Arial style", pin.Content)
	}
	if pin.Grid != (GridKey{Col: 20, Row: 20}) {
		t.Fatalf("grid = %+v", pin.Grid)
	}

	// Same grid bucket: suppressed, even from a slightly different point.
	h.pin(ctx, coalesce.Point{X: 202, Y: 198}, "p1", "Hello again", "")
	if len(h.c.Pins()) != 1 {
		t.Fatal("second pin in an occupied bucket was not suppressed")
	}

	// A different bucket pins normally.
	h.pin(ctx, coalesce.Point{X: 600, Y: 500}, "p2", "Other text", "")
	if len(h.c.Pins()) != 2 {
		t.Fatal("pin in a free bucket was suppressed")
	}
}

func TestClosePinnedKeepsBucketOccupied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	pos := coalesce.Point{X: 200, Y: 200}
	h.pin(ctx, pos, "p1", "Hello", "")
	id := h.c.Pins()[0].ID

	if !h.c.ClosePinned(ctx, id) {
		t.Fatal("ClosePinned returned false for a live pin")
	}
	if len(h.c.Pins()) != 0 || len(h.overlay.Pins) != 0 {
		t.Fatal("closed pin still present")
	}
	if h.c.ClosePinned(ctx, id) {
		t.Fatal("ClosePinned returned true for a dead pin")
	}

	// The bucket stays burned for the session.
	h.pin(ctx, pos, "p1", "Hello once more", "")
	if len(h.c.Pins()) != 0 {
		t.Fatal("closed pin's bucket accepted a new pin")
	}
}

func TestSelectionEdgeCases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// Inactive: ignored entirely.
	h.c.SelectionMade(coalesce.Point{X: 200, Y: 200}, "p1", "Hello", "")
	if h.c.SelectionC() != nil {
		t.Fatal("inactive controller armed a selection timer")
	}

	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	// Empty text: no pin.
	h.pin(ctx, coalesce.Point{X: 200, Y: 200}, "p1", "", "")
	if len(h.c.Pins()) != 0 {
		t.Fatal("empty selection produced a pin")
	}

	// Dead anchor ref: falls back to the floating content, still pins.
	h.moveFrame(ctx, coalesce.Point{X: 300, Y: 400}, "p1")
	h.pin(ctx, coalesce.Point{X: 400, Y: 300}, "gone", "Some text", "")
	pins := h.c.Pins()
	if len(pins) != 1 || pins[0].Content.Style.PrimaryFamily() != "Arial" {
		t.Fatalf("pins = %+v, want fallback to tracked content", pins)
	}
}

func TestCopyConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	h.c.CopyValue(ctx, "#ff0000")
	if got := *h.copied; len(got) != 1 || got[0] != "#ff0000" {
		t.Fatalf("copied = %v", *h.copied)
	}
	if h.c.Confirmed() != "#ff0000" || h.c.RevertC() == nil {
		t.Fatal("successful copy did not arm the confirmation state")
	}

	h.c.OnCopyRevert()
	if h.c.Confirmed() != "" || h.c.RevertC() != nil {
		t.Fatal("revert did not clear the confirmation state")
	}
}

func TestCopyFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	c, err := NewController(Config{
		Surface: &fakeSurface{vp: inspect.Viewport{Width: 100, Height: 100}},
		Overlay: NewMemoryOverlay(),
		Clipboard: host.ClipboardFunc(func(context.Context, string) error {
			return errors.New("denied")
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	c.CopyValue(ctx, "#ff0000")
	if c.Confirmed() != "" || c.RevertC() != nil {
		t.Fatal("failed copy must not enter the confirmation state")
	}
}

func TestSearchFamily(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if err := h.c.SearchFamily(ctx, "Arial, sans-serif"); err != nil {
		t.Fatal(err)
	}
	sigs := *h.signals
	if len(sigs) != 1 {
		t.Fatalf("signals = %d, want 1", len(sigs))
	}
	if sigs[0].Action != host.ActionSearch || sigs[0].FontFamily != "Arial, sans-serif" {
		t.Fatalf("signal = %+v", sigs[0])
	}

	if err := h.c.SearchFamily(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if len(*h.signals) != 1 {
		t.Fatal("empty family emitted a signal")
	}
}
