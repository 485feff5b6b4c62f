package tooltip

import (
	"context"

	"github.com/typelens/typelens/coalesce"
)

// Overlay is the rendering capability the controller drives. The live
// implementation injects tooltip elements into the page; the memory
// implementation records operations for tests. Implementations only touch
// the DOM they created; tooltip elements are the core's sole DOM writes.
type Overlay interface {
	// EnsureFloating creates the hidden floating tooltip if it does not
	// exist. Called once on activation.
	EnsureFloating(ctx context.Context) error
	// ShowFloating makes the floating tooltip visible at a position.
	ShowFloating(ctx context.Context, pos coalesce.Point) error
	// MoveFloating repositions the visible floating tooltip.
	MoveFloating(ctx context.Context, pos coalesce.Point) error
	// SetFloatingContent replaces the floating tooltip's rendered fields.
	SetFloatingContent(ctx context.Context, content Content) error
	// HideFloating hides the floating tooltip without destroying it.
	HideFloating(ctx context.Context) error
	// CreatePinned renders a new pinned tooltip.
	CreatePinned(ctx context.Context, pin Pinned) error
	// RemovePinned frees one pinned tooltip's DOM presence.
	RemovePinned(ctx context.Context, id string) error
	// Teardown destroys the floating tooltip and, when destroyPinned is
	// set, every pinned tooltip. Must be idempotent.
	Teardown(ctx context.Context, destroyPinned bool) error
}

// MemoryOverlay is the in-process Overlay used by tests and the audit
// mode: it holds the would-be UI state instead of rendering it.
type MemoryOverlay struct {
	FloatingExists  bool
	FloatingVisible bool
	FloatingPos     coalesce.Point
	FloatingContent Content
	Pins            map[string]Pinned

	// Ops is the ordered operation log, for asserting call sequences.
	Ops []string
}

// NewMemoryOverlay creates an empty recorder.
func NewMemoryOverlay() *MemoryOverlay {
	return &MemoryOverlay{Pins: make(map[string]Pinned)}
}

func (m *MemoryOverlay) op(name string) {
	m.Ops = append(m.Ops, name)
}

// EnsureFloating implements Overlay.
func (m *MemoryOverlay) EnsureFloating(context.Context) error {
	m.FloatingExists = true
	m.op("ensure")
	return nil
}

// ShowFloating implements Overlay.
func (m *MemoryOverlay) ShowFloating(_ context.Context, pos coalesce.Point) error {
	m.FloatingVisible = true
	m.FloatingPos = pos
	m.op("show")
	return nil
}

// MoveFloating implements Overlay.
func (m *MemoryOverlay) MoveFloating(_ context.Context, pos coalesce.Point) error {
	m.FloatingPos = pos
	m.op("move")
	return nil
}

// SetFloatingContent implements Overlay.
func (m *MemoryOverlay) SetFloatingContent(_ context.Context, content Content) error {
	m.FloatingContent = content
	m.op("content")
	return nil
}

// HideFloating implements Overlay.
func (m *MemoryOverlay) HideFloating(context.Context) error {
	m.FloatingVisible = false
	m.op("hide")
	return nil
}

// CreatePinned implements Overlay.
func (m *MemoryOverlay) CreatePinned(_ context.Context, pin Pinned) error {
	m.Pins[pin.ID] = pin
	m.op("pin")
	return nil
}

// RemovePinned implements Overlay.
func (m *MemoryOverlay) RemovePinned(_ context.Context, id string) error {
	delete(m.Pins, id)
	m.op("unpin")
	return nil
}

// Teardown implements Overlay.
func (m *MemoryOverlay) Teardown(_ context.Context, destroyPinned bool) error {
	m.FloatingExists = false
	m.FloatingVisible = false
	if destroyPinned {
		m.Pins = make(map[string]Pinned)
	}
	m.op("teardown")
	return nil
}
