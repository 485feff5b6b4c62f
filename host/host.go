// Package host defines the boundary between the inspection core and its
// host: the signals the core consumes and emits, the notifier backends
// that deliver outbound signals, and the clipboard capability.
package host

import "context"

// Actions carried across the host boundary. The wire vocabulary is fixed;
// integrations depend on these exact strings.
const (
	// ActionToggle flips the session active flag. Idempotent toggle, not
	// a set: the core tolerates receiving it in either state.
	ActionToggle = "toggleExtension"
	// ActionDeactivate acknowledges a user-initiated deactivation
	// (Escape). Emitted exactly once per deactivation.
	ActionDeactivate = "deactivateExtension"
	// ActionSearch asks the host to look up a font family externally.
	ActionSearch = "searchFontFamily"
)

// Signal is one message across the host boundary.
type Signal struct {
	Action     string `json:"action"`
	FontFamily string `json:"fontFamily,omitempty"`
}

// SearchSignal builds the outbound font lookup request. The value is the
// raw resolved font-family list: first entry for display, full list for
// the lookup.
func SearchSignal(fontFamily string) Signal {
	return Signal{Action: ActionSearch, FontFamily: fontFamily}
}

// DeactivateSignal builds the deactivation acknowledgement.
func DeactivateSignal() Signal {
	return Signal{Action: ActionDeactivate}
}

// Notifier delivers outbound signals to the host.
type Notifier interface {
	Notify(ctx context.Context, sig Signal) error
	Close() error
}

// Clipboard writes literal string values on behalf of tooltip copy
// affordances. Failures are recoverable: the core logs and carries on.
type Clipboard interface {
	Write(ctx context.Context, value string) error
}

// ClipboardFunc adapts a function to the Clipboard interface.
type ClipboardFunc func(ctx context.Context, value string) error

// Write implements Clipboard.
func (f ClipboardFunc) Write(ctx context.Context, value string) error {
	return f(ctx, value)
}
