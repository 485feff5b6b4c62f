package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventKind discriminates the page events the tracker forwards.
type EventKind string

const (
	KindPointerMove  EventKind = "pointermove"
	KindPointerLeave EventKind = "pointerleave"
	KindKeyDown      EventKind = "keydown"
	KindSelection    EventKind = "selection"
	KindPinClose     EventKind = "pinclose"
	KindCopy         EventKind = "copy"
	KindSearch       EventKind = "search"
)

// Event is one page event decoded from the tracker binding payload.
// XPath identifies the node the event targeted; it is resolved back to
// a live node on every use, never cached.
type Event struct {
	Kind  EventKind `json:"kind"`
	X     float64   `json:"x,omitempty"`
	Y     float64   `json:"y,omitempty"`
	XPath string    `json:"xpath,omitempty"`
	Key   string    `json:"key,omitempty"`
	Text  string    `json:"text,omitempty"`
	HTML  string    `json:"html,omitempty"`
	PinID string    `json:"pin_id,omitempty"`
	Value string    `json:"value,omitempty"`
}

// knownKinds is the accepted wire vocabulary. Anything else in a batch
// is dropped without failing the batch.
var knownKinds = map[EventKind]bool{
	KindPointerMove:  true,
	KindPointerLeave: true,
	KindKeyDown:      true,
	KindSelection:    true,
	KindPinClose:     true,
	KindCopy:         true,
	KindSearch:       true,
}

// DecodeEvents parses a tracker binding payload: a JSON array of events.
// Unknown kinds are skipped so a newer tracker script does not break an
// older daemon.
func DecodeEvents(payload []byte) ([]Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("session: parse event batch: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal(r, &ev); err != nil {
			continue
		}
		if !knownKinds[ev.Kind] {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventSource feeds page events into a session. The browser tracker is
// the production implementation; tests push events directly instead.
type EventSource interface {
	// Start begins forwarding events onto ch until ctx is cancelled.
	Start(ctx context.Context, ch chan<- Event) error
	// Stop detaches from the page and releases tracker resources.
	Stop() error
}
