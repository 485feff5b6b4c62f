package browser

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"

	"github.com/typelens/typelens/session"
)

//go:embed tracker.js
var trackerJS string

const bindingName = "__typelens_binding"

// Tracker injects the tracker script into a tab and forwards its batched
// page events to a session. It implements session.EventSource.
type Tracker struct {
	tab    *Tab
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewTracker wraps a tab.
func NewTracker(tab *Tab, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{tab: tab, logger: logger}
}

// Start registers the Runtime binding, subscribes to binding calls, and
// injects the tracker script.
func (t *Tracker) Start(ctx context.Context, ch chan<- session.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(t.tab.Page); err != nil {
		t.logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	go t.listen(ctx, ch)

	if _, err := t.tab.Page.Eval(trackerJS); err != nil {
		cancel()
		return fmt.Errorf("browser: inject tracker: %w", err)
	}

	t.logger.Debug("browser: tracker injected", "url", t.tab.PageURL)
	return nil
}

// Stop detaches the binding listener. The injected script stays on the
// page but its flushes land on a dead binding.
func (t *Tracker) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// listen receives tracker batches via Runtime.bindingCalled. The channel
// send never blocks the CDP event goroutine: when the session loop falls
// behind, pointer traffic is dropped, not queued.
func (t *Tracker) listen(ctx context.Context, ch chan<- session.Event) {
	t.tab.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		events, err := session.DecodeEvents([]byte(e.Payload))
		if err != nil {
			t.logger.Warn("browser: tracker payload", "error", err)
			return
		}
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			default:
				t.logger.Debug("browser: event dropped", "kind", ev.Kind)
			}
		}
	})()
}
