package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Router fans out signals to all configured notifiers. One failing
// backend does not block the others: errors are logged and the first
// encountered is returned.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out router delivering to all notifiers.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifiers: notifiers, logger: logger}
}

// Notify implements Notifier.
func (r *Router) Notify(ctx context.Context, sig Signal) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, sig); err != nil {
			r.logger.Warn("host: notify failed", "action", sig.Action, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes all notifiers.
func (r *Router) Close() error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stdout writes signals as JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout notifier. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

// Notify implements Notifier.
func (s *Stdout) Notify(_ context.Context, sig Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(sig)
}

// Close implements Notifier.
func (s *Stdout) Close() error { return nil }

// Webhook POSTs signals as JSON to a URL with retry and exponential
// backoff.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// WebhookOption configures a Webhook notifier.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook notifier targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, sig Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("host: webhook marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("host: webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("host: webhook failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("host: webhook status %d", resp.StatusCode)
		w.logger.Warn("host: webhook bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("host: webhook retries exhausted: %w", lastErr)
}

// Close implements Notifier.
func (w *Webhook) Close() error { return nil }

// Callback delivers signals via an in-process function call, the local
// path when the host integration lives in the same binary.
type Callback struct {
	fn func(ctx context.Context, sig Signal) error
}

// NewCallback creates a Callback notifier. fn may be nil.
func NewCallback(fn func(ctx context.Context, sig Signal) error) *Callback {
	return &Callback{fn: fn}
}

// Notify implements Notifier.
func (c *Callback) Notify(ctx context.Context, sig Signal) error {
	if c.fn != nil {
		return c.fn(ctx, sig)
	}
	return nil
}

// Close implements Notifier.
func (c *Callback) Close() error { return nil }
