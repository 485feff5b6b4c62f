package browser

import (
	"context"
	"fmt"
)

// PageClipboard writes through the page's own clipboard API, so the value
// lands where a user of the inspected page expects it. Requires a focused
// page; failures are the caller's to swallow.
type PageClipboard struct {
	tab *Tab
}

// NewPageClipboard wraps a tab.
func NewPageClipboard(tab *Tab) *PageClipboard {
	return &PageClipboard{tab: tab}
}

// Write implements host.Clipboard.
func (c *PageClipboard) Write(ctx context.Context, value string) error {
	_, err := c.tab.Page.Context(ctx).Eval(
		`(v) => navigator.clipboard.writeText(v)`, value)
	if err != nil {
		return fmt.Errorf("browser: clipboard write: %w", err)
	}
	return nil
}
