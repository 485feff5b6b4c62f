package host

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// SystemClipboard writes to the operating system clipboard. Used when the
// inspector runs against a locally displayed browser; headless sessions
// use the in-page clipboard instead.
type SystemClipboard struct{}

// Write implements Clipboard.
func (SystemClipboard) Write(_ context.Context, value string) error {
	if err := clipboard.WriteAll(value); err != nil {
		return fmt.Errorf("host: system clipboard: %w", err)
	}
	return nil
}
