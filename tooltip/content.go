// Package tooltip owns the inspection UI state: the single floating
// tooltip that follows the pointer and the unbounded collection of pinned
// tooltips created from text selections. The Controller is the state
// machine; rendering goes through the Overlay capability so the same
// controller drives a live page or a test recorder.
package tooltip

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/typelens/typelens/inspect"
)

// Content is what one tooltip displays: a typography snapshot plus an
// optional color section. Color is nil when the node's foreground color
// had no parseable RGB triple; the tooltip then renders without it.
type Content struct {
	Style *inspect.StyleSnapshot `json:"style,omitempty"`
	Color *inspect.ColorSnapshot `json:"color,omitempty"`
}

// Empty reports whether there is nothing to display.
func (c Content) Empty() bool {
	return c.Style == nil && c.Color == nil
}

// Fingerprint returns a digest of the displayed values, used by the
// content throttle to skip renders that would not change anything.
func (c Content) Fingerprint() string {
	var sb strings.Builder
	if c.Style != nil {
		sb.WriteString(c.Style.FontFamily)
		sb.WriteByte('|')
		sb.WriteString(c.Style.FontSize)
		sb.WriteByte('|')
		sb.WriteString(c.Style.FontWeight)
		sb.WriteByte('|')
		sb.WriteString(c.Style.LineHeight)
		sb.WriteByte('|')
		sb.WriteString(c.Style.LetterSpacing)
		sb.WriteByte('|')
		sb.WriteString(c.Style.TextAlign)
	}
	sb.WriteByte('\n')
	if c.Color != nil {
		sb.WriteString(c.Color.Hex)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Field is one displayed label/value pair. Every field is a copy target;
// the font-family field is additionally the search affordance.
type Field struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	Searchable bool   `json:"searchable,omitempty"`
}

// Fields flattens the content into display order.
func (c Content) Fields() []Field {
	var out []Field
	if c.Style != nil {
		out = append(out,
			Field{Label: "family", Value: c.Style.FontFamily, Searchable: true},
			Field{Label: "size", Value: c.Style.FontSize},
			Field{Label: "weight", Value: c.Style.FontWeight},
			Field{Label: "line height", Value: c.Style.LineHeight},
			Field{Label: "letter spacing", Value: c.Style.LetterSpacing},
			Field{Label: "align", Value: c.Style.TextAlign},
		)
	}
	if c.Color != nil {
		out = append(out,
			Field{Label: "hex", Value: c.Color.Hex},
			Field{Label: "lch", Value: c.Color.LCH.String()},
			Field{Label: "hcl", Value: c.Color.HCL.String()},
		)
	}
	return out
}
