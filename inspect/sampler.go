package inspect

import (
	"context"
	"strings"

	"github.com/typelens/typelens/colorspace"
)

// StyleSnapshot is the typography of a node at a point in time, derived
// from resolved style. Immutable once taken; a new snapshot is taken when
// the tracked node changes or a refresh interval elapses.
type StyleSnapshot struct {
	FontFamily    string `json:"font_family"`
	FontSize      string `json:"font_size"`
	FontWeight    string `json:"font_weight"`
	LineHeight    string `json:"line_height"`
	LetterSpacing string `json:"letter_spacing"`
	TextAlign     string `json:"text_align"`
}

// PrimaryFamily returns the first entry of the font-family list, for
// display. The full list is what a search signal carries.
func (s StyleSnapshot) PrimaryFamily() string {
	family := s.FontFamily
	if i := strings.IndexByte(family, ','); i >= 0 {
		family = family[:i]
	}
	return strings.TrimSpace(family)
}

// ColorSnapshot is a sampled foreground color in the three encodings the
// tooltip shows.
type ColorSnapshot struct {
	RGB colorspace.RGB `json:"rgb"`
	Hex string         `json:"hex"`
	LCH colorspace.LCH `json:"lch"`
	HCL colorspace.HCL `json:"hcl"`
}

// Sample reads the typography of a node. Returns nil when ref does not
// resolve to an element node. Font-family values are stripped of quote
// characters.
func Sample(ctx context.Context, s Surface, ref Ref) (*StyleSnapshot, error) {
	info, err := s.Describe(ctx, ref)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return SnapshotOf(info), nil
}

// SnapshotOf builds a StyleSnapshot from an already-described node.
func SnapshotOf(info *NodeInfo) *StyleSnapshot {
	st := info.Style
	return &StyleSnapshot{
		FontFamily:    stripQuotes(st.FontFamily),
		FontSize:      st.FontSize,
		FontWeight:    st.FontWeight,
		LineHeight:    st.LineHeight,
		LetterSpacing: st.LetterSpacing,
		TextAlign:     st.TextAlign,
	}
}

// SampleColor resolves the node's foreground color to the three tooltip
// encodings. The style engine has already normalized arbitrary color
// syntaxes into a canonical rgb()/rgba() string; alpha is ignored. Returns
// nil when no RGB triple can be parsed; the tooltip then renders without
// a color section.
func SampleColor(ctx context.Context, s Surface, ref Ref) (*ColorSnapshot, error) {
	info, err := s.Describe(ctx, ref)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return ColorOf(info), nil
}

// ColorOf extracts the color snapshot from an already-described node, or
// nil when the color string has no parseable triple.
func ColorOf(info *NodeInfo) *ColorSnapshot {
	rgb, ok := colorspace.ParseCSSRGB(info.Style.Color)
	if !ok {
		return nil
	}
	return &ColorSnapshot{
		RGB: rgb,
		Hex: rgb.Hex(),
		LCH: rgb.LCH(),
		HCL: rgb.HCL(),
	}
}

func stripQuotes(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\'' {
			return -1
		}
		return r
	}, s)
}
