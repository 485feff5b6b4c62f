// Package inspect decides whether a DOM node qualifies as inspectable text
// and samples its resolved typography and foreground color.
//
// The package never touches a browser directly. It reads nodes through the
// narrow Surface capability interface, so the same classifier and sampler
// run against a live page, a parsed static document, or a test fake.
package inspect

import "context"

// Ref is an opaque node handle. Its concrete type is owned by the Surface
// that produced it (an XPath string for the live-page surface, an
// *html.Node for the static surface). Refs are transient: page content can
// mutate between events, so a Ref is revalidated on every use and never
// cached across event boundaries.
type Ref any

// Style is the resolved (post-cascade, post-layout) visual style of a node.
// Color is the canonical rgb()/rgba() string produced by the style engine.
type Style struct {
	Display       string
	Visibility    string
	Opacity       float64
	FontFamily    string
	FontSize      string
	FontWeight    string
	LineHeight    string
	LetterSpacing string
	TextAlign     string
	Color         string
}

// Rect is a rendered bounding box in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Viewport describes the visible page area plus the document's default
// font family, used to detect containers with an author-set font.
type Viewport struct {
	Width             float64
	Height            float64
	DefaultFontFamily string
}

// Surface is the DOM read capability the classifier and sampler depend on.
// Implementations must treat unknown or detached refs as absent rather
// than failing: a nil NodeInfo with a nil error means "not an element".
type Surface interface {
	// Describe resolves a ref into a point-in-time NodeInfo, or nil when
	// the ref is not an element node.
	Describe(ctx context.Context, ref Ref) (*NodeInfo, error)
	// Viewport returns the current viewport rectangle.
	Viewport(ctx context.Context) (Viewport, error)
}

// NodeInfo is a point-in-time record of one node: identity, resolved
// style, geometry, and text. DirectText is the concatenation of trimmed
// immediate text-node children only, not descendant elements' text.
type NodeInfo struct {
	Tag        string
	Style      Style
	Rect       Rect
	Text       string
	DirectText string
}
