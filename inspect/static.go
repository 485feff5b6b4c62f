package inspect

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StaticSurface implements Surface over a parsed HTML document with no
// layout engine. Style is approximated from inline style attributes with
// inheritance of the inheritable properties; geometry is synthetic (every
// rendered node gets a nominal in-viewport box), so the geometric gates of
// the classifier pass and the text heuristics decide. Refs are *html.Node.
//
// This is the headless path: unit tests and the offline audit mode run the
// exact classifier and sampler used against a live page.
type StaticSurface struct {
	doc    *html.Node
	vp     Viewport
	styles map[*html.Node]Style
}

// StaticOption configures a StaticSurface.
type StaticOption func(*StaticSurface)

// WithViewport overrides the synthetic viewport (default 1280x800).
func WithViewport(w, h float64) StaticOption {
	return func(s *StaticSurface) {
		s.vp.Width = w
		s.vp.Height = h
	}
}

// ParseStatic reads and parses an HTML document into a StaticSurface.
func ParseStatic(r io.Reader, opts ...StaticOption) (*StaticSurface, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("inspect: parse html: %w", err)
	}
	s := &StaticSurface{
		doc:    doc,
		vp:     Viewport{Width: 1280, Height: 800, DefaultFontFamily: "serif"},
		styles: make(map[*html.Node]Style),
	}
	for _, o := range opts {
		o(s)
	}
	s.resolve(doc, defaultStyle())
	return s, nil
}

// Root returns the document node, the usual starting ref for walks.
func (s *StaticSurface) Root() *html.Node {
	return s.doc
}

// Elements returns all element nodes in document order, skipping script
// and style subtrees.
func (s *StaticSurface) Elements() []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.doc)
	return out
}

// Describe implements Surface. Non-element refs resolve to nil.
func (s *StaticSurface) Describe(_ context.Context, ref Ref) (*NodeInfo, error) {
	n, ok := ref.(*html.Node)
	if !ok || n == nil || n.Type != html.ElementNode {
		return nil, nil
	}

	st, ok := s.styles[n]
	if !ok {
		return nil, nil // not part of this document
	}

	text := collectText(n)
	info := &NodeInfo{
		Tag:        n.Data,
		Style:      st,
		Rect:       s.syntheticRect(st, text),
		Text:       text,
		DirectText: directText(n),
	}
	return info, nil
}

// Viewport implements Surface.
func (s *StaticSurface) Viewport(context.Context) (Viewport, error) {
	return s.vp, nil
}

// XPathOf returns a positional XPath for an element node, the same shape
// the live tracker computes ("/html[1]/body[1]/p[2]").
func XPathOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var parts []string
	for el := n; el != nil && el.Type == html.ElementNode; el = el.Parent {
		idx := 1
		for sib := el.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == el.Data {
				idx++
			}
		}
		parts = append(parts, el.Data+"["+strconv.Itoa(idx)+"]")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// resolve walks the tree computing an approximated resolved style per
// element: parent style for the inheritable properties, overridden by the
// element's inline style attribute.
func (s *StaticSurface) resolve(n *html.Node, inherited Style) {
	st := inherited
	if n.Type == html.ElementNode {
		// Non-inheritable properties reset on every element.
		st.Display = displayDefault(n.DataAtom)
		st.Visibility = inherited.Visibility
		st.Opacity = 1.0

		applyInline(&st, attrValue(n, "style"))
		s.styles[n] = st
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.resolve(c, st)
	}
}

// syntheticRect fabricates an in-viewport box for nodes that would render.
// Without layout the box cannot be real; it only needs to clear the
// minimum-size gate when the node has text, and fail it when it does not.
func (s *StaticSurface) syntheticRect(st Style, text string) Rect {
	if st.Display == "none" || strings.TrimSpace(text) == "" {
		return Rect{}
	}
	return Rect{X: 0, Y: 0, Width: s.vp.Width * 0.8, Height: 16}
}

// displayDefault gives the user-agent default display for a tag.
func displayDefault(a atom.Atom) string {
	switch a {
	case atom.Span, atom.A, atom.Em, atom.Strong, atom.B, atom.I, atom.U,
		atom.S, atom.Small, atom.Mark, atom.Abbr, atom.Cite, atom.Q,
		atom.Label, atom.Time, atom.Sub, atom.Sup, atom.Code, atom.Kbd,
		atom.Samp, atom.Var:
		return "inline"
	case atom.Head, atom.Title, atom.Meta, atom.Link, atom.Script,
		atom.Style, atom.Template:
		return "none"
	case atom.Td, atom.Th:
		return "table-cell"
	case atom.Li:
		return "list-item"
	default:
		return "block"
	}
}

func defaultStyle() Style {
	return Style{
		Display:    "block",
		Visibility: "visible",
		Opacity:    1.0,
		FontFamily: "serif",
		FontSize:   "16px",
		FontWeight: "400",
		LineHeight: "normal",
		TextAlign:  "start",
		Color:      "rgb(0, 0, 0)",
	}
}

// applyInline folds "prop: value; prop: value" declarations into st.
// Only the properties the inspector reads are recognised.
func applyInline(st *Style, decl string) {
	for _, part := range strings.Split(decl, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		val := strings.TrimSpace(v)
		switch key {
		case "display":
			st.Display = val
		case "visibility":
			st.Visibility = val
		case "opacity":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				st.Opacity = f
			}
		case "font-family":
			st.FontFamily = val
		case "font-size":
			st.FontSize = val
		case "font-weight":
			st.FontWeight = val
		case "line-height":
			st.LineHeight = val
		case "letter-spacing":
			st.LetterSpacing = val
		case "text-align":
			st.TextAlign = val
		case "color":
			st.Color = normalizeStaticColor(val)
		}
	}
}

// normalizeStaticColor maps the color syntaxes a static document is likely to
// carry onto the canonical rgb() form a style engine would produce. Hex
// and a handful of named colors; anything else passes through untouched.
func normalizeStaticColor(val string) string {
	v := strings.ToLower(strings.TrimSpace(val))
	if named, ok := namedColors[v]; ok {
		return named
	}
	if strings.HasPrefix(v, "#") && len(v) == 7 {
		r, err1 := strconv.ParseUint(v[1:3], 16, 8)
		g, err2 := strconv.ParseUint(v[3:5], 16, 8)
		b, err3 := strconv.ParseUint(v[5:7], 16, 8)
		if err1 == nil && err2 == nil && err3 == nil {
			return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
		}
	}
	return val
}

var namedColors = map[string]string{
	"black":   "rgb(0, 0, 0)",
	"white":   "rgb(255, 255, 255)",
	"red":     "rgb(255, 0, 0)",
	"green":   "rgb(0, 128, 0)",
	"blue":    "rgb(0, 0, 255)",
	"gray":    "rgb(128, 128, 128)",
	"grey":    "rgb(128, 128, 128)",
	"yellow":  "rgb(255, 255, 0)",
	"orange":  "rgb(255, 165, 0)",
	"purple":  "rgb(128, 0, 128)",
	"silver":  "rgb(192, 192, 192)",
	"maroon":  "rgb(128, 0, 0)",
	"navy":    "rgb(0, 0, 128)",
	"teal":    "rgb(0, 128, 128)",
	"fuchsia": "rgb(255, 0, 255)",
	"aqua":    "rgb(0, 255, 255)",
	"lime":    "rgb(0, 255, 0)",
}

// collectText gathers trimmed text from a node and all descendants,
// skipping script and style subtrees.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// directText concatenates trimmed immediate text-node children only.
func directText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		t := strings.TrimSpace(c.Data)
		if t != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(t)
		}
	}
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
