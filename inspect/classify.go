package inspect

import (
	"context"
	"regexp"
	"strings"
)

// Classification thresholds. Fixed constants: these gate every accept path
// and must not drift between call sites.
const (
	// MinBoxPx rejects boxes thinner than this in either axis.
	MinBoxPx = 10.0
	// MinDirectText is the minimum direct text length for allowlisted tags.
	MinDirectText = 3
	// ContainerRichText accepts a generic container on direct text alone.
	ContainerRichText = 20
	// ContainerStyledText accepts a styled generic container.
	ContainerStyledText = 5
)

// deniedTags are never inspectable: document structure, metadata, media,
// void elements, form inputs, list and sectioning containers.
var deniedTags = tagSet(
	"html", "head", "body", "title", "meta", "link", "base", "script",
	"style", "noscript", "template", "slot",
	"img", "picture", "svg", "canvas", "video", "audio", "source", "track",
	"iframe", "embed", "object",
	"br", "hr", "wbr", "area", "col", "param",
	"input", "select", "option", "optgroup", "form", "fieldset", "datalist",
	"ul", "ol", "dl", "table", "thead", "tbody", "tfoot", "tr", "colgroup",
	"nav", "header", "footer", "main", "aside", "section", "article",
	"figure", "details", "dialog", "menu",
)

// blockTextTags carry their own text by design: paragraphs, headings,
// quotes, code.
var blockTextTags = tagSet(
	"p", "h1", "h2", "h3", "h4", "h5", "h6",
	"blockquote", "pre", "code", "figcaption", "dt", "dd", "summary",
)

// inlineTextTags are inline wrappers around text runs.
var inlineTextTags = tagSet(
	"span", "a", "em", "strong", "b", "i", "u", "s", "small", "mark",
	"abbr", "cite", "q", "label", "time", "sub", "sup", "kbd", "samp", "var",
)

// cellTags are table cells, list items, and interactive text controls.
var cellTags = tagSet("td", "th", "caption", "li", "button", "textarea", "legend")

func tagSet(tags ...string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

// punctuation stripped before the meaningful-content test. ASCII
// punctuation plus whitespace; everything else counts as content.
var punctPattern = regexp.MustCompile("[\\s!-/:-@\\[-`{-~]+")

// meaningfulRun matches three consecutive letters, digits, or CJK
// ideographs.
var meaningfulRun = regexp.MustCompile(`[0-9A-Za-z\p{Han}]{3}`)

// Classify reports whether a node qualifies as inspectable text. The
// decision procedure is ordered and fail-fast: cheap visibility and
// geometry checks run before the text-content heuristics. Deterministic
// for a given (tag, style, geometry, text) tuple.
func Classify(info *NodeInfo, vp Viewport) bool {
	if info == nil {
		return false
	}
	tag := strings.ToLower(info.Tag)
	if tag == "" || deniedTags[tag] {
		return false
	}

	// Invisible nodes are never inspectable.
	st := info.Style
	if st.Display == "none" || st.Visibility == "hidden" {
		return false
	}
	if st.Opacity < 0.05 { // rounds to zero: effectively invisible
		return false
	}

	text := strings.TrimSpace(info.Text)
	if text == "" {
		return false
	}

	// Geometry: minimum rendered size, and at least partial viewport
	// intersection.
	r := info.Rect
	if r.Width < MinBoxPx || r.Height < MinBoxPx {
		return false
	}
	if r.X+r.Width <= 0 || r.Y+r.Height <= 0 || r.X >= vp.Width || r.Y >= vp.Height {
		return false
	}

	if !hasMeaningfulContent(text) {
		return false
	}

	direct := len(strings.TrimSpace(info.DirectText))

	if blockTextTags[tag] && direct >= MinDirectText {
		return true
	}
	if inlineTextTags[tag] && direct >= MinDirectText {
		return true
	}
	if cellTags[tag] && direct >= MinDirectText {
		return true
	}

	// Generic containers are the main source of both false positives
	// (layout wrappers with no direct text) and false negatives (text set
	// directly on a div). Accept only rich direct text, or an explicitly
	// styled container with a modest amount.
	if tag == "div" {
		if direct >= ContainerRichText {
			return true
		}
		if direct >= ContainerStyledText &&
			hasCustomFont(st.FontFamily, vp.DefaultFontFamily) &&
			hasExplicitAlign(st.TextAlign) {
			return true
		}
	}

	return false
}

// hasMeaningfulContent strips punctuation and requires a run of three
// letters, digits, or CJK ideographs.
func hasMeaningfulContent(text string) bool {
	stripped := punctPattern.ReplaceAllString(text, "")
	return meaningfulRun.MatchString(stripped)
}

// hasCustomFont reports whether a computed font-family differs from the
// document default.
func hasCustomFont(family, documentDefault string) bool {
	f := normalizeFamily(family)
	if f == "" {
		return false
	}
	if d := normalizeFamily(documentDefault); d != "" && f == d {
		return false
	}
	switch f {
	case "serif", "sans-serif", "monospace", "system-ui":
		return false
	}
	return true
}

// hasExplicitAlign reports whether text-align was set by the author.
// "start" is the browser default.
func hasExplicitAlign(align string) bool {
	return align != "" && align != "start"
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(family), `"'`))
}

// Inspectable describes ref through the surface and classifies it.
// Non-element refs and describe failures both reject.
func Inspectable(ctx context.Context, s Surface, ref Ref) bool {
	info, err := s.Describe(ctx, ref)
	if err != nil || info == nil {
		return false
	}
	vp, err := s.Viewport(ctx)
	if err != nil {
		return false
	}
	return Classify(info, vp)
}
