package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/typelens/typelens/inspect"
)

// Surface implements inspect.Surface against a live tab. Refs are XPath
// strings produced by the injected tracker; every Describe resolves the
// path from scratch, so a node removed since the event simply reads as
// absent.
type Surface struct {
	tab *Tab
}

// NewSurface wraps a tab.
func NewSurface(tab *Tab) *Surface {
	return &Surface{tab: tab}
}

// describeJS resolves an XPath and reads identity, computed style,
// geometry, and text in a single page round-trip.
const describeJS = `(xpath) => {
	const result = document.evaluate(xpath, document, null,
		XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	const node = result.singleNodeValue;
	if (!node || node.nodeType !== Node.ELEMENT_NODE) {
		return "";
	}
	const cs = getComputedStyle(node);
	const rect = node.getBoundingClientRect();
	let direct = "";
	for (const child of node.childNodes) {
		if (child.nodeType === Node.TEXT_NODE) {
			direct += child.textContent.trim();
		}
	}
	return JSON.stringify({
		tag: node.tagName.toLowerCase(),
		display: cs.display,
		visibility: cs.visibility,
		opacity: parseFloat(cs.opacity),
		font_family: cs.fontFamily,
		font_size: cs.fontSize,
		font_weight: cs.fontWeight,
		line_height: cs.lineHeight,
		letter_spacing: cs.letterSpacing,
		text_align: cs.textAlign,
		color: cs.color,
		x: rect.x,
		y: rect.y,
		width: rect.width,
		height: rect.height,
		text: (node.textContent || "").trim(),
		direct_text: direct,
	});
}`

const viewportJS = `() => JSON.stringify({
	width: window.innerWidth,
	height: window.innerHeight,
	default_font_family: getComputedStyle(document.documentElement).fontFamily,
})`

type nodeDescription struct {
	Tag           string  `json:"tag"`
	Display       string  `json:"display"`
	Visibility    string  `json:"visibility"`
	Opacity       float64 `json:"opacity"`
	FontFamily    string  `json:"font_family"`
	FontSize      string  `json:"font_size"`
	FontWeight    string  `json:"font_weight"`
	LineHeight    string  `json:"line_height"`
	LetterSpacing string  `json:"letter_spacing"`
	TextAlign     string  `json:"text_align"`
	Color         string  `json:"color"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Text          string  `json:"text"`
	DirectText    string  `json:"direct_text"`
}

// Describe implements inspect.Surface.
func (s *Surface) Describe(ctx context.Context, ref inspect.Ref) (*inspect.NodeInfo, error) {
	xpath, ok := ref.(string)
	if !ok || xpath == "" {
		return nil, nil
	}

	res, err := s.tab.Page.Context(ctx).Eval(describeJS, xpath)
	if err != nil {
		return nil, fmt.Errorf("browser: describe node: %w", err)
	}

	raw := res.Value.Str()
	if raw == "" {
		return nil, nil
	}

	var d nodeDescription
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("browser: parse node description: %w", err)
	}

	return &inspect.NodeInfo{
		Tag: d.Tag,
		Style: inspect.Style{
			Display:       d.Display,
			Visibility:    d.Visibility,
			Opacity:       d.Opacity,
			FontFamily:    d.FontFamily,
			FontSize:      d.FontSize,
			FontWeight:    d.FontWeight,
			LineHeight:    d.LineHeight,
			LetterSpacing: d.LetterSpacing,
			TextAlign:     d.TextAlign,
			Color:         d.Color,
		},
		Rect: inspect.Rect{
			X:      d.X,
			Y:      d.Y,
			Width:  d.Width,
			Height: d.Height,
		},
		Text:       d.Text,
		DirectText: d.DirectText,
	}, nil
}

// Viewport implements inspect.Surface.
func (s *Surface) Viewport(ctx context.Context) (inspect.Viewport, error) {
	res, err := s.tab.Page.Context(ctx).Eval(viewportJS)
	if err != nil {
		return inspect.Viewport{}, fmt.Errorf("browser: read viewport: %w", err)
	}

	var v struct {
		Width             float64 `json:"width"`
		Height            float64 `json:"height"`
		DefaultFontFamily string  `json:"default_font_family"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &v); err != nil {
		return inspect.Viewport{}, fmt.Errorf("browser: parse viewport: %w", err)
	}

	return inspect.Viewport{
		Width:             v.Width,
		Height:            v.Height,
		DefaultFontFamily: v.DefaultFontFamily,
	}, nil
}
