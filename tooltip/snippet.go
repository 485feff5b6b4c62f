package tooltip

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// Snippet is the selected fragment captured into a pinned tooltip. The
// raw selection HTML comes straight from the page, so it is sanitized
// before it is stored or re-rendered anywhere.
type Snippet struct {
	Text     string `json:"text"`
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

var snippetTools = struct {
	once   sync.Once
	policy *bluemonday.Policy
	md     *converter.Converter
}{}

func snippetPolicy() (*bluemonday.Policy, *converter.Converter) {
	snippetTools.once.Do(func() {
		snippetTools.policy = bluemonday.UGCPolicy()
		snippetTools.md = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
	})
	return snippetTools.policy, snippetTools.md
}

// CaptureSnippet sanitizes a selection fragment and derives its Markdown
// rendering. Markdown conversion failures fall back to the plain text;
// capture never fails.
func CaptureSnippet(text, rawHTML string) Snippet {
	s := Snippet{Text: strings.TrimSpace(text)}
	if strings.TrimSpace(rawHTML) == "" {
		s.Markdown = s.Text
		return s
	}

	policy, md := snippetPolicy()
	s.HTML = strings.TrimSpace(policy.Sanitize(rawHTML))

	out, err := md.ConvertString(s.HTML)
	if err != nil || strings.TrimSpace(out) == "" {
		s.Markdown = s.Text
		return s
	}
	s.Markdown = strings.TrimSpace(out)
	return s
}
