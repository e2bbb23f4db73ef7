// Package sanitize turns feed markup into plain text.
package sanitize

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTML strips tags and decodes entities using an HTML5 parser.
type HTML struct{}

func New() *HTML {
	return &HTML{}
}

// Sanitize returns the visible text of markup. Script and style bodies are
// dropped and text nodes are joined with single spaces.
func (h *HTML) Sanitize(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return markup
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(html.UnescapeString(markup)), " ")
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	collectText(doc.Selection, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
			b.WriteByte(' ')
			return
		}
		collectText(s, b)
	})
}
