package processing

import (
	"strings"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

const (
	// SummaryMaxLen caps the auto summary before the ellipsis.
	SummaryMaxLen = 150
	// summaryMinCut is the earliest index a word-boundary cut may land on.
	summaryMinCut = 100
	// Ellipsis marks a truncated summary.
	Ellipsis = "..."
	// SourceExcerptLen caps the raw excerpt kept next to the summary.
	SourceExcerptLen = 100

	maxSanitizePasses = 3
)

// Sanitizer turns markup into plain text with tags and entities removed.
type Sanitizer interface {
	Sanitize(markup string) string
}

var angleBrackets = strings.NewReplacer("<", " ", ">", " ")

// Summarizer derives the display summary from raw source text.
type Summarizer struct {
	sanitizer Sanitizer
}

func NewSummarizer(s Sanitizer) *Summarizer {
	return &Summarizer{sanitizer: s}
}

// Summarize builds the summary pair for an item. Auto is never empty when
// title is not.
func (s *Summarizer) Summarize(title, raw string) models.Summary {
	auto := truncateSummary(s.plainText(raw))
	if auto == "" {
		auto = title
	}
	return models.Summary{
		Auto:   auto,
		Source: TruncateRunes(strings.TrimSpace(raw), SourceExcerptLen),
	}
}

// plainText strips markup until the text stops changing, so escaped markup
// such as "&lt;b&gt;" is removed too.
func (s *Summarizer) plainText(raw string) string {
	text := raw
	for range maxSanitizePasses {
		out := s.sanitizer.Sanitize(text)
		if out == text {
			break
		}
		text = out
	}
	return CollapseWhitespace(angleBrackets.Replace(text))
}

func truncateSummary(text string) string {
	rs := []rune(text)
	if len(rs) <= SummaryMaxLen {
		return text
	}

	cut := rs[:SummaryMaxLen]
	for i := len(cut) - 1; i >= summaryMinCut; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRight(string(cut), " ") + Ellipsis
}
