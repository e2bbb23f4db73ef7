package processing

import (
	"slices"
	"strings"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// MaxTags caps the tag list, category included.
const MaxTags = 5

// DefaultTagRules is used when no tag config file is present.
func DefaultTagRules() []models.TagRule {
	return []models.TagRule{
		{Name: "한국은행", Keywords: []string{"한국은행", "BOK"}},
		{Name: "금융위", Keywords: []string{"금융위원회", "금융위"}},
		{Name: "기재부", Keywords: []string{"기획재정부", "기재부"}},
		{Name: "연준", Keywords: []string{"연준", "FED", "Federal Reserve"}},
		{Name: "금리", Keywords: []string{"금리", "기준금리"}},
		{Name: "인플레이션", Keywords: []string{"인플레이션", "CPI", "물가"}},
		{Name: "환율", Keywords: []string{"환율", "달러", "원화"}},
	}
}

// TagExtractor derives topical tags from configured trigger keywords.
type TagExtractor struct {
	rules []models.TagRule
}

func NewTagExtractor(rules []models.TagRule) *TagExtractor {
	lowered := make([]models.TagRule, len(rules))
	for i, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		lowered[i] = models.TagRule{Name: r.Name, Keywords: kws}
	}
	return &TagExtractor{rules: lowered}
}

// Extract returns the category followed by every matching rule in order,
// without duplicates, capped at MaxTags.
func (e *TagExtractor) Extract(title, summary, category string) []string {
	tags := []string{category}
	text := matchText(title, summary)

	for _, r := range e.rules {
		if len(tags) == MaxTags {
			break
		}
		if slices.Contains(tags, r.Name) {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, r.Name)
				break
			}
		}
	}
	return tags
}
