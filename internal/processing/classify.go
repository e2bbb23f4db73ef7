package processing

import (
	"strings"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// DefaultCategory is assigned when no configured category matches.
const DefaultCategory = "기타"

// Classifier maps item text to one configured category by keyword scoring.
type Classifier struct {
	categories []models.Category
	fallback   string
}

// NewClassifier keeps the categories in the given order; order breaks ties.
func NewClassifier(categories []models.Category, fallback string) *Classifier {
	if fallback == "" {
		fallback = DefaultCategory
	}
	cats := make([]models.Category, len(categories))
	for i, c := range categories {
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		cats[i] = models.Category{Name: c.Name, Keywords: kws, Priority: c.Priority}
	}
	return &Classifier{categories: cats, fallback: fallback}
}

// Fallback returns the category used when nothing matches.
func (c *Classifier) Fallback() string {
	return c.fallback
}

// Classify scores each category as priority times the number of its keywords
// present in the text. The strictly highest score wins.
func (c *Classifier) Classify(title, summary string) string {
	text := matchText(title, summary)

	best := c.fallback
	bestScore := 0
	for _, cat := range c.categories {
		score := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				score += cat.Priority
			}
		}
		if score > bestScore {
			bestScore = score
			best = cat.Name
		}
	}
	return best
}
