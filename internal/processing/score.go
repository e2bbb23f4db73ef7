package processing

import (
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

const (
	baseScore     = 50
	officialBonus = 20
	priorityBonus = 15
	freshBonus    = 20
	recentBonus   = 10
	maxScore      = 100
	minScore      = 0

	freshWindow  = 6 * time.Hour
	recentWindow = 12 * time.Hour
)

// DefaultPriorityCategories are boosted by the scorer.
var DefaultPriorityCategories = []string{"금리", "거시경제", "정책"}

// Scorer computes relevance from trust, category and recency.
type Scorer struct {
	priority map[string]struct{}
}

func NewScorer(priorityCategories []string) *Scorer {
	p := make(map[string]struct{}, len(priorityCategories))
	for _, c := range priorityCategories {
		p[c] = struct{}{}
	}
	return &Scorer{priority: p}
}

// Score returns a value in [0,100]. An unparseable publish time earns no
// recency bonus.
func (s *Scorer) Score(trust, category string, published Timestamp, now time.Time) int {
	score := baseScore

	if trust == models.TrustOfficial {
		score += officialBonus
	}
	if _, ok := s.priority[category]; ok {
		score += priorityBonus
	}

	if published.OK {
		switch elapsed := now.Sub(published.Time); {
		case elapsed < freshWindow:
			score += freshBonus
		case elapsed < recentWindow:
			score += recentBonus
		}
	}

	return clamp(score, minScore, maxScore)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
