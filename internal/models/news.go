package models

// SourceRef identifies where a feed item came from.
type SourceRef struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// Summary holds the derived display summary and the raw source excerpt.
type Summary struct {
	Auto   string `json:"auto"`
	Source string `json:"source"`
}

// FeedItem is the canonical item stored in the feed snapshot.
// Timestamps are kept as RFC 3339 strings so that a malformed value in a
// prior snapshot only affects that item, not the whole load.
type FeedItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Source         SourceRef `json:"source"`
	PublishedAt    string    `json:"published_at"`
	CollectedAt    string    `json:"collected_at"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	Country        string    `json:"country"`
	Summary        Summary   `json:"summary"`
	RelevanceScore int       `json:"relevance_score"`
	IsTrending     bool      `json:"is_trending"`
}

// FeedSnapshot is the full feed written on every run.
type FeedSnapshot struct {
	GeneratedAt string     `json:"generated_at"`
	Version     string     `json:"version"`
	TotalItems  int        `json:"total_items"`
	Items       []FeedItem `json:"items"`
}

// Period bounds the trending window.
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TrendingIndex lists the ids of the most relevant recent items.
type TrendingIndex struct {
	GeneratedAt string   `json:"generated_at"`
	Period      Period   `json:"period"`
	TopItems    []string `json:"top_items"`
}
