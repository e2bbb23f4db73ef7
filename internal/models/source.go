package models

import "time"

// TrustOfficial marks sources operated by government or central-bank bodies.
const TrustOfficial = "official"

// Source describes one configured feed.
type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	FeedURL  string `yaml:"rss_url"`
	Language string `yaml:"language"`
	Trust    string `yaml:"copyright_status"`
	Country  string `yaml:"country"`
	Status   string `yaml:"status"`
}

// Active reports whether the source should be fetched.
func (s Source) Active() bool {
	return s.Status == "active"
}

// Category is one entry of the ordered category mapping.
type Category struct {
	Name     string   `yaml:"-"`
	Keywords []string `yaml:"keywords"`
	Priority int      `yaml:"priority"`
}

// TagRule adds Name as a tag when any keyword matches.
type TagRule struct {
	Name     string
	Keywords []string
}

// RawEntry is a feed entry after fetch-time normalization.
// Published is nil when neither the published nor the updated field parsed.
type RawEntry struct {
	URL       string
	Title     string
	Summary   string
	Published *time.Time
}
