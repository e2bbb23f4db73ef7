// Package fetcher retrieves RSS and Atom feeds and normalizes their entries.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
	"github.com/DeafMist/econ-news-radar/backend/internal/translate"
)

const (
	// ExcerptLen caps the raw summary kept per entry.
	ExcerptLen = 200

	defaultMaxEntries = 20
	maxFeedBytes      = 10 << 20
)

// Options configures a Fetcher. Zero values fall back to sensible defaults;
// a zero MaxAge disables the age filter.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	MaxEntries     int
	MaxAge         time.Duration
	TargetLanguage string
	Translator     translate.Translator
	Now            func() time.Time
	Logger         *slog.Logger
}

// Fetcher downloads one source at a time.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxEntries int
	maxAge     time.Duration
	target     string
	translator translate.Translator
	now        func() time.Time
	log        *slog.Logger
}

func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxEntries: opts.MaxEntries,
		maxAge:     opts.MaxAge,
		target:     opts.TargetLanguage,
		translator: opts.Translator,
		now:        opts.Now,
		log:        opts.Logger,
	}
	if f.maxEntries <= 0 {
		f.maxEntries = defaultMaxEntries
	}
	if f.translator == nil {
		f.translator = translate.Noop{}
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// Fetch returns up to MaxEntries usable entries in feed order. Entries
// without a link or title, and entries older than MaxAge, are skipped.
// Failures come back as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src models.Source) ([]models.RawEntry, error) {
	feed, err := f.download(ctx, src.FeedURL)
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if len(items) > f.maxEntries {
		items = items[:f.maxEntries]
	}

	translateText := f.target != "" && translate.Needed(src.Language, f.target)
	now := f.now()

	out := make([]models.RawEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := models.RawEntry{
			URL:       strings.TrimSpace(item.Link),
			Title:     processing.CollapseWhitespace(item.Title),
			Summary:   processing.TruncateRunes(strings.TrimSpace(firstNonEmpty(item.Description, item.Content)), ExcerptLen),
			Published: publishedAt(item),
		}
		if entry.URL == "" || entry.Title == "" {
			continue
		}
		if f.maxAge > 0 && entry.Published != nil && now.Sub(*entry.Published) > f.maxAge {
			continue
		}

		if translateText {
			entry.Title = f.translate(ctx, src, entry.Title)
			entry.Summary = f.translate(ctx, src, entry.Summary)
		}
		out = append(out, entry)
	}

	return out, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ClassifyTransportError(fmt.Errorf("build request: %w", err), url)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ClassifyHTTPStatus(resp.StatusCode, url)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, ClassifyParseError(err, url)
	}
	return feed, nil
}

func (f *Fetcher) translate(ctx context.Context, src models.Source, text string) string {
	if text == "" {
		return text
	}
	res := f.translator.Translate(ctx, text, f.target)
	if res.Err != nil {
		f.log.Debug("translation skipped",
			slog.String("source", src.Name),
			slog.Any("err", res.Err),
		)
	}
	return res.Text
}

// publishedAt prefers the published date and falls back to updated.
func publishedAt(item *gofeed.Item) *time.Time {
	for _, ts := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if ts != nil && !ts.IsZero() {
			t := ts.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
