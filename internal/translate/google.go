package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the keyless gtx endpoint.
	DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

	maxInputRunes    = 500
	maxResponseBytes = 256 * 1024
)

// Google calls the public translate_a/single endpoint with client=gtx.
// Requests are paced by a token bucket shared by all callers.
type Google struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewGoogle creates a client allowing perSecond requests with a burst of one.
func NewGoogle(endpoint string, timeout time.Duration, perSecond float64) *Google {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Google{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Translate never fails outright: on any error the original text comes back
// with Translated=false.
func (g *Google) Translate(ctx context.Context, text, target string) Translation {
	text = strings.TrimSpace(text)
	if text == "" {
		return Translation{Text: text}
	}

	out, err := g.call(ctx, text, target)
	if err != nil {
		return Translation{Text: text, Err: err}
	}
	if out == "" {
		return Translation{Text: text, Err: fmt.Errorf("translate: empty result")}
	}
	return Translation{Text: out, Translated: true}
}

func (g *Google) call(ctx context.Context, text, target string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("translate: wait: %w", err)
	}

	if rs := []rune(text); len(rs) > maxInputRunes {
		text = string(rs[:maxInputRunes])
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("translate: read body: %w", err)
	}
	return parseGTX(body)
}

// parseGTX joins the translated segments of a response shaped like
// [[["translated","original",...],...],...].
func parseGTX(body []byte) (string, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("translate: decode: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("translate: unexpected response shape")
	}
	segments, ok := raw[0].([]any)
	if !ok {
		return "", fmt.Errorf("translate: unexpected response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		pair, ok := seg.([]any)
		if !ok || len(pair) == 0 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			b.WriteString(s)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
