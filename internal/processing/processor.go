package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// IDLength is the number of hex characters kept from the URL hash.
const IDLength = 16

var whitespace = regexp.MustCompile(`\s+`)

// GenerateID hashes the exact URL string into a short stable identifier.
// The same URL always yields the same id, across runs and machines.
func GenerateID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// CollapseWhitespace squeezes runs of whitespace into single spaces and trims.
func CollapseWhitespace(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// TruncateRunes cuts s to at most limit characters without splitting runes.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// matchText builds the lower-cased text used by keyword matching.
func matchText(title, summary string) string {
	return strings.ToLower(title + " " + summary)
}
