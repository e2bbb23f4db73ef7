// Package translate converts feed text into the target language.
package translate

import (
	"context"

	"golang.org/x/text/language"
)

// Translation is the outcome of one translate call. When Translated is false
// Text holds the original input and Err may explain why.
type Translation struct {
	Text       string
	Translated bool
	Err        error
}

// Translator turns text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, target string) Translation
}

// Needed reports whether text in sourceLang must be translated to reach
// target. Tags are compared by base language, so "en-US" and "en" match.
// Unparseable tags never trigger translation.
func Needed(sourceLang, target string) bool {
	src, err := language.Parse(sourceLang)
	if err != nil {
		return false
	}
	dst, err := language.Parse(target)
	if err != nil {
		return false
	}
	srcBase, _ := src.Base()
	dstBase, _ := dst.Base()
	return srcBase != dstBase
}

// Noop returns every input unchanged.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _ string) Translation {
	return Translation{Text: text}
}
