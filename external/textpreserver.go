package external

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches HTML/BBCode-style tags and the {curly}
// interpolation placeholders common in game and app localization
// corpora, both of which must survive translation unmodified.
var placeholderPattern = regexp.MustCompile(`<[^<>]+>|\{[^{}]+\}`)

// DefaultTextPreserver swaps each placeholder match for a stable
// sentinel token before the line reaches the LLM, and restores the
// original spans afterward in order.
type DefaultTextPreserver struct{}

// NewDefaultTextPreserver builds a DefaultTextPreserver.
func NewDefaultTextPreserver() *DefaultTextPreserver { return &DefaultTextPreserver{} }

// Preserve returns the sentinel-substituted text and a restore
// function that re-inserts the original spans, in the order they were
// extracted, into a translated result.
func (p *DefaultTextPreserver) Preserve(src string) (string, func(string) string) {
	matches := placeholderPattern.FindAllString(src, -1)
	if len(matches) == 0 {
		return src, func(dst string) string { return dst }
	}

	preserved := src
	for i, m := range matches {
		preserved = strings.Replace(preserved, m, sentinel(i), 1)
	}

	return preserved, func(dst string) string {
		for i, m := range matches {
			dst = strings.Replace(dst, sentinel(i), m, 1)
		}
		return dst
	}
}

func sentinel(i int) string {
	return fmt.Sprintf("<PRESERVE_%d>", i)
}
