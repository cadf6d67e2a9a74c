package external

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lingagacha/mtlcore/config"
)

// DefaultRuleFilter accepts lines that carry no translatable content
// at all: blank lines and pure numeric/symbol literals. A line made of
// markup or {placeholder} spans is not accepted when those spans
// contain letters (e.g. "<br>" or "{name}").
type DefaultRuleFilter struct{}

// NewDefaultRuleFilter builds a DefaultRuleFilter.
func NewDefaultRuleFilter() *DefaultRuleFilter { return &DefaultRuleFilter{} }

var nonLetterLine = regexp.MustCompile(`^[\d\s\p{P}\p{S}]*$`)

// Filter returns true when src needs no LLM call: it is blank, or
// (unless skipInternal suppresses the check) composed entirely of
// digits/punctuation/symbols.
func (f *DefaultRuleFilter) Filter(src string, skipInternal bool) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	if skipInternal {
		return false
	}
	return nonLetterLine.MatchString(src)
}

// DefaultLanguageFilter accepts a line as already target-acceptable
// when it contains no characters from the configured source
// language's script, implying a prior translation pass or embedded
// loanword already did the job.
type DefaultLanguageFilter struct{}

// NewDefaultLanguageFilter builds a DefaultLanguageFilter.
func NewDefaultLanguageFilter() *DefaultLanguageFilter { return &DefaultLanguageFilter{} }

// Filter returns true when src contains none of the source language's
// script, i.e. it is already not written in a form requiring
// translation.
func (f *DefaultLanguageFilter) Filter(src string, source config.Language) bool {
	var tables []*unicode.RangeTable
	switch source {
	case config.LanguageJA:
		tables = []*unicode.RangeTable{unicode.Hiragana, unicode.Katakana, unicode.Han}
	case config.LanguageKO:
		tables = []*unicode.RangeTable{unicode.Hangul}
	case config.LanguageZH:
		tables = []*unicode.RangeTable{unicode.Han}
	default:
		return false
	}

	for _, r := range src {
		for _, tbl := range tables {
			if unicode.Is(tbl, r) {
				return false
			}
		}
	}
	return true
}
