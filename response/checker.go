package response

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"

	"github.com/lingagacha/mtlcore/config"
	"github.com/lingagacha/mtlcore/external"
)

// Error classifies why a round's response failed validation. NONE
// means the response (or a specific line within it) passed every
// check.
type Error int

const (
	ErrorNone Error = iota
	ErrorUnknown
	ErrorFailData
	ErrorFailLineCount
	ErrorLineKana
	ErrorLineHangeul
	ErrorLineFakeReply
	ErrorLineEmpty
	ErrorLineSimilarity
	ErrorLineDegradation
)

// retryCountThreshold is the retry count at and above which a lone
// untranslatable item is let through rather than retried forever.
const retryCountThreshold = 2

// degradationPattern catches repetition collapse: a model looping the
// same one- or two-rune fragment many times in a row instead of
// producing real text.
var degradationPattern = regexp.MustCompile(`(?i)(.{1,2})\1{16,}`)

// similarityThreshold is the Jaccard similarity above which a
// translation is considered an untranslated echo of its source.
const similarityThreshold = 0.80

// Checker validates a decoded response against the source lines it
// was meant to translate.
type Checker struct {
	SourceLanguage config.Language
	TargetLanguage config.Language
	RuleFilter     external.RuleFilter
	LanguageFilter external.LanguageFilter
}

// NewChecker builds a Checker for the given source/target language
// pair, used to gate the script-residue and similarity rules. A nil
// ruleFilter/languageFilter falls back to the external package's
// default implementation, matching the rest of the orchestration
// core's nil-collaborator convention.
func NewChecker(source, target config.Language, ruleFilter external.RuleFilter, languageFilter external.LanguageFilter) *Checker {
	if ruleFilter == nil {
		ruleFilter = external.NewDefaultRuleFilter()
	}
	if languageFilter == nil {
		languageFilter = external.NewDefaultLanguageFilter()
	}
	return &Checker{
		SourceLanguage: source,
		TargetLanguage: target,
		RuleFilter:     ruleFilter,
		LanguageFilter: languageFilter,
	}
}

// Check validates dst against src (both keyed by the same row-index
// strings used by Decode) and returns the overall error plus a
// per-row breakdown. skipInternal carries each row's
// SkipInternalFilter flag, keyed the same as src/dst. retryCount is
// the number of times this chunk has already been retried, used to
// bypass a hopeless single-item chunk rather than looping forever.
func (c *Checker) Check(src map[string]string, dst map[string]string, skipInternal map[string]bool, retryCount int) (Error, map[string]Error) {
	if len(dst) == 0 {
		return ErrorFailData, nil
	}
	allEmpty := true
	for _, v := range dst {
		if strings.TrimSpace(v) != "" {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return ErrorFailData, nil
	}

	if len(src) == 1 && retryCount >= retryCountThreshold {
		lines := make(map[string]Error, len(src))
		for k := range src {
			lines[k] = ErrorNone
		}
		return ErrorNone, lines
	}

	if len(src) != len(dst) {
		return ErrorFailLineCount, nil
	}

	lines := c.checkLines(src, dst, skipInternal)
	overall := ErrorNone
	for _, e := range lines {
		if e != ErrorNone {
			overall = ErrorUnknown
			break
		}
	}
	return overall, lines
}

// checkLines applies the per-line rule chain in priority order,
// stopping at the first rule a line fails.
func (c *Checker) checkLines(src, dst map[string]string, skipInternal map[string]bool) map[string]Error {
	lines := make(map[string]Error, len(src))
	for k, s := range src {
		d, ok := dst[k]
		if !ok {
			lines[k] = ErrorLineEmpty
			continue
		}
		lines[k] = c.checkLine(s, d, skipInternal[k])
	}
	return lines
}

func (c *Checker) checkLine(src, dst string, skipInternal bool) Error {
	trimmedSrc := strings.TrimSpace(src)
	trimmedDst := strings.TrimSpace(dst)

	if trimmedSrc != "" && trimmedDst == "" {
		return ErrorLineEmpty
	}
	if strings.Contains(trimmedSrc, placeholderSentinel) {
		return ErrorNone
	}
	if c.RuleFilter.Filter(trimmedSrc, skipInternal) {
		return ErrorNone
	}
	if c.LanguageFilter.Filter(trimmedSrc, c.SourceLanguage) {
		return ErrorNone
	}
	if !degradationPattern.MatchString(trimmedSrc) && degradationPattern.MatchString(trimmedDst) {
		return ErrorLineDegradation
	}
	if c.SourceLanguage == config.LanguageJA && containsScript(trimmedDst, unicode.Hiragana, unicode.Katakana) {
		return ErrorLineKana
	}
	if c.SourceLanguage == config.LanguageKO && containsScript(trimmedDst, unicode.Hangul) {
		return ErrorLineHangeul
	}

	contained := strings.Contains(trimmedSrc, trimmedDst) || strings.Contains(trimmedDst, trimmedSrc) ||
		jaccardSimilarity(trimmedSrc, trimmedDst) > similarityThreshold
	if contained {
		switch {
		case c.SourceLanguage == config.LanguageJA && c.TargetLanguage == config.LanguageZH:
			if containsScript(trimmedDst, unicode.Hiragana, unicode.Katakana) {
				return ErrorLineSimilarity
			}
		case c.SourceLanguage == config.LanguageKO && c.TargetLanguage == config.LanguageZH:
			if containsScript(trimmedDst, unicode.Hangul) {
				return ErrorLineSimilarity
			}
		default:
			return ErrorLineSimilarity
		}
	}

	return ErrorNone
}

// placeholderSentinel is the token external.TextPreserver substitutes
// for markup/code spans it has pulled out of the source; its presence
// in src means the line never needed translation in the first place.
const placeholderSentinel = "<PRESERVE_"

func containsScript(s string, tables ...*unicode.RangeTable) bool {
	for _, r := range s {
		for _, tbl := range tables {
			if unicode.Is(tbl, r) {
				return true
			}
		}
	}
	return false
}

func jaccardSimilarity(a, b string) float64 {
	score, err := edlib.StringsSimilarity(a, b, edlib.Jaccard)
	if err != nil {
		return 0
	}
	return float64(score)
}

// String renders the error code for logging.
func (e Error) String() string {
	switch e {
	case ErrorNone:
		return "NONE"
	case ErrorFailData:
		return "FAIL_DATA"
	case ErrorFailLineCount:
		return "FAIL_LINE_COUNT"
	case ErrorLineKana:
		return "LINE_ERROR_KANA"
	case ErrorLineHangeul:
		return "LINE_ERROR_HANGEUL"
	case ErrorLineFakeReply:
		return "LINE_ERROR_FAKE_REPLY"
	case ErrorLineEmpty:
		return "LINE_ERROR_EMPTY_LINE"
	case ErrorLineSimilarity:
		return "LINE_ERROR_SIMILARITY"
	case ErrorLineDegradation:
		return "LINE_ERROR_DEGRADATION"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(e)) + ")"
	}
}
