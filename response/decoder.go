// Package response implements lenient parsing and quality checking of
// raw LLM completions returned by a translation task.
package response

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Glossary is a single extracted term entry: source term, destination
// term, and an optional gender/note hint some models emit alongside it.
type Glossary struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Gender string `json:"gender"`
}

// Decoded holds the result of parsing one completion: translations
// keyed "0", "1", ... in the order they were found (the keys the
// completion itself used are not kept), and any glossary entries the
// model volunteered alongside them.
type Decoded struct {
	Dst      map[string]string
	Glossary []Glossary
}

// Decode parses a raw completion into row translations. Models are
// unreliable about emitting one well-formed JSON object: they routinely
// interleave explanatory prose with one JSON object per line, or wrap
// a single key/value pair with no surrounding braces on its own line.
// Decode first tries a line-by-line lenient parse, keeping only the
// lines that parse as a JSON object; if that yields nothing at all, it
// falls back to treating the entire response as a single JSON object.
func Decode(raw string) Decoded {
	result := Decoded{Dst: map[string]string{}}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		obj, ok := parseLineObject(line)
		if !ok {
			continue
		}

		switch len(obj) {
		case 1:
			for _, v := range obj {
				if s, ok := v.(string); ok {
					result.Dst[nextKey(result.Dst)] = s
				}
			}
		case 3:
			if g, ok := asGlossary(obj); ok {
				result.Glossary = append(result.Glossary, g)
			}
		}
	}

	if len(result.Dst) == 0 {
		if obj, ok := parseLineObject(strings.TrimSpace(raw)); ok {
			for _, k := range orderedKeys(obj) {
				if s, ok := obj[k].(string); ok {
					result.Dst[nextKey(result.Dst)] = s
				}
			}
		}
	}

	return result
}

// orderedKeys returns obj's keys in the order the original completion
// most likely emitted them. A map loses that order on decode, so keys
// that all parse as row indices are restored to numeric order; any
// other key set falls back to lexical order, which is still
// deterministic even if it cannot recover the original sequence.
func orderedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	allNumeric := true
	for k := range obj {
		keys = append(keys, k)
		if _, err := strconv.Atoi(k); err != nil {
			allNumeric = false
		}
	}
	if allNumeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
	} else {
		sort.Strings(keys)
	}
	return keys
}

// parseLineObject attempts to parse line as a single JSON object,
// repairing the common cases a model's raw output slips into: a bare
// "key": "value" fragment with no enclosing braces, a trailing comma
// before a closing brace/bracket, and single or smart quotes standing
// in for double quotes.
func parseLineObject(line string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(line)
	bare := strings.TrimSuffix(trimmed, ",")

	candidates := []string{trimmed, normalizeFragment(trimmed)}
	if !strings.HasPrefix(bare, "{") {
		wrapped := "{" + bare + "}"
		candidates = append(candidates, wrapped, normalizeFragment(wrapped))
	}

	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && len(obj) > 0 {
			return obj, true
		}
	}
	return nil, false
}

// trailingCommaPattern matches a comma immediately before a closing
// brace or bracket, the shape a model emits when it treats the last
// line of an object/array like any other line.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// fragmentQuoteReplacer maps single and smart quotes onto the plain
// double quote JSON requires.
var fragmentQuoteReplacer = strings.NewReplacer(
	"‘", "\"", "’", "\"",
	"“", "\"", "”", "\"",
	"'", "\"",
)

// normalizeFragment repairs trailing commas and non-standard quoting
// so a fragment that is semantically valid JSON, but not literally so,
// has a chance to parse.
func normalizeFragment(s string) string {
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return fragmentQuoteReplacer.Replace(s)
}

// nextKey returns the next available numeric string key, matching the
// row-index keying scheme a translation task dict uses.
func nextKey(m map[string]string) string {
	return itoa(len(m))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// asGlossary interprets a three-key object as a glossary entry if at
// least one of the expected keys (src, dst, gender) is present.
func asGlossary(obj map[string]any) (Glossary, bool) {
	g := Glossary{}
	found := false
	if v, ok := obj["src"].(string); ok {
		g.Src = v
		found = true
	}
	if v, ok := obj["dst"].(string); ok {
		g.Dst = v
		found = true
	}
	if v, ok := obj["gender"].(string); ok {
		g.Gender = v
		found = true
	}
	return g, found
}
