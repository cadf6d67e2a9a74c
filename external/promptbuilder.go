package external

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lingagacha/mtlcore/config"
)

// DefaultPromptBuilder assembles a plain instruction-style prompt:
// a language-pair directive, optional preceding-context lines for
// continuity, and the source lines to translate, one "key: text" line
// each in numeric key order. The model is asked to answer with one
// JSON object per line.
type DefaultPromptBuilder struct{}

// NewDefaultPromptBuilder builds a DefaultPromptBuilder.
func NewDefaultPromptBuilder() *DefaultPromptBuilder { return &DefaultPromptBuilder{} }

// Build renders the prompt text for one chunk.
func (b *DefaultPromptBuilder) Build(src map[string]string, preceding []string, source, target config.Language) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following lines from %s to %s.\n", source, target)
	fmt.Fprintf(&sb, "Respond with one JSON object per line, each mapping the original numeric key to its translation.\n")

	if len(preceding) > 0 {
		sb.WriteString("Preceding context (do not translate, for continuity only):\n")
		for _, p := range preceding {
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Lines to translate:\n")
	keys := make([]int, 0, len(src))
	for k := range src {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)
	for _, k := range keys {
		key := strconv.Itoa(k)
		fmt.Fprintf(&sb, "%s: %s\n", key, src[key])
	}
	return sb.String()
}
