// Package external defines the boundary collaborators the
// orchestration core depends on but does not own the implementation
// of: corpus file I/O, prompt assembly, rule/language filters, and
// placeholder preservation. Each interface also ships a small default
// implementation so the core is runnable standalone; production
// deployments are expected to supply their own.
package external

import (
	"github.com/lingagacha/mtlcore/cache"
	"github.com/lingagacha/mtlcore/config"
)

// FileManager reads a corpus directory into cache items and writes
// the translated result back out in the same layout it was read from.
type FileManager interface {
	Read(folder string) ([]*cache.Item, error)
	Write(folder string, items []*cache.Item) error
}

// PromptBuilder assembles the chat prompt sent to the LLM endpoint for
// one chunk, given the source lines, their preceding context, and the
// active platform's language pair.
type PromptBuilder interface {
	Build(src map[string]string, preceding []string, source, target config.Language) string
}

// RuleFilter decides whether a source line should be treated as
// non-translatable content (markup, numeric literals, empty strings)
// that can be accepted as-is without ever reaching the LLM.
type RuleFilter interface {
	Filter(src string, skipInternal bool) bool
}

// LanguageFilter decides whether a source line is already written in
// a target-acceptable form (e.g. already-Chinese text in a JA->ZH
// project) and so needs no translation.
type LanguageFilter interface {
	Filter(src string, source config.Language) bool
}

// TextPreserver swaps markup/code spans in src for stable sentinel
// placeholders before a line reaches the LLM, and restores them in the
// translated result.
type TextPreserver interface {
	Preserve(src string) (preserved string, restore func(dst string) string)
}
