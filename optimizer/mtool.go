// Package optimizer implements the MTool KVJSON optimizer passes: a
// preprocessing step that splits a multi-line source value into
// per-line child items (so the chunk planner's line budget applies to
// real lines rather than one oversized blob), and a postprocessing
// step that rejoins the translated children back into their parent's
// multi-line shape.
package optimizer

import (
	"strings"

	"github.com/lingagacha/mtlcore/cache"
)

// Preprocess scans items for KVJSON entries whose Src spans multiple
// lines and splits each into one child item per line, marking the
// parent EXCLUDED so the chunk planner and scheduler skip it directly
// while still carrying it forward (unmodified) for Postprocess to
// locate. Items that do not need splitting are returned unchanged.
func Preprocess(items []*cache.Item) []*cache.Item {
	out := make([]*cache.Item, 0, len(items))
	for _, item := range items {
		if item.FileType != cache.FileTypeKVJSON || !strings.Contains(item.Src, "\n") {
			out = append(out, item)
			continue
		}

		lines := strings.Split(item.Src, "\n")
		parent := item
		parent.Status = cache.StatusExcluded
		out = append(out, parent)

		for i, line := range lines {
			child := &cache.Item{
				Src:        line,
				Status:     cache.StatusUntranslated,
				FilePath:   item.FilePath,
				FileType:   item.FileType,
				TokenCount: item.TokenCount / max(1, len(lines)),
				Vars:       map[string]any{"mtoolParent": parent, "mtoolLine": i},
			}
			out = append(out, child)
		}
	}
	return out
}

// Postprocess rejoins each split parent's children back into the
// parent's Dst, in original line order, and restores the parent to
// UNTRANSLATED->TRANSLATED bookkeeping based on whether every child
// translated successfully. Child items are dropped from the returned
// slice; only parents and never-split items remain.
func Postprocess(items []*cache.Item) []*cache.Item {
	children := map[*cache.Item][]*cache.Item{}
	isChild := map[*cache.Item]bool{}

	for _, item := range items {
		if parent, ok := parentOf(item); ok {
			children[parent] = append(children[parent], item)
			isChild[item] = true
		}
	}

	out := make([]*cache.Item, 0, len(items))
	for _, item := range items {
		if isChild[item] {
			continue
		}
		if kids, ok := children[item]; ok {
			rejoin(item, kids)
		}
		out = append(out, item)
	}
	return out
}

// rejoin folds a split parent's children back into its Dst, in
// original line order, and marks it TRANSLATED only if every child
// produced a translation.
func rejoin(parent *cache.Item, kids []*cache.Item) {
	lines := make([]string, len(kids))
	allTranslated := true
	for _, child := range kids {
		idx, _ := child.Vars["mtoolLine"].(int)
		dst := child.Dst
		if dst == "" {
			dst = child.Src
			allTranslated = false
		}
		if idx >= 0 && idx < len(lines) {
			lines[idx] = dst
		}
	}
	parent.Dst = strings.Join(lines, "\n")
	if allTranslated {
		parent.Status = cache.StatusTranslated
	} else {
		parent.Status = cache.StatusUntranslated
	}
}

func parentOf(item *cache.Item) (*cache.Item, bool) {
	if item.Vars == nil {
		return nil, false
	}
	p, ok := item.Vars["mtoolParent"].(*cache.Item)
	return p, ok
}
