package external

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/lingagacha/mtlcore/cache"
)

// DefaultFileManager reads and writes a corpus tree of plain-text
// (".txt", one line per item) and KVJSON (".json", string-valued
// key/value map) files. It walks folder recursively, tagging each item
// with the FileType its source file implies.
type DefaultFileManager struct{}

// NewDefaultFileManager builds a DefaultFileManager.
func NewDefaultFileManager() *DefaultFileManager { return &DefaultFileManager{} }

// Read walks folder and loads every .txt and .json file into items.
func (f *DefaultFileManager) Read(folder string) ([]*cache.Item, error) {
	var items []*cache.Item

	err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			rel = path
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt":
			read, err := f.readPlain(path, rel)
			if err != nil {
				return err
			}
			items = append(items, read...)
		case ".json":
			read, err := f.readKVJSON(path, rel)
			if err != nil {
				return err
			}
			items = append(items, read...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read corpus folder %s: %w", folder, err)
	}
	return items, nil
}

func (f *DefaultFileManager) readPlain(path, rel string) ([]*cache.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []*cache.Item
	for row, line := range strings.Split(string(data), "\n") {
		items = append(items, &cache.Item{
			Src:      line,
			FilePath: rel,
			FileType: cache.FileTypePlain,
			Row:      row,
			Status:   cache.StatusUntranslated,
		})
	}
	return items, nil
}

func (f *DefaultFileManager) readKVJSON(path, rel string) ([]*cache.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse kvjson %s: %w", path, err)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]*cache.Item, 0, len(keys))
	for row, k := range keys {
		items = append(items, &cache.Item{
			Src:      obj[k],
			FilePath: rel,
			FileType: cache.FileTypeKVJSON,
			Row:      row,
			Status:   cache.StatusUntranslated,
			Vars:     map[string]any{"key": k},
		})
	}
	return items, nil
}

// Write regroups items by FilePath and writes each file back out in
// the format its FileType implies, substituting Dst for Src wherever a
// translation was produced.
func (f *DefaultFileManager) Write(folder string, items []*cache.Item) error {
	byFile := map[string][]*cache.Item{}
	order := []string{}
	for _, it := range items {
		if _, seen := byFile[it.FilePath]; !seen {
			order = append(order, it.FilePath)
		}
		byFile[it.FilePath] = append(byFile[it.FilePath], it)
	}

	for _, rel := range order {
		group := byFile[rel]
		outPath := filepath.Join(folder, rel)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}

		switch group[0].FileType {
		case cache.FileTypeKVJSON:
			if err := f.writeKVJSON(outPath, group); err != nil {
				return err
			}
		default:
			if err := f.writePlain(outPath, group); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *DefaultFileManager) writePlain(path string, items []*cache.Item) error {
	lines := make([]string, len(items))
	for _, it := range items {
		out := it.Dst
		if out == "" {
			out = it.Src
		}
		lines[it.Row] = out
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

func (f *DefaultFileManager) writeKVJSON(path string, items []*cache.Item) error {
	obj := make(map[string]string, len(items))
	for _, it := range items {
		key := it.Row
		k := fmt.Sprintf("%d", key)
		if it.Vars != nil {
			if v, ok := it.Vars["key"].(string); ok {
				k = v
			}
		}
		out := it.Dst
		if out == "" {
			out = it.Src
		}
		obj[k] = out
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
