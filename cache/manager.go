package cache

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lingagacha/mtlcore/snapshot"
)

// saveInterval is the period of the background snapshot ticker.
const saveInterval = 15 * time.Second

// endLinePunctuation lists the sentence-ending runes that mark an item
// eligible to be carried as preceding context for the chunk that
// follows it. An item whose stripped source does not end in one of
// these is treated as a context boundary.
const endLinePunctuation = ".。?？!！…'\"’”」』"

// Manager owns the live item/project state for one translation
// session: it is the single mutable source of truth queried by the
// scheduler and mutated by in-flight tasks, and it owns the periodic
// snapshot lifecycle.
type Manager struct {
	mu      sync.RWMutex
	items   []*Item
	project Project

	store  snapshot.Store
	mirror snapshot.Store // optional, best-effort; may be nil

	folder string

	saveRequested chan struct{}
	stopSaver     chan struct{}
	saverDone     chan struct{}

	onAutoSave func() // optional hook, fired after each successful tick save
}

// NewManager constructs a Manager backed by store for the authoritative
// local snapshot and an optional mirror for off-host durability.
func NewManager(store snapshot.Store, mirror snapshot.Store, folder string) *Manager {
	return &Manager{
		store:         store,
		mirror:        mirror,
		folder:        folder,
		saveRequested: make(chan struct{}, 1),
	}
}

// SetItems replaces the live item set. Used at load time and by the
// MTool optimizer passes that rewrite the item list wholesale.
func (m *Manager) SetItems(items []*Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// GetItems returns the live item slice. Callers that need isolation
// from concurrent mutation should use CopyItems instead.
func (m *Manager) GetItems() []*Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items
}

// CopyItems returns a deep copy of the live item set, safe to read
// from a background goroutine (snapshotter, manual export) while
// tasks keep mutating the live set.
func (m *Manager) CopyItems() []*Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Item, len(m.items))
	for i, it := range m.items {
		out[i] = it.Clone()
	}
	return out
}

// SetProject replaces the live project state.
func (m *Manager) SetProject(p Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project = p
}

// GetProject returns a copy of the live project state.
func (m *Manager) GetProject() Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.project
}

// MutateProject applies fn to the live project state under the write
// lock, used by the scheduler's extras-folding callback.
func (m *Manager) MutateProject(fn func(*Project)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.project)
}

// GetItemCountByStatus returns the number of live items with the given
// status.
func (m *Manager) GetItemCountByStatus(status Status) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, it := range m.items {
		if it.Status == status {
			count++
		}
	}
	return count
}

// RequireSaveToFile requests a snapshot write on the next ticker beat.
// It never blocks: a pending request already queued is left as-is.
func (m *Manager) RequireSaveToFile() {
	select {
	case m.saveRequested <- struct{}{}:
	default:
	}
}

// SaveToFile writes the current item and project state to the
// authoritative local store and, if configured, best-effort mirrors it.
// Write failures are returned to the caller; the background ticker
// loop logs and swallows them instead of stopping the session.
func (m *Manager) SaveToFile(ctx context.Context) error {
	m.mu.RLock()
	itemsJSON, err := json.Marshal(m.items)
	if err != nil {
		m.mu.RUnlock()
		return err
	}
	projectJSON, err := json.Marshal(m.project)
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := m.store.Write(ctx, m.folder, itemsJSON, projectJSON); err != nil {
		return err
	}
	if m.mirror != nil {
		_ = m.mirror.Write(ctx, m.folder, itemsJSON, projectJSON)
	}
	return nil
}

// LoadFromFile loads the item set from the authoritative store. A
// missing snapshot file is not an error: it means a fresh session.
func (m *Manager) LoadFromFile(ctx context.Context) error {
	data, err := m.store.ReadItems(ctx, m.folder)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	var items []*Item
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	m.SetItems(items)
	return nil
}

// LoadProjectFromFile loads the project state from the authoritative
// store. A missing snapshot file leaves the project at its zero value
// (ProjectUntranslated).
func (m *Manager) LoadProjectFromFile(ctx context.Context) error {
	data, err := m.store.ReadProject(ctx, m.folder)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return err
	}
	m.SetProject(project)
	return nil
}

// StartAutoSave launches the background ticker goroutine that flushes
// a requested snapshot every saveInterval. Each call starts a new
// goroutine, so a running saver must be stopped with StopAutoSave
// before StartAutoSave is called again.
func (m *Manager) StartAutoSave(ctx context.Context) {
	m.stopSaver = make(chan struct{})
	m.saverDone = make(chan struct{})

	go func() {
		defer close(m.saverDone)
		ticker := time.NewTicker(saveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopSaver:
				return
			case <-ticker.C:
				select {
				case <-m.saveRequested:
					if err := m.SaveToFile(ctx); err != nil {
						log.Printf("cache: auto-save failed: %v", err)
					} else if m.onAutoSave != nil {
						m.onAutoSave()
					}
				default:
				}
			}
		}
	}()
}

// StopAutoSave stops the background ticker goroutine and waits for it
// to exit.
func (m *Manager) StopAutoSave() {
	if m.stopSaver == nil {
		return
	}
	close(m.stopSaver)
	<-m.saverDone
}

// OnAutoSave registers a callback invoked after each successful
// ticker-driven save, used by the scheduler to emit the auto-save
// notification event.
func (m *Manager) OnAutoSave(fn func()) {
	m.onAutoSave = fn
}

// lineLimit converts a token budget into the chunk planner's line
// budget, floored at 8 lines so a chunk never collapses to nothing on
// a tiny token threshold.
func lineLimit(tokenThreshold int) int {
	limit := tokenThreshold / 16
	if limit < 8 {
		return 8
	}
	return limit
}

// GenerateItemChunks partitions the live untranslated items into
// translation chunks bounded by tokenThreshold and lineLimit(tokenThreshold),
// never spanning a file boundary, and returns alongside each chunk the
// preceding-context lines (already-translated or still-untranslated
// lines immediately before it, up to precedingLinesThreshold) that may
// help the model disambiguate pronouns and continuations.
func (m *Manager) GenerateItemChunks(tokenThreshold, precedingLinesThreshold int) ([][]*Item, [][]*Item) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := lineLimit(tokenThreshold)

	var chunks [][]*Item
	var preceding [][]*Item

	skip := 0
	lineLength := 0
	tokenLength := 0
	var chunk []*Item

	flush := func(boundary int) {
		chunks = append(chunks, chunk)
		preceding = append(preceding, m.generatePrecedingChunks(chunk, boundary, skip, precedingLinesThreshold))
		skip = 0
		chunk = nil
		lineLength = 0
		tokenLength = 0
	}

	i := 0
	for ; i < len(m.items); i++ {
		item := m.items[i]
		if item.Status != StatusUntranslated {
			skip++
			continue
		}

		curLines := item.NonEmptyLineCount()
		curTokens := item.TokenCount

		if len(chunk) > 0 &&
			(lineLength+curLines > limit ||
				tokenLength+curTokens > tokenThreshold ||
				item.FilePath != chunk[len(chunk)-1].FilePath) {
			flush(i)
		}

		chunk = append(chunk, item)
		lineLength += curLines
		tokenLength += curTokens
	}

	if len(chunk) > 0 {
		flush(i)
	}

	return chunks, preceding
}

// generatePrecedingChunks walks backward from just before the chunk
// starting at boundary (skipping the skip items already folded into
// boundary's accounting) collecting up to precedingLinesThreshold
// context lines from the same file, stopping at the first line that
// does not end in sentence-ending punctuation or belongs to a
// different file. Excluded items and blank lines are skipped without
// counting against the limit or terminating the walk. The result is
// returned in forward (original) order.
func (m *Manager) generatePrecedingChunks(chunk []*Item, boundary, skip, precedingLinesThreshold int) []*Item {
	if len(chunk) == 0 || precedingLinesThreshold <= 0 {
		return nil
	}

	var result []*Item
	start := boundary - skip - len(chunk) - 1
	wantFile := chunk[len(chunk)-1].FilePath

	for i := start; i >= 0; i-- {
		item := m.items[i]
		if item.Status == StatusExcluded {
			continue
		}
		src := strings.TrimSpace(item.Src)
		if src == "" {
			continue
		}
		if len(result) >= precedingLinesThreshold {
			break
		}
		if item.FilePath != wantFile {
			break
		}
		if strings.ContainsRune(endLinePunctuation, lastRune(src)) {
			result = append(result, item)
		} else {
			break
		}
	}

	// reverse into forward order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}
