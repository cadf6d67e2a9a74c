package translator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lingagacha/mtlcore/cache"
	"github.com/lingagacha/mtlcore/config"
	"github.com/lingagacha/mtlcore/eventbus"
	"github.com/lingagacha/mtlcore/snapshot"
)

type stubRequester struct {
	dstByLine map[string]string
}

func (s *stubRequester) Request(ctx context.Context, prompt string, platform config.Platform) (string, int, int, error) {
	// Every chunk request is answered immediately with a single-line
	// JSON object mapping every key the fixture knows to its translation.
	var sb []byte
	sb = append(sb, '{')
	first := true
	for k, v := range s.dstByLine {
		if !first {
			sb = append(sb, ',')
		}
		first = false
		sb = append(sb, '"')
		sb = append(sb, k...)
		sb = append(sb, '"', ':', '"')
		sb = append(sb, v...)
		sb = append(sb, '"')
	}
	sb = append(sb, '}')
	return string(sb), len(s.dstByLine), len(s.dstByLine), nil
}

func testConfig(folder string) *config.Config {
	return &config.Config{
		Platforms:              []config.Platform{{Name: "local", APIURL: "http://example.invalid/v1"}},
		ActivatePlatform:       "local",
		SourceLanguage:         config.LanguageEN,
		TargetLanguage:         config.LanguageZH,
		OutputFolder:           folder,
		MaxRound:               3,
		MaxWorkers:             2,
		TokenThreshold:         1000,
		PrecedingLinesThreshold: 2,
		RequestTimeout:          2 * time.Second,
		ShutdownTimeout:         2 * time.Second,
	}
}

func writeCorpus(t *testing.T, folder string) {
	t.Helper()
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir corpus: %v", err)
	}
	content := "hello\nworld\n"
	if err := os.WriteFile(filepath.Join(folder, "strings.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
}

func TestRunSessionTranslatesFreshCorpusToCompletion(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	writeCorpus(t, corpus)

	cfg := testConfig(corpus)
	mgr := cache.NewManager(snapshot.NewLocalStore(), nil, corpus)
	bus := eventbus.New()

	requester := &stubRequester{dstByLine: map[string]string{"0": "你好", "1": "世界"}}
	sched := New(cfg, mgr, bus, nil, nil, requester, nil, nil, nil)

	if err := sched.runSession(context.Background(), cache.ProjectUntranslated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mgr.GetItemCountByStatus(cache.StatusUntranslated); got != 0 {
		t.Errorf("expected no untranslated items left, got %d", got)
	}
	if mgr.GetProject().Status != cache.ProjectTranslated {
		t.Errorf("expected project marked translated, got %v", mgr.GetProject().Status)
	}

	out, err := os.ReadFile(filepath.Join(corpus, "strings.txt"))
	if err != nil {
		t.Fatalf("read translated corpus: %v", err)
	}
	if string(out) != "你好\n世界\n" {
		t.Errorf("unexpected translated output: %q", string(out))
	}
}

func TestRunSessionHonorsStopBetweenRounds(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	writeCorpus(t, corpus)

	cfg := testConfig(corpus)
	mgr := cache.NewManager(snapshot.NewLocalStore(), nil, corpus)
	bus := eventbus.New()

	// Requester returns only an empty response, so every round fails
	// validation and the item count never reaches zero; the stop flag
	// must still break the loop instead of looping MaxRound times.
	requester := &stubRequester{dstByLine: map[string]string{}}
	sched := New(cfg, mgr, bus, nil, nil, requester, nil, nil, nil)
	sched.stopping.Store(true)

	if err := sched.runSession(context.Background(), cache.ProjectUntranslated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mgr.GetProject().Status == cache.ProjectTranslated {
		t.Errorf("expected session to stop before completion")
	}
}

func TestApplyFiltersExcludesBlankAndNumericLines(t *testing.T) {
	mgr := cache.NewManager(snapshot.NewLocalStore(), nil, t.TempDir())
	mgr.SetItems([]*cache.Item{
		{Src: "   ", Status: cache.StatusUntranslated},
		{Src: "42", Status: cache.StatusUntranslated},
		{Src: "hello", Status: cache.StatusUntranslated},
	})

	sched := New(testConfig(t.TempDir()), mgr, eventbus.New(), nil, nil, &stubRequester{}, nil, nil, nil)
	sched.applyFilters()

	items := mgr.GetItems()
	if items[0].Status != cache.StatusExcluded {
		t.Errorf("expected blank line excluded, got %v", items[0].Status)
	}
	if items[1].Status != cache.StatusExcluded {
		t.Errorf("expected numeric-only line excluded, got %v", items[1].Status)
	}
	if items[2].Status != cache.StatusUntranslated {
		t.Errorf("expected translatable line left untranslated, got %v", items[2].Status)
	}
}

func TestInitializeMaxWorkersUsesConfiguredValueWhenSet(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxWorkers = 4
	sched := New(cfg, cache.NewManager(snapshot.NewLocalStore(), nil, t.TempDir()), eventbus.New(), nil, nil, &stubRequester{}, nil, nil, nil)

	got := sched.initializeMaxWorkers(context.Background(), config.Platform{APIURL: "http://remote.example.com/v1"})
	if got != 4 {
		t.Errorf("expected configured MaxWorkers to win, got %d", got)
	}
}

func TestInitializeMaxWorkersFallsBackForRemotePlatform(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxWorkers = 0
	sched := New(cfg, cache.NewManager(snapshot.NewLocalStore(), nil, t.TempDir()), eventbus.New(), nil, nil, &stubRequester{}, nil, nil, nil)

	got := sched.initializeMaxWorkers(context.Background(), config.Platform{APIURL: "https://api.example.com/v1"})
	if got != 8 {
		t.Errorf("expected default fallback of 8 for a non-local platform, got %d", got)
	}
}

func TestStripAPISuffixDropsVersionedPath(t *testing.T) {
	got := stripAPISuffix("http://localhost:8080/v1")
	if got != "http://localhost:8080" {
		t.Errorf("unexpected stripped url: %q", got)
	}
}
