// Package translator implements the round-based translation scheduler:
// the worker pool that drives chunks of cache items through task.Task
// until every item is translated or the round budget is exhausted.
package translator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lingagacha/mtlcore/cache"
	"github.com/lingagacha/mtlcore/config"
	"github.com/lingagacha/mtlcore/eventbus"
	"github.com/lingagacha/mtlcore/external"
	"github.com/lingagacha/mtlcore/llmclient"
	"github.com/lingagacha/mtlcore/metrics"
	"github.com/lingagacha/mtlcore/optimizer"
	"github.com/lingagacha/mtlcore/ratelimit"
	"github.com/lingagacha/mtlcore/response"
	"github.com/lingagacha/mtlcore/task"
)

// Scheduler owns one translation session's round loop: it pulls
// chunks from the cache manager's planner, dispatches them to a
// worker pool gated by a TaskLimiter, folds results back into project
// extras, and persists progress through the cache manager.
type Scheduler struct {
	cfg *config.Config
	mgr *cache.Manager
	bus *eventbus.Bus

	fileManager    external.FileManager
	promptBuilder  external.PromptBuilder
	requester      llmclient.Requester
	ruleFilter     external.RuleFilter
	languageFilter external.LanguageFilter
	textPreserver  external.TextPreserver
	checker        *response.Checker
	metrics        *metrics.Metrics

	stopping atomic.Bool

	extrasMu sync.Mutex
}

// New builds a Scheduler. Any nil external collaborator is replaced
// with its default implementation so the core is runnable standalone.
func New(cfg *config.Config, mgr *cache.Manager, bus *eventbus.Bus,
	fileManager external.FileManager,
	promptBuilder external.PromptBuilder,
	requester llmclient.Requester,
	ruleFilter external.RuleFilter,
	languageFilter external.LanguageFilter,
	textPreserver external.TextPreserver,
) *Scheduler {
	if fileManager == nil {
		fileManager = external.NewDefaultFileManager()
	}
	if promptBuilder == nil {
		promptBuilder = external.NewDefaultPromptBuilder()
	}
	if requester == nil {
		requester = llmclient.NewHTTPRequester()
	}
	if ruleFilter == nil {
		ruleFilter = external.NewDefaultRuleFilter()
	}
	if languageFilter == nil {
		languageFilter = external.NewDefaultLanguageFilter()
	}
	if textPreserver == nil {
		textPreserver = external.NewDefaultTextPreserver()
	}

	return &Scheduler{
		cfg:            cfg,
		mgr:            mgr,
		bus:            bus,
		fileManager:    fileManager,
		promptBuilder:  promptBuilder,
		requester:      requester,
		ruleFilter:     ruleFilter,
		languageFilter: languageFilter,
		textPreserver:  textPreserver,
		checker:        response.NewChecker(cfg.SourceLanguage, cfg.TargetLanguage, ruleFilter, languageFilter),
		metrics:        metrics.New(),
	}
}

// Metrics returns the session's running counters, useful for a CLI
// driver to print a final report after ListenAndServe returns.
func (s *Scheduler) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run drives a single translation session to completion: load or
// resume the corpus named by status, translate every round, and write
// the result back out. It installs its own signal handling so a
// one-shot CLI driver can call it directly without going through the
// event bus.
func (s *Scheduler) Run(ctx context.Context, status cache.ProjectStatus) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	return s.runSession(ctx, status)
}

// ListenAndServe subscribes to the event bus's control topics and
// drives sessions until ctx is cancelled, honoring process signals for
// graceful shutdown in the same manner as a standalone CLI driver. It
// is the entrypoint for a long-lived service fronted by a UI that
// starts/stops sessions via TRANSLATION_START/STOP events.
func (s *Scheduler) ListenAndServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	starts := s.bus.Subscribe(eventbus.TranslationStart)
	stops := s.bus.Subscribe(eventbus.TranslationStop)
	statusChecks := s.bus.Subscribe(eventbus.ProjectStatusCheck)
	defer s.bus.Unsubscribe(eventbus.TranslationStart, starts)
	defer s.bus.Unsubscribe(eventbus.TranslationStop, stops)
	defer s.bus.Unsubscribe(eventbus.ProjectStatusCheck, statusChecks)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-starts:
			status, _ := payload.(cache.ProjectStatus)
			s.stopping.Store(false)
			done := make(chan error, 1)
			go func() { done <- s.runSession(ctx, status) }()
			for running := true; running; {
				select {
				case err := <-done:
					if err != nil {
						s.bus.Emit(eventbus.AppToastShow, fmt.Sprintf("translation session failed: %v", err))
					}
					running = false
				case <-stops:
					s.stopping.Store(true)
				}
			}
		case <-stops:
			s.stopping.Store(true)
		case <-statusChecks:
			s.bus.Emit(eventbus.ProjectStatusCheckDone, s.mgr.GetProject().Status)
		}
	}
}

// runSession executes one full translation_start_target pass: load or
// resume, run filters and the MTool preprocess, loop rounds until done
// or stopped, postprocess, finalize, and write the corpus back out.
func (s *Scheduler) runSession(ctx context.Context, status cache.ProjectStatus) error {
	if status == cache.ProjectTranslating {
		if err := s.mgr.LoadFromFile(ctx); err != nil {
			return fmt.Errorf("resume: load items: %w", err)
		}
		if err := s.mgr.LoadProjectFromFile(ctx); err != nil {
			return fmt.Errorf("resume: load project: %w", err)
		}
	} else {
		items, err := s.fileManager.Read(s.cfg.OutputFolder)
		if err != nil {
			return fmt.Errorf("read corpus: %w", err)
		}
		s.mgr.SetItems(items)
		s.mgr.SetProject(cache.Project{Status: cache.ProjectUntranslated})
	}

	s.mgr.StartAutoSave(ctx)
	s.mgr.OnAutoSave(func() { s.bus.Emit(eventbus.CacheFileAutoSave, nil) })
	defer s.mgr.StopAutoSave()

	s.applyFilters()
	if s.cfg.MtoolOptimizerEnable {
		s.mgr.SetItems(optimizer.Preprocess(s.mgr.GetItems()))
	}

	platform, err := s.cfg.GetPlatform(s.cfg.ActivatePlatform)
	if err != nil {
		return err
	}

	maxWorkers := s.initializeMaxWorkers(ctx, platform)
	limiter := ratelimit.NewTaskLimiter(maxWorkers, s.cfg.RPMThreshold)

	startTime := time.Now()
	tokenThreshold := s.cfg.TokenThreshold
	precedingThreshold := s.cfg.PrecedingLinesThreshold

	for round := 0; round < s.cfg.MaxRound; round++ {
		if s.stopping.Load() {
			break
		}

		untranslated := s.mgr.GetItemCountByStatus(cache.StatusUntranslated)
		if untranslated == 0 {
			break
		}

		if round == 0 {
			proj := s.mgr.GetProject()
			if proj.Status == cache.ProjectUntranslated {
				s.mgr.MutateProject(func(p *cache.Project) {
					p.Extras.TotalLine = untranslated
					p.Extras.StartTime = float64(startTime.Unix())
				})
			}
		} else {
			tokenThreshold = tokenThreshold / 3
			if tokenThreshold < 1 {
				tokenThreshold = 1
			}
			precedingThreshold = 0
		}

		chunks, preceding := s.mgr.GenerateItemChunks(tokenThreshold, precedingThreshold)
		s.runRound(ctx, chunks, preceding, platform, maxWorkers, limiter, startTime)
	}

	if s.cfg.MtoolOptimizerEnable {
		s.mgr.SetItems(optimizer.Postprocess(s.mgr.GetItems()))
	}

	if s.mgr.GetItemCountByStatus(cache.StatusUntranslated) == 0 {
		s.mgr.MutateProject(func(p *cache.Project) { p.Status = cache.ProjectTranslated })
	}

	if err := s.mgr.SaveToFile(ctx); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	if err := s.fileManager.Write(s.cfg.OutputFolder, s.mgr.GetItems()); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}

	s.bus.Emit(eventbus.TranslationStopDone, nil)
	return nil
}

// runRound dispatches one round's chunks to a worker pool bounded by
// maxWorkers, gated by limiter, and folds each task's result into
// project extras via taskDoneCallback.
func (s *Scheduler) runRound(ctx context.Context, chunks, preceding [][]*cache.Item, platform config.Platform, maxWorkers int, limiter *ratelimit.TaskLimiter, startTime time.Time) {
	jobs := make(chan int, len(chunks))
	var wg sync.WaitGroup

	workers := maxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers == 0 {
		return
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if s.stopping.Load() {
					continue
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				t := &task.Task{
					Chunk:          chunks[i],
					Preceding:      preceding[i],
					Platform:       platform,
					Source:         s.cfg.SourceLanguage,
					Target:         s.cfg.TargetLanguage,
					PromptBuilder:  s.promptBuilder,
					Requester:      s.requester,
					TextPreserver:  s.textPreserver,
					Checker:        s.checker,
					RequestTimeout: s.cfg.RequestTimeout,
				}
				s.metrics.RecordChunkSent()
				requestStart := time.Now()
				result, err := t.Run(ctx)
				s.metrics.RecordRequestDuration(time.Since(requestStart))
				if err != nil || result.RowCount == 0 {
					s.metrics.RecordError()
				}
				s.metrics.RecordLinesTranslated(result.RowCount)
				s.metrics.RecordRetry(len(chunks[i]) - result.RowCount)
				s.metrics.RecordTokens(result.InputTokens, result.OutputTokens)
				s.taskDoneCallback(result, startTime)
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// taskDoneCallback folds one task's usage into the live project
// extras and requests a snapshot save, mirroring the per-task
// bookkeeping a scheduler performs after every completed unit.
func (s *Scheduler) taskDoneCallback(result task.Result, startTime time.Time) {
	s.extrasMu.Lock()
	s.mgr.MutateProject(func(p *cache.Project) {
		p.Extras.Line += result.RowCount
		p.Extras.TotalTokens += result.InputTokens + result.OutputTokens
		p.Extras.TotalOutputTokens += result.OutputTokens
		p.Extras.Time = time.Since(startTime).Seconds()
		p.Status = cache.ProjectTranslating
	})
	extras := s.mgr.GetProject().Extras
	s.extrasMu.Unlock()

	s.mgr.RequireSaveToFile()
	s.bus.Emit(eventbus.TranslationUpdate, extras)
}

// applyFilters marks items that need no LLM call as EXCLUDED: those
// the rule filter accepts as non-translatable, and those the language
// filter judges already target-acceptable.
func (s *Scheduler) applyFilters() {
	items := s.mgr.GetItems()
	excluded := 0
	for _, item := range items {
		if item.Status != cache.StatusUntranslated {
			continue
		}
		if s.ruleFilter.Filter(item.Src, item.SkipInternalFilter) || s.languageFilter.Filter(item.Src, s.cfg.SourceLanguage) {
			item.Status = cache.StatusExcluded
			excluded++
		}
	}
}

var localHostPattern = regexp.MustCompile(`^https?://localhost|^https?://\d+\.\d+\.\d+\.\d+`)

// initializeMaxWorkers resolves the effective worker pool size. A
// configured MaxWorkers above zero is used as-is. Otherwise, if the
// configured platform looks like a local llama.cpp server, it probes
// GET <host>/slots to size the pool after the server's reported slot
// count. When that yields nothing (non-local endpoint or probe
// failure), the pool is 8192 workers if RPMThreshold is set, so the rpm
// gate dominates, and 8 workers otherwise.
func (s *Scheduler) initializeMaxWorkers(ctx context.Context, platform config.Platform) int {
	if s.cfg.MaxWorkers > 0 {
		return s.cfg.MaxWorkers
	}
	if localHostPattern.MatchString(platform.APIURL) {
		if slots := probeSlotCount(ctx, platform.APIURL); slots > 0 {
			return slots
		}
	}
	if s.cfg.RPMThreshold > 0 {
		return 8192
	}
	return 8
}

func probeSlotCount(ctx context.Context, apiURL string) int {
	base := stripAPISuffix(apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/slots", nil)
	if err != nil {
		return 0
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0
	}

	var slots []any
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return 0
	}
	return len(slots)
}

var apiSuffixPattern = regexp.MustCompile(`/v\d+.*$`)

func stripAPISuffix(apiURL string) string {
	return apiSuffixPattern.ReplaceAllString(apiURL, "")
}
