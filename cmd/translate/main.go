// Package main implements the translate command-line interface: it
// parses flags into a config.Config, wires the cache manager, event
// bus, and scheduler, and drives one translation session to
// completion (or until interrupted).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lingagacha/mtlcore/cache"
	"github.com/lingagacha/mtlcore/config"
	"github.com/lingagacha/mtlcore/eventbus"
	"github.com/lingagacha/mtlcore/snapshot"
	"github.com/lingagacha/mtlcore/translator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags, validates configuration, and drives one
// translation session against the configured corpus folder.
func run() error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)

	folder := fs.String("folder", "", "corpus folder to translate")
	platformName := fs.String("platform", "", "name of the platform to activate")
	apiURL := fs.String("api-url", "", "LLM endpoint URL for the activated platform")
	apiFormat := fs.String("api-format", string(config.APIFormatOpenAI), "API format (OPENAI|SAKURALLM)")
	model := fs.String("model", "", "model name sent in the chat completion request")
	accessKey := fs.String("access-key", "", "bearer token for the activated platform")
	source := fs.String("source", string(config.LanguageJA), "source language")
	target := fs.String("target", string(config.LanguageEN), "target language")
	maxRound := fs.Int("max-round", 16, "maximum number of translation rounds")
	maxWorkers := fs.Int("workers", 0, "maximum concurrent workers (0 = auto-detect)")
	rpmThreshold := fs.Int("rpm", 0, "requests-per-minute budget (0 = disabled)")
	tokenThreshold := fs.Int("token-threshold", 2048, "token budget per chunk")
	precedingLines := fs.Int("preceding-lines", 6, "preceding context lines carried into round 0")
	mtoolOptimizer := fs.Bool("mtool-optimizer", false, "split/rejoin multi-line KVJSON values")
	snapshotS3URI := fs.String("snapshot-s3-uri", "", "optional S3 URI to mirror cache snapshots to")
	snapshotRegion := fs.String("snapshot-region", "", "AWS region for the snapshot mirror")
	requestTimeout := fs.Duration("request-timeout", 60*time.Second, "per-request LLM call timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg := &config.Config{
		Platforms: []config.Platform{{
			Name:      *platformName,
			APIURL:    *apiURL,
			APIFormat: config.APIFormat(*apiFormat),
			Model:     *model,
			AccessKey: *accessKey,
		}},
		ActivatePlatform:        *platformName,
		SourceLanguage:          config.Language(*source),
		TargetLanguage:          config.Language(*target),
		OutputFolder:            *folder,
		MaxRound:                *maxRound,
		MaxWorkers:              *maxWorkers,
		RPMThreshold:            *rpmThreshold,
		TokenThreshold:          *tokenThreshold,
		PrecedingLinesThreshold: *precedingLines,
		MtoolOptimizerEnable:    *mtoolOptimizer,
		Snapshot: config.SnapshotMirror{
			Enable: *snapshotS3URI != "",
			S3URI:  *snapshotS3URI,
			Region: *snapshotRegion,
		},
		RequestTimeout:  *requestTimeout,
		ShutdownTimeout: *shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mirror snapshot.Store
	if cfg.Snapshot.Enable {
		s3Store, err := snapshot.NewS3Store(ctx, cfg.Snapshot.S3URI, cfg.Snapshot.Region)
		if err != nil {
			return fmt.Errorf("failed to create snapshot mirror: %w", err)
		}
		mirror = s3Store
	}

	mgr := cache.NewManager(snapshot.NewLocalStore(), mirror, cfg.OutputFolder)
	bus := eventbus.New()
	sched := translator.New(cfg, mgr, bus, nil, nil, nil, nil, nil, nil)

	go func() {
		ch := bus.Subscribe(eventbus.TranslationUpdate)
		for payload := range ch {
			extras, ok := payload.(cache.Extras)
			if !ok {
				continue
			}
			fmt.Printf("\rprogress: %d/%d lines", extras.Line, extras.TotalLine)
		}
	}()

	fmt.Printf("Starting translation of %s (%s -> %s)\n", cfg.OutputFolder, cfg.SourceLanguage, cfg.TargetLanguage)

	if err := sched.Run(ctx, cache.ProjectUntranslated); err != nil {
		return fmt.Errorf("translation session failed: %w", err)
	}

	report := sched.Metrics().GenerateReport()
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err == nil {
		fmt.Printf("\n%s\n", reportJSON)
	}
	fmt.Println(report.String())
	return nil
}
