// Package task implements a single translation unit of work: one
// chunk's worth of source lines, sent to the configured platform and
// folded back into cache item state.
package task

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lingagacha/mtlcore/cache"
	"github.com/lingagacha/mtlcore/config"
	"github.com/lingagacha/mtlcore/external"
	"github.com/lingagacha/mtlcore/llmclient"
	"github.com/lingagacha/mtlcore/response"
)

// Result summarizes one task's outcome for the scheduler's extras
// fold: how many rows it covered and how many tokens it spent. A task
// that failed outright (transport error, unparsable response) returns
// a zero Result; the rows it touched remain UNTRANSLATED and are
// retried by the next round.
type Result struct {
	RowCount     int
	InputTokens  int
	OutputTokens int
}

// Task translates one chunk: build the request dicts, call the LLM,
// decode and validate the response, and apply accepted lines back onto
// the chunk's items.
type Task struct {
	Chunk     []*cache.Item
	Preceding []*cache.Item

	Platform config.Platform
	Source   config.Language
	Target   config.Language

	PromptBuilder  external.PromptBuilder
	Requester      llmclient.Requester
	TextPreserver  external.TextPreserver
	Checker        *response.Checker
	RequestTimeout time.Duration
}

// Run executes the task. err is non-nil only for a caller
// misconfiguration (nil collaborators); transport and validation
// failures are swallowed into a zero Result per row-level retry
// semantics, with the affected items' RetryCount bumped and status
// left UNTRANSLATED.
func (t *Task) Run(ctx context.Context) (Result, error) {
	if t.PromptBuilder == nil || t.Requester == nil || t.Checker == nil {
		return Result{}, fmt.Errorf("task: missing required collaborator")
	}

	src := make(map[string]string, len(t.Chunk))
	skipInternal := make(map[string]bool, len(t.Chunk))
	restorers := make(map[string]func(string) string, len(t.Chunk))
	for i, item := range t.Chunk {
		key := strconv.Itoa(i)
		text := item.Src
		if t.TextPreserver != nil {
			preserved, restore := t.TextPreserver.Preserve(item.Src)
			text = preserved
			restorers[key] = restore
		}
		src[key] = text
		skipInternal[key] = item.SkipInternalFilter
	}

	preceding := make([]string, len(t.Preceding))
	for i, item := range t.Preceding {
		preceding[i] = item.Src
	}

	prompt := t.PromptBuilder.Build(src, preceding, t.Source, t.Target)

	attemptCtx := ctx
	var cancel context.CancelFunc
	if t.RequestTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, t.RequestTimeout)
		defer cancel()
	}

	raw, inputTokens, outputTokens, err := t.Requester.Request(attemptCtx, prompt, t.Platform)
	if err != nil {
		t.bumpRetry()
		return Result{}, nil
	}

	decoded := response.Decode(raw)
	retryCount := 0
	if len(t.Chunk) > 0 {
		retryCount = t.Chunk[0].RetryCount
	}
	overall, lines := t.Checker.Check(src, decoded.Dst, skipInternal, retryCount)
	if overall == response.ErrorFailData || overall == response.ErrorFailLineCount {
		t.bumpRetry()
		return Result{}, nil
	}

	rowCount := 0
	for i, item := range t.Chunk {
		key := strconv.Itoa(i)
		if lines[key] != response.ErrorNone {
			item.RetryCount++
			continue
		}
		dst := decoded.Dst[key]
		if restore, ok := restorers[key]; ok {
			dst = restore(dst)
		}
		item.Dst = dst
		item.Status = cache.StatusTranslated
		rowCount++
	}

	return Result{RowCount: rowCount, InputTokens: inputTokens, OutputTokens: outputTokens}, nil
}

func (t *Task) bumpRetry() {
	for _, item := range t.Chunk {
		item.RetryCount++
	}
}
