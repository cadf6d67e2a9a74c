// Package llmclient implements the default HTTP-based
// TranslatorRequester, the only built-in caller of an external LLM
// completion endpoint.
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lingagacha/mtlcore/config"
)

// Requester obtains a completion for prompt against platform, returning
// the raw response text and the input/output token usage the endpoint
// reported.
type Requester interface {
	Request(ctx context.Context, prompt string, platform config.Platform) (text string, inputTokens, outputTokens int, err error)
}

// HTTPRequester calls an OpenAI-compatible chat completions endpoint,
// retrying with exponential backoff and jitter on 429 and 5xx
// responses up to maxAttempts times. The caller's context timeout is
// the authoritative bound: retries stop as soon as it is cancelled.
type HTTPRequester struct {
	client      *http.Client
	maxAttempts int
}

// NewHTTPRequester builds an HTTPRequester using http.DefaultClient's
// transport settings with no client-level timeout (the caller supplies
// a per-attempt context deadline instead).
func NewHTTPRequester() *HTTPRequester {
	return &HTTPRequester{client: &http.Client{}, maxAttempts: 5}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Request posts prompt as a single user message and returns the first
// choice's content alongside token usage.
func (r *HTTPRequester) Request(ctx context.Context, prompt string, platform config.Platform) (string, int, int, error) {
	body, err := json.Marshal(chatRequest{
		Model:    platform.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		text, inTok, outTok, retryable, err := r.attempt(ctx, platform, body)
		if err == nil {
			return text, inTok, outTok, nil
		}
		lastErr = err
		if !retryable {
			return "", 0, 0, err
		}
		if !backoffWait(ctx, attempt) {
			return "", 0, 0, ctx.Err()
		}
	}
	return "", 0, 0, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (r *HTTPRequester) attempt(ctx context.Context, platform config.Platform, body []byte) (text string, inputTokens, outputTokens int, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, platform.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if platform.AccessKey != "" {
		req.Header.Set("Authorization", "Bearer "+platform.AccessKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, 0, true, fmt.Errorf("request platform %s: %w", platform.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, true, fmt.Errorf("read response: %w", err)
	}

	if isThrottlingStatus(resp.StatusCode) {
		return "", 0, 0, true, fmt.Errorf("platform %s returned status %d", platform.Name, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, false, fmt.Errorf("platform %s returned status %d: %s", platform.Name, resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", 0, 0, false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, false, fmt.Errorf("platform %s returned no choices", platform.Name)
	}

	return parsed.Choices[0].Message.Content, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, false, nil
}

// isThrottlingStatus reports whether status indicates a transient
// failure worth retrying: rate limiting or a server-side fault.
func isThrottlingStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoffWait sleeps for an exponentially increasing base duration,
// capped at 30s, plus a random jitter of up to that base again (so at
// most 60s), returning false if ctx is cancelled first.
func backoffWait(ctx context.Context, attempt int) bool {
	base := 200 * time.Millisecond
	maxDelay := 30 * time.Second

	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay) + 1))
	delay += jitter

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
