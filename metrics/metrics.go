// Package metrics collects counters for a translation session and
// produces the final report that the translate command prints when a
// session ends.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Metrics collects counters and histograms for one translation
// session. Counters use atomic operations for thread-safe updates from
// the worker pool; RequestDuration uses a mutex since it accumulates.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	linesTranslated int64 // rows accepted across all chunks
	chunksSent      int64 // chunks dispatched to the LLM
	retries         int64 // rows bumped for a retry
	errors          int64 // transport/validation failures
	inputTokens     int64
	outputTokens    int64

	// Histograms for performance analysis
	requestDuration time.Duration // total time spent waiting on LLM calls
	startTime       time.Time
}

// New creates a Metrics instance with the session clock started.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordLinesTranslated adds n accepted rows to the running total.
func (m *Metrics) RecordLinesTranslated(n int) {
	atomic.AddInt64(&m.linesTranslated, int64(n))
}

// RecordChunkSent increments the dispatched-chunk counter.
func (m *Metrics) RecordChunkSent() {
	atomic.AddInt64(&m.chunksSent, 1)
}

// RecordRetry adds n retried rows to the running total.
func (m *Metrics) RecordRetry(n int) {
	atomic.AddInt64(&m.retries, int64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError() {
	atomic.AddInt64(&m.errors, 1)
}

// RecordTokens adds one task's input/output token usage to the totals.
func (m *Metrics) RecordTokens(input, output int) {
	atomic.AddInt64(&m.inputTokens, int64(input))
	atomic.AddInt64(&m.outputTokens, int64(output))
}

// RecordRequestDuration accumulates time spent waiting on one LLM call.
func (m *Metrics) RecordRequestDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestDuration += d
}

// Report is the final snapshot of a translation session's progress,
// rendered for console output via String and as JSON via MarshalJSON.
type Report struct {
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	LinesTranslated int64         `json:"linesTranslated"`
	ChunksSent      int64         `json:"chunksSent"`
	Retries         int64         `json:"retries"`
	Errors          int64         `json:"errors"`
	InputTokens     int64         `json:"inputTokens"`
	OutputTokens    int64         `json:"outputTokens"`
	Duration        time.Duration `json:"duration"`
	Throughput      float64       `json:"throughput"` // lines per second
}

// GenerateReport computes the current Report from the live counters.
func (m *Metrics) GenerateReport() Report {
	endTime := time.Now()
	duration := endTime.Sub(m.startTime)

	var throughput float64
	if duration > 0 {
		throughput = float64(atomic.LoadInt64(&m.linesTranslated)) / duration.Seconds()
	}

	return Report{
		StartTime:       m.startTime,
		EndTime:         endTime,
		LinesTranslated: atomic.LoadInt64(&m.linesTranslated),
		ChunksSent:      atomic.LoadInt64(&m.chunksSent),
		Retries:         atomic.LoadInt64(&m.retries),
		Errors:          atomic.LoadInt64(&m.errors),
		InputTokens:     atomic.LoadInt64(&m.inputTokens),
		OutputTokens:    atomic.LoadInt64(&m.outputTokens),
		Duration:        duration,
		Throughput:      throughput,
	}
}

// MarshalJSON implements json.Marshaler, rendering Duration as its
// Go-syntax string form rather than a raw nanosecond count.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable summary for console output.
func (r Report) String() string {
	return fmt.Sprintf(
		"Translation session: %s\n"+
			"Lines translated: %d\n"+
			"Chunks sent: %d\n"+
			"Retries: %d\n"+
			"Errors: %d\n"+
			"Tokens: %d in / %d out\n"+
			"Throughput: %.2f lines/sec",
		r.Duration,
		r.LinesTranslated,
		r.ChunksSent,
		r.Retries,
		r.Errors,
		r.InputTokens,
		r.OutputTokens,
		r.Throughput,
	)
}
