package observability

import (
	"strconv"
	"sync"
	"time"
)

// Counters provides basic in-memory counters for pipeline and feed outcomes.
type Counters struct {
	mu sync.Mutex

	classified       int64
	retries          int64
	terminalFailures int64
	fallbacks        int64

	feedPublished int64
	feedDropped   int64

	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewCounters initializes counter storage.
func NewCounters() *Counters {
	return &Counters{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordClassification counts a completed classification run.
func (m *Counters) RecordClassification() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classified++
}

// RecordRetry counts a retried provider attempt.
func (m *Counters) RecordRetry() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

// RecordTerminalFailure counts a classification run that exhausted retries.
func (m *Counters) RecordTerminalFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminalFailures++
}

// RecordSentimentFallback counts a sentiment stage fallback to Neutral.
func (m *Counters) RecordSentimentFallback() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

// RecordFeedPublish counts a delivered feed event.
func (m *Counters) RecordFeedPublish() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedPublished++
}

// RecordFeedDrop counts an event dropped for a slow subscriber.
func (m *Counters) RecordFeedDrop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedDropped++
}

// RecordRequest increments counters for HTTP requests.
func (m *Counters) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

// RecordError increments HTTP error counters.
func (m *Counters) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot returns current counter values for the health endpoint.
func (m *Counters) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"classified":          m.classified,
		"provider_retries":    m.retries,
		"terminal_failures":   m.terminalFailures,
		"sentiment_fallbacks": m.fallbacks,
		"feed_published":      m.feedPublished,
		"feed_dropped":        m.feedDropped,
	}
}
