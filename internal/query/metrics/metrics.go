// Package metrics collects business metrics for the query service.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// QueryMetrics holds counters for the query pipeline.
type QueryMetrics struct {
	// Query outcomes
	queriesTotal     uint64
	queriesAnswered  uint64
	queriesErrors    uint64
	refusalNoContext uint64
	refusalCitation  uint64

	// Cache
	cacheHits   uint64
	cacheMisses uint64

	// Retrieval
	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64 // seconds

	// LLM calls
	llmCallsTotal    uint64
	llmCallsErrors   uint64
	llmCallsDuration float64 // seconds

	// Budget
	budgetOverruns uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalQueryMetrics *QueryMetrics
	queryMetricsOnce   sync.Once
)

// GetQueryMetrics returns the process-wide metrics instance.
func GetQueryMetrics() *QueryMetrics {
	queryMetricsOnce.Do(func() {
		globalQueryMetrics = NewQueryMetrics()
	})
	return globalQueryMetrics
}

// NewQueryMetrics creates an isolated metrics instance, mainly for tests.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{startTime: time.Now()}
}

// RecordAnswered records a successful grounded answer.
func (m *QueryMetrics) RecordAnswered() {
	atomic.AddUint64(&m.queriesTotal, 1)
	atomic.AddUint64(&m.queriesAnswered, 1)
}

// RecordRefusal records an epistemic refusal by reason.
func (m *QueryMetrics) RecordRefusal(reason string) {
	atomic.AddUint64(&m.queriesTotal, 1)
	switch reason {
	case "CITATION_FAILURE":
		atomic.AddUint64(&m.refusalCitation, 1)
	default:
		atomic.AddUint64(&m.refusalNoContext, 1)
	}
}

// RecordError records an infrastructure error outcome.
func (m *QueryMetrics) RecordError() {
	atomic.AddUint64(&m.queriesTotal, 1)
	atomic.AddUint64(&m.queriesErrors, 1)
}

// RecordCache records a cache lookup.
func (m *QueryMetrics) RecordCache(hit bool) {
	if hit {
		atomic.AddUint64(&m.cacheHits, 1)
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
	}
}

// RecordRetrieval records a retrieval operation.
func (m *QueryMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records an LLM call.
func (m *QueryMetrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordBudgetOverrun records a response that finished past its budget.
func (m *QueryMetrics) RecordBudgetOverrun() {
	atomic.AddUint64(&m.budgetOverruns, 1)
}

// Snapshot returns the current counters as a map.
func (m *QueryMetrics) Snapshot() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	return map[string]any{
		"queries_total":              atomic.LoadUint64(&m.queriesTotal),
		"queries_answered":           atomic.LoadUint64(&m.queriesAnswered),
		"queries_errors":             atomic.LoadUint64(&m.queriesErrors),
		"refusals_no_context":        atomic.LoadUint64(&m.refusalNoContext),
		"refusals_citation_failure":  atomic.LoadUint64(&m.refusalCitation),
		"cache_hits":                 atomic.LoadUint64(&m.cacheHits),
		"cache_misses":               atomic.LoadUint64(&m.cacheMisses),
		"retrieval_total":            atomic.LoadUint64(&m.retrievalTotal),
		"retrieval_errors":           atomic.LoadUint64(&m.retrievalErrors),
		"retrieval_duration_seconds": retrievalDuration,
		"llm_calls_total":            atomic.LoadUint64(&m.llmCallsTotal),
		"llm_calls_errors":           atomic.LoadUint64(&m.llmCallsErrors),
		"llm_calls_duration_seconds": llmDuration,
		"budget_overruns":            atomic.LoadUint64(&m.budgetOverruns),
		"uptime_seconds":             time.Since(m.startTime).Seconds(),
	}
}
