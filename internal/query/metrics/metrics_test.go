package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordOutcomes(t *testing.T) {
	m := NewQueryMetrics()

	m.RecordAnswered()
	m.RecordAnswered()
	m.RecordRefusal("NO_RELEVANT_CONTEXT")
	m.RecordRefusal("CITATION_FAILURE")
	m.RecordError()

	snap := m.Snapshot()
	assert.Equal(t, uint64(5), snap["queries_total"])
	assert.Equal(t, uint64(2), snap["queries_answered"])
	assert.Equal(t, uint64(1), snap["refusals_no_context"])
	assert.Equal(t, uint64(1), snap["refusals_citation_failure"])
	assert.Equal(t, uint64(1), snap["queries_errors"])
}

func TestRecordCache(t *testing.T) {
	m := NewQueryMetrics()

	m.RecordCache(true)
	m.RecordCache(true)
	m.RecordCache(false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap["cache_hits"])
	assert.Equal(t, uint64(1), snap["cache_misses"])
}

func TestRecordRetrievalAndLLM(t *testing.T) {
	m := NewQueryMetrics()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(0, errors.New("down"))
	m.RecordLLMCall(200*time.Millisecond, nil)
	m.RecordLLMCall(0, errors.New("down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap["retrieval_total"])
	assert.Equal(t, uint64(1), snap["retrieval_errors"])
	assert.InDelta(t, 0.1, snap["retrieval_duration_seconds"].(float64), 0.0001)
	assert.Equal(t, uint64(2), snap["llm_calls_total"])
	assert.Equal(t, uint64(1), snap["llm_calls_errors"])
	assert.InDelta(t, 0.2, snap["llm_calls_duration_seconds"].(float64), 0.0001)
}

func TestRecordBudgetOverrun(t *testing.T) {
	m := NewQueryMetrics()

	m.RecordBudgetOverrun()
	m.RecordBudgetOverrun()

	assert.Equal(t, uint64(2), m.Snapshot()["budget_overruns"])
}

func TestConcurrentRecording(t *testing.T) {
	m := NewQueryMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAnswered()
			m.RecordRetrieval(time.Millisecond, nil)
			m.RecordLLMCall(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(50), snap["queries_total"])
	assert.Equal(t, uint64(50), snap["retrieval_total"])
	assert.Equal(t, uint64(50), snap["llm_calls_total"])
}

func TestGetQueryMetricsIsSingleton(t *testing.T) {
	assert.Same(t, GetQueryMetrics(), GetQueryMetrics())
}
