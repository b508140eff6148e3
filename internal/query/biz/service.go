// Package biz implements the grounded question-answering pipeline.
package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/internal/query/metrics"
	"github.com/kart-io/bookqa/internal/query/store"
	"github.com/kart-io/bookqa/pkg/llm"
)

// Service is the query pipeline interface.
type Service interface {
	// Query runs one question through the full pipeline. It returns
	// validation errors for malformed requests; otherwise it always
	// returns a well-formed response, never an error.
	Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, []ValidationError)

	// Stats returns corpus, cache, and pipeline statistics.
	Stats(ctx context.Context) (map[string]any, error)
}

// ServiceConfig aggregates the pipeline component configs.
type ServiceConfig struct {
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig

	// ResponseBudget is the time budget for a complete answer, applied
	// as a context deadline on every downstream call.
	ResponseBudget time.Duration

	// SnippetMaxLen bounds citation snippets.
	SnippetMaxLen int
}

// QueryPipeline orchestrates validation, retrieval, gating, generation,
// and citation into a single terminal response. Every path out of Query
// ends in exactly one of: answered, refused, or errored.
type QueryPipeline struct {
	vectorStore   store.VectorStore
	embedProvider llm.EmbeddingProvider
	retriever     *Retriever
	generator     *Generator
	citations     *CitationBuilder
	gate          GroundingGate
	cache         *ResponseCache
	metrics       *metrics.QueryMetrics
	budget        time.Duration
	collection    string
}

// NewQueryPipeline wires the pipeline from its dependencies.
// cache may be nil when caching is disabled.
func NewQueryPipeline(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *ResponseCache,
	config *ServiceConfig,
) *QueryPipeline {
	return &QueryPipeline{
		vectorStore:   vectorStore,
		embedProvider: embedProvider,
		retriever:     NewRetriever(vectorStore, config.RetrieverConfig),
		generator:     NewGenerator(chatProvider, config.GeneratorConfig),
		citations:     NewCitationBuilder(config.SnippetMaxLen),
		cache:         cache,
		metrics:       metrics.GetQueryMetrics(),
		budget:        config.ResponseBudget,
		collection:    config.RetrieverConfig.Collection,
	}
}

var _ Service = (*QueryPipeline)(nil)

// Query runs the pipeline stages in fixed order:
// validate, gate, cache, embed, retrieve, gate, generate, gate, cite, gate.
func (p *QueryPipeline) Query(ctx context.Context, req *model.QueryRequest) (resp *model.QueryResponse, verrs []ValidationError) {
	start := time.Now()

	if verrs = ValidateRequest(req); len(verrs) > 0 {
		logger.Infow("query rejected", "query_id", req.ID, "violations", len(verrs))
		return nil, verrs
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	// Any panic downstream still yields a well-formed error envelope.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("pipeline panic", "query_id", req.ID, "panic", fmt.Sprintf("%v", r))
			resp = p.finishError(ctx, req, start, model.ReasonInternal, "An unexpected internal error occurred.")
			verrs = nil
		}
	}()

	// The response budget is a real deadline, not an advisory timer.
	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	if d := p.gate.CheckQuery(req.Question); d.Refused() {
		return p.finishRefusal(req, start, d), nil
	}

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, req)
		if err == nil && cached != nil {
			p.metrics.RecordCache(true)
			p.metrics.RecordAnswered()
			// Re-key the cached envelope for this request
			cached.QueryID = req.ID
			cached.ID = "resp_" + req.ID
			cached.Timestamp = time.Now().UTC()
			cached.GenerationTimeMS = msSince(start)
			return cached, nil
		}
		p.metrics.RecordCache(false)
	}

	var embedding []float32
	if req.Mode == model.ModeBookWide {
		var err error
		embedding, err = p.embedQuestion(ctx, req.Question)
		if err != nil {
			logger.Errorw("embedding failed", "query_id", req.ID, "error", err.Error())
			return p.finishError(ctx, req, start, model.ReasonEmbeddingUnavailable, "The embedding service is unavailable."), nil
		}
	}

	retrievalStart := time.Now()
	passages, err := p.retriever.Retrieve(ctx, req.Mode, embedding, req.SelectedText)
	p.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		logger.Errorw("retrieval failed", "query_id", req.ID, "error", err.Error())
		return p.finishError(ctx, req, start, model.ReasonRetrievalUnavailable, "The book index is unavailable."), nil
	}

	if d := p.gate.CheckRetrieval(passages); d.Refused() {
		return p.finishRefusal(req, start, d), nil
	}

	generateStart := time.Now()
	result := p.generator.Generate(ctx, req.Question, req.Mode, passages)
	var genErr error
	if result.Status == model.StatusError {
		genErr = errors.New(result.Explanation)
	}
	p.metrics.RecordLLMCall(time.Since(generateStart), genErr)
	if result.Status == model.StatusError {
		return p.finishError(ctx, req, start, result.Reason, result.Explanation), nil
	}

	if d := p.gate.CheckGeneration(result); d.Refused() {
		return p.finishRefusal(req, start, d), nil
	}

	responseID := "resp_" + req.ID
	citations, citErr := p.citations.Build(responseID, passages)
	if d := p.gate.CheckCitations(citErr); d.Refused() {
		logger.Warnw("citation derivation failed", "query_id", req.ID, "error", citErr.Error())
		return p.finishRefusal(req, start, d), nil
	}

	chunkIDs := make([]string, len(passages))
	for i, passage := range passages {
		chunkIDs[i] = passage.ID
	}

	resp = model.NewSuccessResponse(req.ID, result.Answer, citations, chunkIDs, result.Confidence, msSince(start))
	p.metrics.RecordAnswered()
	p.checkBudget(req, start)

	if p.cache != nil {
		_ = p.cache.Set(ctx, req, resp)
	}

	logger.Infow("query answered",
		"query_id", req.ID,
		"mode", string(req.Mode),
		"citations", len(citations),
		"elapsed_ms", resp.GenerationTimeMS,
	)
	return resp, nil
}

// embedQuestion vectorizes the question, wrapping provider failures so
// they match ErrEmbeddingUnavailable.
func (p *QueryPipeline) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	embedding, err := p.embedProvider.EmbedSingle(ctx, question)
	p.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return embedding, nil
}

// Stats returns corpus, cache, and pipeline statistics.
func (p *QueryPipeline) Stats(ctx context.Context) (map[string]any, error) {
	count, err := p.vectorStore.GetStats(ctx, p.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection stats: %w", err)
	}

	stats := map[string]any{
		"collection":  p.collection,
		"chunk_count": count,
		"metrics":     p.metrics.Snapshot(),
	}

	if p.cache != nil {
		if cacheStats, err := p.cache.GetStats(ctx); err == nil {
			stats["cache"] = cacheStats
		}
	}

	return stats, nil
}

// finishRefusal terminates the query with an epistemic refusal.
func (p *QueryPipeline) finishRefusal(req *model.QueryRequest, start time.Time, d GateDecision) *model.QueryResponse {
	resp := model.NewRefusalResponse(req.ID, d.Reason, d.Explanation)
	resp.GenerationTimeMS = msSince(start)
	p.metrics.RecordRefusal(string(d.Reason))
	logger.Infow("query refused",
		"query_id", req.ID,
		"reason", string(d.Reason),
		"elapsed_ms", resp.GenerationTimeMS,
	)
	return resp
}

// finishError terminates the query with an infrastructure error. Deadline
// expiry takes precedence over the failure that surfaced it, so callers
// can tell a slow backend from a broken one.
func (p *QueryPipeline) finishError(ctx context.Context, req *model.QueryRequest, start time.Time, reason model.ReasonCode, explanation string) *model.QueryResponse {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = model.ReasonTimeout
		explanation = "The response time budget was exceeded."
	}
	resp := model.NewErrorResponse(req.ID, reason, explanation)
	resp.GenerationTimeMS = msSince(start)
	p.metrics.RecordError()
	p.checkBudget(req, start)
	return resp
}

// checkBudget flags responses that completed past the budget.
func (p *QueryPipeline) checkBudget(req *model.QueryRequest, start time.Time) {
	if elapsed := time.Since(start); elapsed > p.budget {
		p.metrics.RecordBudgetOverrun()
		logger.Warnw("response budget exceeded",
			"query_id", req.ID,
			"elapsed_ms", float64(elapsed.Milliseconds()),
			"budget_ms", float64(p.budget.Milliseconds()),
		)
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
