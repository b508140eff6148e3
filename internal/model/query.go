// Package model defines the question-answering domain types.
package model

import (
	"time"
)

// QueryMode selects the retrieval scope of a query.
type QueryMode string

const (
	// ModeBookWide searches the whole indexed book.
	ModeBookWide QueryMode = "book-wide"

	// ModeSelectedText answers only from text the reader selected.
	ModeSelectedText QueryMode = "selected-text"
)

// ResponseStatus is the terminal outcome of a query.
type ResponseStatus string

const (
	// StatusSuccess means a grounded answer with citations was produced.
	StatusSuccess ResponseStatus = "success"

	// StatusInsufficientContext means the system refused to answer
	// rather than answer without grounding.
	StatusInsufficientContext ResponseStatus = "insufficient_context"

	// StatusError means an infrastructure failure prevented an answer.
	StatusError ResponseStatus = "error"
)

// ReasonCode explains a refusal or error outcome.
type ReasonCode string

const (
	// ReasonNoRelevantContext: retrieval found nothing usable.
	ReasonNoRelevantContext ReasonCode = "NO_RELEVANT_CONTEXT"

	// ReasonCitationFailure: citations could not be derived or validated.
	ReasonCitationFailure ReasonCode = "CITATION_FAILURE"

	// ReasonEmbeddingUnavailable: the embedding provider failed.
	ReasonEmbeddingUnavailable ReasonCode = "EMBEDDING_UNAVAILABLE"

	// ReasonRetrievalUnavailable: the vector store failed.
	ReasonRetrievalUnavailable ReasonCode = "RETRIEVAL_UNAVAILABLE"

	// ReasonTimeout: the response time budget expired.
	ReasonTimeout ReasonCode = "TIMEOUT"

	// ReasonInternal: any other unexpected failure.
	ReasonInternal ReasonCode = "ERROR"
)

// Sentinel identifiers for selected-text queries. A selected-text query
// never touches the corpus; its single synthetic passage carries these ids.
const (
	SelectedTextSource  = "selected_text_session"
	SelectedTextChunkID = "temp_selected_text"
)

// QueryRequest is an incoming question.
type QueryRequest struct {
	ID           string         `json:"id"`
	Question     string         `json:"question"`
	Mode         QueryMode      `json:"mode"`
	SelectedText string         `json:"selected_text,omitempty"`
	UserContext  map[string]any `json:"user_context,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ContextPassage is one unit of retrieved (or synthetic) grounding text.
type ContextPassage struct {
	ID         string
	DocumentID string
	Content    string
	Ordinal    int
	// Score is the retrieval similarity score, nil when unknown
	// (selected-text passages are never scored).
	Score *float64
}

// GenerationResult is the outcome of one generation attempt.
type GenerationResult struct {
	Answer      string
	Status      ResponseStatus
	Confidence  *float64
	Reason      ReasonCode
	Explanation string
}

// Citation points an answer back to a source passage.
type Citation struct {
	ID             string  `json:"id"`
	ResponseID     string  `json:"response_id"`
	DocumentID     string  `json:"document_id"`
	Chapter        string  `json:"chapter"`
	Section        string  `json:"section"`
	SourcePath     string  `json:"source_path,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	TextSnippet    string  `json:"text_snippet"`
}

// QueryResponse is the single response envelope for all outcomes.
//
// Invariants enforced by the constructors below:
//   - success: Answer non-nil, Citations non-empty, ConfidenceScore set
//   - insufficient_context / error: Answer nil, Citations empty,
//     ConfidenceScore nil, ReasonCode set
type QueryResponse struct {
	ID               string         `json:"id"`
	QueryID          string         `json:"query_id"`
	Answer           *string        `json:"answer"`
	Citations        []Citation     `json:"citations"`
	RetrievedChunks  []string       `json:"retrieved_chunks"`
	ConfidenceScore  *float64       `json:"confidence_score"`
	GenerationTimeMS float64        `json:"generation_time_ms"`
	Status           ResponseStatus `json:"status"`
	ReasonCode       ReasonCode     `json:"reason_code,omitempty"`
	Explanation      string         `json:"explanation,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// NewSuccessResponse builds a well-formed success envelope.
func NewSuccessResponse(queryID, answer string, citations []Citation, retrievedChunks []string, confidence *float64, elapsedMS float64) *QueryResponse {
	if retrievedChunks == nil {
		retrievedChunks = []string{}
	}
	return &QueryResponse{
		ID:               "resp_" + queryID,
		QueryID:          queryID,
		Answer:           &answer,
		Citations:        citations,
		RetrievedChunks:  retrievedChunks,
		ConfidenceScore:  confidence,
		GenerationTimeMS: elapsedMS,
		Status:           StatusSuccess,
		Timestamp:        time.Now().UTC(),
	}
}

// NewRefusalResponse builds a well-formed refusal envelope.
func NewRefusalResponse(queryID string, reason ReasonCode, explanation string) *QueryResponse {
	return &QueryResponse{
		ID:              "ref_" + queryID,
		QueryID:         queryID,
		Citations:       []Citation{},
		RetrievedChunks: []string{},
		Status:          StatusInsufficientContext,
		ReasonCode:      reason,
		Explanation:     explanation,
		Timestamp:       time.Now().UTC(),
	}
}

// NewErrorResponse builds a well-formed error envelope.
func NewErrorResponse(queryID string, reason ReasonCode, explanation string) *QueryResponse {
	return &QueryResponse{
		ID:              "err_" + queryID,
		QueryID:         queryID,
		Citations:       []Citation{},
		RetrievedChunks: []string{},
		Status:          StatusError,
		ReasonCode:      reason,
		Explanation:     explanation,
		Timestamp:       time.Now().UTC(),
	}
}
