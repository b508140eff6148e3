package biz

import (
	"errors"
	"fmt"
)

// Sentinel errors for the infrastructure failure taxonomy. The orchestrator
// maps these onto reason codes in the response envelope.
var (
	// ErrEmbeddingUnavailable wraps embedding provider failures.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrRetrievalUnavailable wraps vector store failures.
	ErrRetrievalUnavailable = errors.New("vector store unavailable")

	// ErrCitationInvalid marks citation derivation or validation failures.
	// It is distinguishable from infrastructure errors: the pipeline turns
	// it into a refusal, not an error outcome.
	ErrCitationInvalid = errors.New("invalid citation")
)

// CitationError carries details about the passage that broke the batch.
type CitationError struct {
	Index      int
	DocumentID string
	Detail     string
}

func (e *CitationError) Error() string {
	return fmt.Sprintf("invalid citation at passage %d (document %q): %s", e.Index, e.DocumentID, e.Detail)
}

// Unwrap makes the error match ErrCitationInvalid with errors.Is.
func (e *CitationError) Unwrap() error {
	return ErrCitationInvalid
}
