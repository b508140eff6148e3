// Package query provides configuration options for the question-answering pipeline.
package query

import (
	"fmt"
	"time"

	"github.com/kart-io/bookqa/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// defaultBookWidePrompt is used when the query spans the whole indexed book.
const defaultBookWidePrompt = `You are a helpful assistant that answers questions about a book.
Answer the question using ONLY the provided book content below.
If the context does not contain enough information to answer the question,
reply that you cannot answer based on the book content.

Book content:
{{context}}

Question: {{question}}

Answer:`

// defaultSelectedTextPrompt is used when the reader asks about a passage
// they selected themselves. It must never pull in the wider corpus.
const defaultSelectedTextPrompt = `You are a helpful assistant that answers questions about a passage
the reader selected from a book. Answer using ONLY the selected text below.
Do not use any external knowledge. If the selected text does not contain the
answer, reply that the answer is not found in the selected text.

Selected text:
{{context}}

Question: {{question}}

Answer:`

// Options contains pipeline configuration.
type Options struct {
	// Collection is the Milvus collection holding the book chunks.
	Collection string `json:"collection" mapstructure:"collection"`

	// TopK is the number of chunks retrieved per book-wide query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ResponseBudget is the time budget for a complete answer.
	// It is applied as a request context deadline.
	ResponseBudget time.Duration `json:"response-budget" mapstructure:"response-budget"`

	// SnippetMaxLen is the maximum citation snippet length in runes.
	SnippetMaxLen int `json:"snippet-max-len" mapstructure:"snippet-max-len"`

	// ContextPreviewLen is the maximum per-passage length included in the prompt.
	ContextPreviewLen int `json:"context-preview-len" mapstructure:"context-preview-len"`

	// Confidence is the confidence score attached to grounded answers.
	Confidence float64 `json:"confidence" mapstructure:"confidence"`

	// BookWidePrompt is the prompt template for book-wide queries.
	BookWidePrompt string `json:"book-wide-prompt" mapstructure:"book-wide-prompt"`

	// SelectedTextPrompt is the prompt template for selected-text queries.
	SelectedTextPrompt string `json:"selected-text-prompt" mapstructure:"selected-text-prompt"`
}

// NewOptions creates default pipeline options.
func NewOptions() *Options {
	return &Options{
		Collection:         "book_chunks",
		TopK:               5,
		ResponseBudget:     5 * time.Second,
		SnippetMaxLen:      200,
		ContextPreviewLen:  500,
		Confidence:         0.85,
		BookWidePrompt:     defaultBookWidePrompt,
		SelectedTextPrompt: defaultSelectedTextPrompt,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"query.collection", o.Collection, "Milvus collection holding the book chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"query.top-k", o.TopK, "Number of chunks retrieved per book-wide query.")
	fs.DurationVar(&o.ResponseBudget, options.Join(prefixes...)+"query.response-budget", o.ResponseBudget, "Time budget for a complete answer.")
	fs.IntVar(&o.SnippetMaxLen, options.Join(prefixes...)+"query.snippet-max-len", o.SnippetMaxLen, "Maximum citation snippet length.")
	fs.IntVar(&o.ContextPreviewLen, options.Join(prefixes...)+"query.context-preview-len", o.ContextPreviewLen, "Maximum per-passage length in the prompt.")
	fs.Float64Var(&o.Confidence, options.Join(prefixes...)+"query.confidence", o.Confidence, "Confidence score attached to grounded answers.")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("query.collection is required"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("query.top-k must be positive"))
	}
	if o.ResponseBudget <= 0 {
		errs = append(errs, fmt.Errorf("query.response-budget must be positive"))
	}
	if o.SnippetMaxLen <= 0 {
		errs = append(errs, fmt.Errorf("query.snippet-max-len must be positive"))
	}
	if o.ContextPreviewLen <= 0 {
		errs = append(errs, fmt.Errorf("query.context-preview-len must be positive"))
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		errs = append(errs, fmt.Errorf("query.confidence must be in [0, 1]"))
	}
	return errs
}

// Complete completes the pipeline options with defaults.
func (o *Options) Complete() error {
	if o.BookWidePrompt == "" {
		o.BookWidePrompt = defaultBookWidePrompt
	}
	if o.SelectedTextPrompt == "" {
		o.SelectedTextPrompt = defaultSelectedTextPrompt
	}
	return nil
}
