package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/pkg/llm"
)

// GeneratorConfig configures answer generation.
type GeneratorConfig struct {
	// BookWidePrompt is the template for book-wide queries.
	// It must contain {{context}} and {{question}} placeholders.
	BookWidePrompt string

	// SelectedTextPrompt is the template for selected-text queries.
	SelectedTextPrompt string

	// ContextPreviewLen bounds the per-passage text included in the prompt.
	ContextPreviewLen int

	// Confidence is attached to every grounded answer.
	Confidence float64
}

// Generator builds prompts and interprets model output.
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator creates a generator over the given chat provider.
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// refusalPhrases are the markers a model uses when it cannot answer from
// the supplied context. Matching is substring-based and case-insensitive.
var refusalPhrases = []string{
	"cannot answer",
	"can't answer",
	"no relevant",
	"not mentioned",
	"not found in context",
	"not found in the selected text",
	"not in the selected text",
	"insufficient context",
	"insufficient information",
}

// isRefusalText reports whether the model output reads as a refusal.
// The phrase list is the single place this heuristic lives; everything
// else treats generation output as opaque text.
func isRefusalText(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Generate dispatches the question plus passages to the chat provider and
// classifies the output. Provider faults surface as an error result, never
// as a panic or an unhandled error.
func (g *Generator) Generate(ctx context.Context, question string, mode model.QueryMode, passages []model.ContextPassage) *model.GenerationResult {
	contextText := g.buildContext(mode, passages)

	template := g.config.BookWidePrompt
	if mode == model.ModeSelectedText {
		template = g.config.SelectedTextPrompt
	}

	prompt := strings.ReplaceAll(template, "{{context}}", contextText)
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	answer, err := g.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		logger.Errorw("generation failed", "provider", g.chatProvider.Name(), "error", err.Error())
		return &model.GenerationResult{
			Status:      model.StatusError,
			Reason:      model.ReasonInternal,
			Explanation: fmt.Sprintf("The language model request failed: %v", err),
		}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return &model.GenerationResult{
			Status:      model.StatusInsufficientContext,
			Reason:      model.ReasonNoRelevantContext,
			Explanation: "No response was generated from the model.",
		}
	}

	if isRefusalText(answer) {
		explanation := "The book content does not contain enough information to answer this question."
		if mode == model.ModeSelectedText {
			explanation = "The selected text does not contain enough information to answer this question."
		}
		return &model.GenerationResult{
			Status:      model.StatusInsufficientContext,
			Reason:      model.ReasonNoRelevantContext,
			Explanation: explanation,
		}
	}

	confidence := g.config.Confidence
	return &model.GenerationResult{
		Answer:     answer,
		Status:     model.StatusSuccess,
		Confidence: &confidence,
	}
}

// buildContext assembles the prompt context. A reader's selection goes in
// verbatim, untagged and untruncated; book-wide passages are tagged with
// their source and truncated to the configured preview length.
func (g *Generator) buildContext(mode model.QueryMode, passages []model.ContextPassage) string {
	if mode == model.ModeSelectedText {
		parts := make([]string, len(passages))
		for i, p := range passages {
			parts[i] = p.Content
		}
		return strings.Join(parts, "\n\n")
	}

	var sb strings.Builder
	for _, p := range passages {
		content := p.Content
		if runes := []rune(content); len(runes) > g.config.ContextPreviewLen {
			content = string(runes[:g.config.ContextPreviewLen]) + "..."
		}
		sb.WriteString(fmt.Sprintf("Source: %s | Content: %s\n\n", p.DocumentID, content))
	}
	return strings.TrimRight(sb.String(), "\n")
}
