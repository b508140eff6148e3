package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookqa/internal/model"
)

func testGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		BookWidePrompt:     "Book content:\n{{context}}\n\nQuestion: {{question}}\n\nAnswer:",
		SelectedTextPrompt: "Selected text:\n{{context}}\n\nQuestion: {{question}}\n\nAnswer:",
		ContextPreviewLen:  500,
		Confidence:         0.85,
	}
}

func testPassages() []model.ContextPassage {
	score := 0.9
	return []model.ContextPassage{
		{ID: "chunk_1", DocumentID: "chapter_1", Content: "The hero leaves home.", Ordinal: 0, Score: &score},
	}
}

func TestGenerateSuccess(t *testing.T) {
	chat := &fakeChat{answer: "The hero leaves home at the start."}
	g := NewGenerator(chat, testGeneratorConfig())

	result := g.Generate(context.Background(), "How does the story begin?", model.ModeBookWide, testPassages())
	require.NotNil(t, result)
	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, "The hero leaves home at the start.", result.Answer)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 0.85, *result.Confidence)

	// The prompt carries both the passage content and the question
	assert.Contains(t, chat.lastPrompt, "The hero leaves home.")
	assert.Contains(t, chat.lastPrompt, "How does the story begin?")
	assert.Contains(t, chat.lastPrompt, "Source: chapter_1")
}

func TestGenerateSelectedTextUsesItsOwnTemplate(t *testing.T) {
	chat := &fakeChat{answer: "It refers to the narrator."}
	g := NewGenerator(chat, testGeneratorConfig())

	_ = g.Generate(context.Background(), "Who is 'he'?", model.ModeSelectedText, testPassages())
	assert.True(t, strings.HasPrefix(chat.lastPrompt, "Selected text:"))
}

func TestGenerateSelectedTextVerbatim(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.ContextPreviewLen = 100

	chat := &fakeChat{answer: "Fine."}
	g := NewGenerator(chat, cfg)

	// Well past the book-wide preview length, with a marker at the end
	selection := strings.Repeat("a", 550) + " THE FINAL WORD"
	passages := []model.ContextPassage{
		{ID: model.SelectedTextChunkID, DocumentID: model.SelectedTextSource, Content: selection},
	}

	_ = g.Generate(context.Background(), "What is the final word?", model.ModeSelectedText, passages)

	assert.Contains(t, chat.lastPrompt, selection)
	assert.Contains(t, chat.lastPrompt, "THE FINAL WORD")
	assert.NotContains(t, chat.lastPrompt, "Source:")
	assert.NotContains(t, chat.lastPrompt, model.SelectedTextSource)
}

func TestGenerateRefusalPhrases(t *testing.T) {
	answers := []string{
		"I cannot answer this based on the book content.",
		"I can't answer that from the given text.",
		"There is no relevant information in the context.",
		"That topic is not mentioned in the book.",
		"The answer was not found in context.",
		"INSUFFICIENT CONTEXT to determine this.",
		"There is insufficient information in the passage.",
	}

	for _, answer := range answers {
		t.Run(answer, func(t *testing.T) {
			chat := &fakeChat{answer: answer}
			g := NewGenerator(chat, testGeneratorConfig())

			result := g.Generate(context.Background(), "Who wrote it?", model.ModeBookWide, testPassages())
			assert.Equal(t, model.StatusInsufficientContext, result.Status)
			assert.Equal(t, model.ReasonNoRelevantContext, result.Reason)
			assert.Empty(t, result.Answer)
			assert.Nil(t, result.Confidence)
		})
	}
}

func TestGenerateRefusalExplanationMatchesMode(t *testing.T) {
	chat := &fakeChat{answer: "I cannot answer this."}
	g := NewGenerator(chat, testGeneratorConfig())

	bookWide := g.Generate(context.Background(), "Why?", model.ModeBookWide, testPassages())
	assert.Contains(t, bookWide.Explanation, "book content")

	selected := g.Generate(context.Background(), "Why?", model.ModeSelectedText, testPassages())
	assert.Contains(t, selected.Explanation, "selected text")
}

func TestGenerateProviderError(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection reset")}
	g := NewGenerator(chat, testGeneratorConfig())

	result := g.Generate(context.Background(), "Why?", model.ModeBookWide, testPassages())
	assert.Equal(t, model.StatusError, result.Status)
	assert.Equal(t, model.ReasonInternal, result.Reason)
	assert.Contains(t, result.Explanation, "connection reset")
}

func TestGenerateEmptyOutputIsInsufficient(t *testing.T) {
	chat := &fakeChat{answer: "   \n"}
	g := NewGenerator(chat, testGeneratorConfig())

	result := g.Generate(context.Background(), "Why?", model.ModeBookWide, testPassages())
	assert.Equal(t, model.StatusInsufficientContext, result.Status)
	assert.Equal(t, model.ReasonNoRelevantContext, result.Reason)
}

func TestGenerateTruncatesLongPassages(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.ContextPreviewLen = 10

	chat := &fakeChat{answer: "Fine."}
	g := NewGenerator(chat, cfg)

	long := strings.Repeat("a", 50)
	score := 0.5
	passages := []model.ContextPassage{{ID: "c1", DocumentID: "doc_1", Content: long, Score: &score}}

	_ = g.Generate(context.Background(), "Why?", model.ModeBookWide, passages)
	assert.Contains(t, chat.lastPrompt, strings.Repeat("a", 10)+"...")
	assert.NotContains(t, chat.lastPrompt, strings.Repeat("a", 11))
}

func TestIsRefusalText(t *testing.T) {
	assert.True(t, isRefusalText("I CANNOT ANSWER that."))
	assert.True(t, isRefusalText("the phrase is not in the selected text"))
	assert.False(t, isRefusalText("The hero answers the call to adventure."))
	assert.False(t, isRefusalText(""))
}
