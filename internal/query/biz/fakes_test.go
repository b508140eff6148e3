package biz

import (
	"context"

	"github.com/kart-io/bookqa/internal/query/store"
	"github.com/kart-io/bookqa/pkg/llm"
)

// fakeStore is a scriptable in-memory vector store.
type fakeStore struct {
	results     []*store.SearchResult
	searchErr   error
	statsCount  int64
	statsErr    error
	searchCalls int
}

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, _ int) ([]*store.SearchResult, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeStore) GetStats(_ context.Context, _ string) (int64, error) {
	if f.statsErr != nil {
		return 0, f.statsErr
	}
	return f.statsCount, nil
}

func (f *fakeStore) Close(_ context.Context) error { return nil }

// fakeEmbedder returns a fixed embedding or a scripted error.
type fakeEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		v, err := f.EmbedSingle(ctx, "")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

// fakeChat returns a fixed answer, a scripted error, or runs a custom
// generate function when one is set.
type fakeChat struct {
	answer      string
	err         error
	generateFn  func(ctx context.Context, prompt string) (string, error)
	lastPrompt  string
	lastSystem  string
	generations int
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return f.Generate(ctx, prompt, "")
}

func (f *fakeChat) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	f.generations++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	if f.generateFn != nil {
		return f.generateFn(ctx, prompt)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }
