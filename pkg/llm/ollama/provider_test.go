package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookqa/pkg/llm"
)

func newTestProvider(baseURL string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    baseURL,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "gemma3:12b",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		json.NewEncoder(w).Encode(embedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)

	embeddings, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5}}})
	}))
	defer srv.Close()

	embedding, err := newTestProvider(srv.URL).EmbedSingle(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, embedding)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is this about?", req.Prompt)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{Response: "It is about grounding.", Done: true})
	}))
	defer srv.Close()

	answer, err := newTestProvider(srv.URL).Generate(context.Background(), "What is this about?", "")
	require.NoError(t, err)
	assert.Equal(t, "It is about grounding.", answer)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "Hello."},
			Done:    true,
		})
	}))
	defer srv.Close()

	answer, err := newTestProvider(srv.URL).Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "Be brief."},
		{Role: llm.RoleUser, Content: "Say hello."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello.", answer)
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Generate(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, 1, calls)
}

func TestServerErrorRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "Recovered.", Done: true})
	}))
	defer srv.Close()

	answer, err := newTestProvider(srv.URL).Generate(context.Background(), "prompt", "")
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", answer)
	assert.Equal(t, 2, calls)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, newTestProvider(srv.URL).Ping(context.Background()))
}

func TestProviderIsRegistered(t *testing.T) {
	p, err := llm.NewProvider(ProviderName, map[string]any{"base_url": "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}
