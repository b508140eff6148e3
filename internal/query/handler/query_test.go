package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/internal/query/biz"
)

// stubService is a scriptable biz.Service.
type stubService struct {
	resp     *model.QueryResponse
	verrs    []biz.ValidationError
	stats    map[string]any
	statsErr error
}

func (s *stubService) Query(_ context.Context, _ *model.QueryRequest) (*model.QueryResponse, []biz.ValidationError) {
	return s.resp, s.verrs
}

func (s *stubService) Stats(_ context.Context) (map[string]any, error) {
	return s.stats, s.statsErr
}

func newTestRouter(svc biz.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewQueryHandler(svc)
	engine := gin.New()
	engine.POST("/api/v1/query", h.Query)
	engine.GET("/api/v1/stats", h.Stats)
	engine.GET("/healthz", h.Healthz)
	return engine
}

func postQuery(t *testing.T, engine *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestQueryEndpointSuccess(t *testing.T) {
	confidence := 0.85
	svc := &stubService{
		resp: model.NewSuccessResponse("q1", "An answer.", []model.Citation{
			{ID: "cit_resp_q1_0", ResponseID: "resp_q1", DocumentID: "chapter_1", RelevanceScore: 0.9, TextSnippet: "snippet"},
		}, []string{"chunk_1"}, &confidence, 10),
	}

	w := postQuery(t, newTestRouter(svc), map[string]any{
		"question": "What happens?",
		"mode":     "book-wide",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "An answer.", *resp.Answer)
	require.Len(t, resp.Citations, 1)
}

func TestQueryEndpointRefusalIsHTTP200(t *testing.T) {
	svc := &stubService{
		resp: model.NewRefusalResponse("q1", model.ReasonNoRelevantContext, "nothing found"),
	}

	w := postQuery(t, newTestRouter(svc), map[string]any{
		"question": "What happens?",
		"mode":     "book-wide",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusInsufficientContext, resp.Status)
	assert.Equal(t, model.ReasonNoRelevantContext, resp.ReasonCode)
	assert.Nil(t, resp.Answer)
}

func TestQueryEndpointValidationIsHTTP400(t *testing.T) {
	svc := &stubService{
		verrs: []biz.ValidationError{
			{Field: "question", Message: "Question must be at least 3 characters long"},
			{Field: "mode", Message: "Query mode must be either 'book-wide' or 'selected-text'"},
		},
	}

	w := postQuery(t, newTestRouter(svc), map[string]any{
		"question": "hi",
		"mode":     "sideways",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid query parameters", body.Error)
	require.Len(t, body.Details, 2)
	assert.Equal(t, "Question must be at least 3 characters long", body.Details[0])
}

func TestQueryEndpointMalformedJSON(t *testing.T) {
	engine := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid query parameters", body.Error)
	assert.NotEmpty(t, body.Details)
}

func TestStatsEndpoint(t *testing.T) {
	svc := &stubService{stats: map[string]any{"collection": "book_chunks", "chunk_count": 42}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "book_chunks", stats["collection"])
}

func TestStatsEndpointError(t *testing.T) {
	svc := &stubService{statsErr: errors.New("milvus unreachable")}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestRouter(&stubService{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
