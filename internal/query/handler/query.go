// Package handler provides HTTP handlers for the query service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/bookqa/internal/model"
	"github.com/kart-io/bookqa/internal/query/biz"
)

// QueryHandler handles query HTTP requests.
type QueryHandler struct {
	service biz.Service
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(service biz.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// ValidationErrorResponse is the HTTP 400 body for malformed requests.
type ValidationErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// ErrorResponse is a generic error body for non-query endpoints.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Query answers one question. Malformed requests get HTTP 400 with every
// violated rule listed; refusals and errors are regular HTTP 200 envelopes.
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Invalid query parameters",
			Details: []string{err.Error()},
		})
		return
	}

	resp, verrs := h.service.Query(c.Request.Context(), &req)
	if len(verrs) > 0 {
		details := make([]string, len(verrs))
		for i, verr := range verrs {
			details[i] = verr.Message
		}
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Invalid query parameters",
			Details: details,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stats returns corpus and pipeline statistics.
func (h *QueryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Healthz is the liveness endpoint.
func (h *QueryHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
