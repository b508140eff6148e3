// Package router builds the gin engine and registers routes.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/bookqa/internal/query/handler"
)

// New constructs the gin engine with middleware and routes.
func New(h *handler.QueryHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/query", h.Query)
		v1.GET("/stats", h.Stats)
	}

	return engine
}

// requestLogger logs each request through the global structured logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
			"client_ip", c.ClientIP(),
		)
	}
}
