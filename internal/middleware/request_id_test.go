package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/logger"
)

func TestRequestIDMiddleware_GeneratesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var ginID, ctxID, traceID string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		ginID = GetRequestIDFromGin(c)
		ctxID = GetRequestID(c.Request.Context())
		traceID = logger.GetTraceID(c.Request.Context())
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	headerID := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, headerID)
	_, err := uuid.Parse(headerID)
	assert.NoError(t, err)

	// 未携带追踪头时追踪 ID 复用请求 ID
	assert.Equal(t, headerID, w.Header().Get(HeaderTraceID))

	// Gin 上下文与请求上下文拿到同一个 ID
	assert.Equal(t, headerID, ginID)
	assert.Equal(t, headerID, ctxID)
	assert.Equal(t, headerID, traceID)
}

func TestRequestIDMiddleware_PropagatesUpstreamIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var traceID string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		traceID = logger.GetTraceID(c.Request.Context())
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "upstream-request-7")
	req.Header.Set(HeaderTraceID, "upstream-trace-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "upstream-request-7", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "upstream-trace-7", w.Header().Get(HeaderTraceID))
	assert.Equal(t, "upstream-trace-7", traceID)
}

func TestGetRequestID_MissingValue(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
