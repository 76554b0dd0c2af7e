package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docqa/internal/logger"
)

type contextKey string

// RequestIDKey 请求 ID 在 context.Context 与 Gin 上下文中共用的键
const RequestIDKey contextKey = "request_id"

// 请求追踪相关的 HTTP 头
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// identify 解析本次请求的 Request ID 与 Trace ID
// 上游传入的头优先,缺失时生成新的请求 ID,追踪 ID 回落到请求 ID
func identify(c *gin.Context) (requestID, traceID string) {
	requestID = c.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	traceID = c.GetHeader(HeaderTraceID)
	if traceID == "" {
		traceID = requestID
	}
	return requestID, traceID
}

// RequestIDMiddleware 请求 ID 中间件
// 为每个请求确定请求 ID 和追踪 ID,写入响应头并注入日志上下文
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, traceID := identify(c)

		// 回写响应头,方便客户端关联服务端日志
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		// Gin 上下文与请求 context 各存一份,
		// logger.WithContext 据此为日志附加 trace_id 字段
		c.Set(string(RequestIDKey), requestID)
		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(logger.WithTraceID(ctx, traceID))

		c.Next()
	}
}

// GetRequestID 从 context.Context 读取请求 ID,无则返回空串
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetRequestIDFromGin 从 Gin 上下文读取请求 ID,无则返回空串
func GetRequestIDFromGin(c *gin.Context) string {
	v, ok := c.Get(string(RequestIDKey))
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
