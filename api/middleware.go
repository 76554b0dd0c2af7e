package api

import (
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"docqa/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CORS 响应头的默认值,可被同名 CORS_ALLOW_* 环境变量覆盖
var (
	defaultAllowHeaders = []string{
		"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization",
		"Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID",
	}
	defaultAllowMethods = []string{"POST", "OPTIONS", "GET", "PUT", "DELETE", "PATCH"}
)

// RequestLogger 请求日志中间件,带 trace_id 记录每次请求的概要
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithContext(c.Request.Context()).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// CORS 跨域中间件
// 未配置白名单时放行所有来源,配置后只回显命中的 Origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()

		allowedOrigins := getEnvList("CORS_ALLOW_ORIGINS")
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			header.Set("Access-Control-Allow-Origin", origin)
		}

		headers := getEnvList("CORS_ALLOW_HEADERS")
		if len(headers) == 0 {
			headers = defaultAllowHeaders
		}
		methods := getEnvList("CORS_ALLOW_METHODS")
		if len(methods) == 0 {
			methods = defaultAllowMethods
		}

		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
		header.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
		header.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// getEnvList 读取逗号分隔的环境变量,条目两侧空白会被去掉,空值返回 nil
func getEnvList(key string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			items = append(items, v)
		}
	}
	return items
}
