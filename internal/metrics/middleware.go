package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// 监控自身与健康检查不计入请求指标
var unmeteredPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
}

// PrometheusMiddleware HTTP 请求指标中间件
// 按路由模板维度记录请求量、耗时和请求/响应体大小
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := unmeteredPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		start := time.Now()
		// ContentLength 需在处理前取走,之后请求体可能已被消费
		requestSize := c.Request.ContentLength

		c.Next()

		observeRequest(c, requestSize, time.Since(start))
	}
}

// observeRequest 把一次已完成请求写入各项指标
func observeRequest(c *gin.Context, requestSize int64, elapsed time.Duration) {
	method := c.Request.Method
	path := routePath(c)
	status := strconv.Itoa(c.Writer.Status())

	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())

	if requestSize > 0 {
		APIRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if size := c.Writer.Size(); size >= 0 {
		APIResponseSize.WithLabelValues(method, path).Observe(float64(size))
	}
}

// routePath 取路由模板作为指标标签,未匹配路由时退回实际路径
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
