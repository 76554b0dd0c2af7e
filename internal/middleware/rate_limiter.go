package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// staleClientAfter 客户端多久无请求后其限流状态可被回收
const staleClientAfter = 10 * time.Minute

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	RequestsPerSecond int           // 令牌桶回充速率
	RequestsPerMinute int           // 分钟配额,0 表示不启用
	BurstSize         int           // 突发容量(桶上限)
	CleanupInterval   time.Duration // 过期状态回收间隔
}

// DefaultRateLimiterConfig 默认配置
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 10,
		RequestsPerMinute: 300,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}

// bucket 单个客户端的限流状态:令牌桶 + 分钟滑窗计数
type bucket struct {
	tokens      float64
	refreshedAt time.Time
	minuteCount int
	windowStart time.Time
}

// RateLimiter 按键(客户端 IP)限流,保护生成模型与搜索配额
// 不被单个调用方耗尽。令牌桶限制瞬时速率,分钟配额限制持续用量。
type RateLimiter struct {
	config  *RateLimiterConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
}

// NewRateLimiter 创建限流器并启动后台回收协程,config 为 nil 时用默认配置
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}

	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow 判定该键的本次请求是否放行
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		// 首次出现:从满桶中扣掉本次请求
		rl.buckets[key] = &bucket{
			tokens:      float64(rl.config.BurstSize - 1),
			refreshedAt: now,
			minuteCount: 1,
			windowStart: now,
		}
		return true
	}

	rl.refill(b, now)

	if now.Sub(b.windowStart) > time.Minute {
		b.minuteCount = 0
		b.windowStart = now
	}
	if rl.config.RequestsPerMinute > 0 && b.minuteCount >= rl.config.RequestsPerMinute {
		return false
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	b.minuteCount++
	return true
}

// refill 按流逝时间回充令牌,上限为突发容量
func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.refreshedAt).Seconds()
	b.tokens += elapsed * float64(rl.config.RequestsPerSecond)
	if limit := float64(rl.config.BurstSize); b.tokens > limit {
		b.tokens = limit
	}
	b.refreshedAt = now
}

// evictLoop 周期性回收长时间不活跃的客户端状态
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.refreshedAt) > staleClientAfter {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop 终止后台回收协程
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// RateLimitMiddleware 按客户端 IP 限流的 Gin 中间件
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "请求过于频繁，请稍后重试",
				"code":        "RATE_LIMIT_EXCEEDED",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}
