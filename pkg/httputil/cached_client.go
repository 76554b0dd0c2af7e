package httputil

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// CachedClient 在 Client 之上增加进程内响应缓存。
// 只缓存返回 200 的 GET 响应体,错误响应每次都重新请求;
// 适用于幂等的外部查询接口,短时间内的重复请求直接命中内存。
type CachedClient struct {
	client *Client
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// cacheEntry 一条缓存的响应体及其过期时刻
type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// CachedClientOption 缓存客户端配置选项
type CachedClientOption func(*CachedClient)

// WithCacheTTL 设置缓存条目的存活时间
func WithCacheTTL(ttl time.Duration) CachedClientOption {
	return func(cc *CachedClient) {
		cc.ttl = ttl
	}
}

// NewCachedClient 创建带缓存的 HTTP 客户端,默认缓存 1 小时
func NewCachedClient(client *Client, opts ...CachedClientOption) *CachedClient {
	cc := &CachedClient{
		client:  client,
		ttl:     time.Hour,
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// generateCacheKey 由请求方法和完整 URL 生成缓存键
func (cc *CachedClient) generateCacheKey(method, url string) string {
	sum := md5.Sum([]byte(method + url))
	return "http:" + hex.EncodeToString(sum[:])
}

// lookup 返回未过期的缓存体;过期条目顺手删除
func (cc *CachedClient) lookup(key string) ([]byte, bool) {
	cc.mu.RLock()
	entry, ok := cc.entries[key]
	cc.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		cc.mu.Lock()
		delete(cc.entries, key)
		cc.mu.Unlock()
		return nil, false
	}
	return entry.body, true
}

// remember 缓存一次成功响应的完整响应体
func (cc *CachedClient) remember(key string, body []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.entries[key] = cacheEntry{
		body:      body,
		expiresAt: time.Now().Add(cc.ttl),
	}
}

// GetJSON 发送 GET 请求并解析 JSON 响应,成功结果按 TTL 缓存
func (cc *CachedClient) GetJSON(ctx context.Context, url string, result interface{}) error {
	key := cc.generateCacheKey(http.MethodGet, url)

	if body, ok := cc.lookup(key); ok {
		return json.Unmarshal(body, result)
	}

	resp, err := cc.client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("GET请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP请求返回错误状态: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	cc.remember(key, body)

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}

// ClearMemCache 丢弃全部缓存条目
func (cc *CachedClient) ClearMemCache() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.entries = make(map[string]cacheEntry)
}
