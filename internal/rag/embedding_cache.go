package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/metrics"
)

const (
	defaultEmbeddingTTL = 7 * 24 * time.Hour
	maxLocalEmbeddings  = 10000
)

// CachedEmbedding 缓存的向量条目,Redis 中按 JSON 存储
type CachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmbeddingCache 两级向量缓存: 进程内 map 为 L1,Redis 为可选 L2。
// redis 为 nil 时退化为纯本地缓存。向量由 (文本, 模型) 唯一决定,
// 条目不会过时,只做容量淘汰。
type EmbeddingCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]*CachedEmbedding
}

// NewEmbeddingCache 创建向量缓存
func NewEmbeddingCache(redisClient *redis.Client, prefix string, ttl time.Duration) *EmbeddingCache {
	if prefix == "" {
		prefix = "emb:"
	}
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}
	return &EmbeddingCache{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		local:  make(map[string]*CachedEmbedding),
	}
}

// cacheKey 缓存键: 前缀 + 模型 + 文本 SHA256 的前 16 字节
func (c *EmbeddingCache) cacheKey(text, model string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + model + ":" + hex.EncodeToString(sum[:16])
}

// Get 查询缓存,先本地后 Redis,Redis 命中会回填本地
func (c *EmbeddingCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := c.cacheKey(text, model)

	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()
	if ok {
		metrics.RecordCacheHit("embedding")
		return entry.Vector, true
	}

	if c.redis != nil {
		if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
			var cached CachedEmbedding
			if json.Unmarshal(data, &cached) == nil {
				c.storeLocal(key, &cached)
				metrics.RecordCacheHit("embedding")
				return cached.Vector, true
			}
		}
	}

	metrics.RecordCacheMiss("embedding")
	return nil, false
}

// Set 写入缓存,Redis 写入失败不影响已写入的本地条目
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) error {
	key := c.cacheKey(text, model)
	entry := &CachedEmbedding{
		Vector:    vector,
		Model:     model,
		CreatedAt: time.Now(),
	}
	c.storeLocal(key, entry)

	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

// GetBatch 批量查缓存,返回命中映射和保持原顺序的未命中文本
func (c *EmbeddingCache) GetBatch(ctx context.Context, texts []string, model string) (map[string][]float32, []string) {
	hits := make(map[string][]float32)
	var missing []string
	for _, text := range texts {
		if vec, ok := c.Get(ctx, text, model); ok {
			hits[text] = vec
		} else {
			missing = append(missing, text)
		}
	}
	return hits, missing
}

// SetBatch 批量写入缓存,texts 与 vectors 必须等长
func (c *EmbeddingCache) SetBatch(ctx context.Context, texts []string, model string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("文本数量与向量数量不一致: %d != %d", len(texts), len(vectors))
	}
	for i, text := range texts {
		if err := c.Set(ctx, text, model, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// storeLocal 写入本地缓存,达到上限时先随机淘汰一半(map 遍历顺序随机)
func (c *EmbeddingCache) storeLocal(key string, entry *CachedEmbedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.local) >= maxLocalEmbeddings {
		drop := len(c.local) / 2
		for k := range c.local {
			if drop == 0 {
				break
			}
			delete(c.local, k)
			drop--
		}
	}
	c.local[key] = entry
}

// CachedEmbeddingProvider 带缓存的 Embedding 提供者包装,
// 维度与模型信息透传底层提供者
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	cache    *EmbeddingCache
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding 提供者
func NewCachedEmbeddingProvider(provider EmbeddingProvider, cache *EmbeddingCache) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{provider: provider, cache: cache}
}

// Embed 单条向量化,命中缓存时不触碰底层提供者
func (p *CachedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := p.provider.GetModel()
	if vec, ok := p.cache.Get(ctx, text, model); ok {
		return vec, nil
	}

	vec, err := p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = p.cache.Set(ctx, text, model, vec)
	return vec, nil
}

// EmbedBatch 批量向量化,只把未命中的文本发给底层提供者,
// 返回矩阵与输入顺序一一对应
func (p *CachedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := p.provider.GetModel()
	vectors, missing := p.cache.GetBatch(ctx, texts, model)

	if len(missing) > 0 {
		computed, err := p.provider.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		_ = p.cache.SetBatch(ctx, missing, model, computed)
		for i, text := range missing {
			vectors[text] = computed[i]
		}
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = vectors[text]
	}
	return result, nil
}

// GetDimension 向量维度
func (p *CachedEmbeddingProvider) GetDimension() int { return p.provider.GetDimension() }

// GetModel 模型名称
func (p *CachedEmbeddingProvider) GetModel() string { return p.provider.GetModel() }

// GetProviderName 提供者名称
func (p *CachedEmbeddingProvider) GetProviderName() string { return p.provider.GetProviderName() }
