package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder 统计底层调用次数的测试桩
type countingEmbedder struct {
	embedCalls int
	batchCalls int
	batchTexts []string
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	c.batchTexts = append([]string(nil), texts...)
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = []float32{float32(len(text)), 1}
	}
	return result, nil
}

func (c *countingEmbedder) GetDimension() int       { return 2 }
func (c *countingEmbedder) GetModel() string        { return "counting-model" }
func (c *countingEmbedder) GetProviderName() string { return "counting" }

func TestEmbeddingCache_GetSetWithoutRedis(t *testing.T) {
	cache := NewEmbeddingCache(nil, "test:", time.Hour)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "unseen text", "m1")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "seen text", "m1", []float32{1, 2, 3}))

	vec, ok := cache.Get(ctx, "seen text", "m1")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	// 相同文本不同模型是不同缓存项
	_, ok = cache.Get(ctx, "seen text", "m2")
	assert.False(t, ok)
}

func TestEmbeddingCache_GetBatch(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "cached", "m", []float32{1}))

	hits, missing := cache.GetBatch(ctx, []string{"cached", "absent one", "absent two"}, "m")
	assert.Len(t, hits, 1)
	assert.Equal(t, []string{"absent one", "absent two"}, missing)
}

func TestEmbeddingCache_SetBatchLockstep(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)

	err := cache.SetBatch(context.Background(), []string{"a", "b"}, "m", [][]float32{{1}})
	assert.Error(t, err)
}

func TestCachedEmbeddingProvider_EmbedUsesCache(t *testing.T) {
	embedder := &countingEmbedder{}
	provider := NewCachedEmbeddingProvider(embedder, NewEmbeddingCache(nil, "", 0))
	ctx := context.Background()

	v1, err := provider.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.embedCalls)

	// 第二次命中缓存，底层不再被调用
	v2, err := provider.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.embedCalls)
	assert.Equal(t, v1, v2)
}

func TestCachedEmbeddingProvider_BatchOnlyComputesMisses(t *testing.T) {
	embedder := &countingEmbedder{}
	provider := NewCachedEmbeddingProvider(embedder, NewEmbeddingCache(nil, "", 0))
	ctx := context.Background()

	// 预热其中一条
	_, err := provider.Embed(ctx, "warm")
	require.NoError(t, err)

	texts := []string{"cold one", "warm", "cold two"}
	vecs, err := provider.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// 底层只收到未命中的文本
	assert.Equal(t, 1, embedder.batchCalls)
	assert.Equal(t, []string{"cold one", "cold two"}, embedder.batchTexts)

	// 结果顺序与输入一一对应
	assert.Equal(t, float32(len("cold one")), vecs[0][0])
	assert.Equal(t, float32(len("warm")), vecs[1][0])
	assert.Equal(t, float32(len("cold two")), vecs[2][0])
}

func TestCachedEmbeddingProvider_AllHitsSkipProvider(t *testing.T) {
	embedder := &countingEmbedder{}
	provider := NewCachedEmbeddingProvider(embedder, NewEmbeddingCache(nil, "", 0))
	ctx := context.Background()

	texts := []string{"alpha", "beta"}
	_, err := provider.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Equal(t, 1, embedder.batchCalls)

	_, err = provider.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.batchCalls)
}

func TestCachedEmbeddingProvider_PassThroughIdentity(t *testing.T) {
	provider := NewCachedEmbeddingProvider(&countingEmbedder{}, NewEmbeddingCache(nil, "", 0))

	assert.Equal(t, 2, provider.GetDimension())
	assert.Equal(t, "counting-model", provider.GetModel())
	assert.Equal(t, "counting", provider.GetProviderName())
}
