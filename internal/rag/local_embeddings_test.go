package rag

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbeddingProvider_Deterministic(t *testing.T) {
	provider := NewLocalEmbeddingProvider(64)
	ctx := context.Background()

	v1, err := provider.Embed(ctx, "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	v2, err := provider.Embed(ctx, "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)

	// 相同文本必然得到相同向量
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
}

func TestLocalEmbeddingProvider_UnitNorm(t *testing.T) {
	provider := NewLocalEmbeddingProvider(128)

	vec, err := provider.Embed(context.Background(), "semantic retrieval with feature hashing")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbeddingProvider_DifferentTextsDiffer(t *testing.T) {
	provider := NewLocalEmbeddingProvider(64)
	ctx := context.Background()

	v1, err := provider.Embed(ctx, "database indexing strategies")
	require.NoError(t, err)
	v2, err := provider.Embed(ctx, "quarterly revenue projections")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestLocalEmbeddingProvider_EmptyInput(t *testing.T) {
	provider := NewLocalEmbeddingProvider(64)

	_, err := provider.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestLocalEmbeddingProvider_EmbedBatch(t *testing.T) {
	provider := NewLocalEmbeddingProvider(32)
	ctx := context.Background()

	texts := []string{"first document", "second document", ""}
	vecs, err := provider.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// 批量结果与单条结果一致，顺序保持
	single, err := provider.Embed(ctx, "second document")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])

	// 空字符串产出零向量占位
	for _, v := range vecs[2] {
		assert.Zero(t, v)
	}

	empty, err := provider.EmbedBatch(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestLocalEmbeddingProvider_DefaultDimension(t *testing.T) {
	provider := NewLocalEmbeddingProvider(0)
	assert.Equal(t, 384, provider.GetDimension())

	vec, err := provider.Embed(context.Background(), "dimension check")
	require.NoError(t, err)
	assert.Len(t, vec, 384)
}

func TestLocalEmbeddingProvider_Identity(t *testing.T) {
	provider := NewLocalEmbeddingProvider(64)
	assert.Equal(t, "local", provider.GetProviderName())
	assert.Equal(t, localEmbeddingModel, provider.GetModel())
}
