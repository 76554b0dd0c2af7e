package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// localEmbeddingModel 本地提供者的模型标识，参与缓存键计算
const localEmbeddingModel = "feature-hash-v1"

// localStopwords 不参与特征统计的高频词
var localStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"with": {},
}

// LocalEmbeddingProvider 本地确定性向量化提供者。
// 词元经FNV哈希折叠到固定维度的特征桶(带符号的特征哈希)，最后做L2归一化。
// 不依赖外部服务，用于离线部署和测试；相同文本必然得到相同向量。
type LocalEmbeddingProvider struct {
	dimension int
}

// NewLocalEmbeddingProvider 创建本地向量化提供者
// dimension <= 0 时使用默认的384维。
func NewLocalEmbeddingProvider(dimension int) *LocalEmbeddingProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalEmbeddingProvider{dimension: dimension}
}

// Embed 将单条文本转换为向量
func (p *LocalEmbeddingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("文本不能为空")
	}
	return p.embed(text), nil
}

// EmbedBatch 批量向量化文本。空字符串产出零向量以保持与输入等长。
func (p *LocalEmbeddingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = p.embed(text)
	}
	return embeddings, nil
}

// embed 特征哈希 + L2归一化
func (p *LocalEmbeddingProvider) embed(text string) []float32 {
	buckets := make([]float64, p.dimension)

	for _, token := range tokenizeForHashing(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		idx := int(sum % uint32(p.dimension))
		// 最高位决定符号，抵消哈希冲突带来的系统性偏差
		if sum&0x80000000 != 0 {
			buckets[idx] -= 1
		} else {
			buckets[idx] += 1
		}
	}

	var norm float64
	for _, v := range buckets {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, p.dimension)
	if norm == 0 {
		return vec
	}
	for i, v := range buckets {
		vec[i] = float32(v / norm)
	}
	return vec
}

// tokenizeForHashing 小写化后按非字母数字切分，过滤停用词
func tokenizeForHashing(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := localStopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// GetDimension 获取向量维度
func (p *LocalEmbeddingProvider) GetDimension() int {
	return p.dimension
}

// GetModel 获取模型标识
func (p *LocalEmbeddingProvider) GetModel() string {
	return localEmbeddingModel
}

// GetProviderName 获取提供商名称
func (p *LocalEmbeddingProvider) GetProviderName() string {
	return "local"
}
