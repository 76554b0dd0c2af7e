package rag

import "context"

// EmbeddingProvider 向量化后端的统一接口,本地模型与远程服务共用。
// 对相同输入和模型版本，返回的向量必须是确定性的(浮点误差范围内)；
// 维度在提供者生命周期内固定。后端不可达时返回 ErrModelUnavailable。
type EmbeddingProvider interface {
	// Embed 对单条文本求向量，等价于 EmbedBatch([]string{text})[0]
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 对一批文本求向量，返回矩阵与输入顺序一一对应
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// GetDimension 返回向量维度
	GetDimension() int
	GetModel() string
	GetProviderName() string
}
