package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/websearch"
)

// contextSnippetLimit 单个文档片段进入上下文的最大字符数
const contextSnippetLimit = 500

// WebSearcher 网络搜索接口,文档证据不足时补充上下文
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) []websearch.WebResult
	IsConfigured() bool
}

// RetrievalPolicy 检索回退策略参数
// 回退形态固定为:严格阈值 -> 放宽阈值 -> 网络搜索,参数可调但顺序不变
type RetrievalPolicy struct {
	MaxChunks           int     // 单次检索返回的最大块数
	SimilarityThreshold float64 // 严格相似度阈值
	RelaxedThreshold    float64 // 零结果时放宽重试的阈值
	RelaxedTrigger      float64 // 严格阈值高于该值才触发放宽重试
	WebMinDocs          int     // 文档结果少于该数时触发网络搜索
	WebResults          int     // 网络搜索请求的结果条数
}

// DefaultRetrievalPolicy 返回默认策略参数
func DefaultRetrievalPolicy() RetrievalPolicy {
	return RetrievalPolicy{
		MaxChunks:           5,
		SimilarityThreshold: 0.7,
		RelaxedThreshold:    0.3,
		RelaxedTrigger:      0.5,
		WebMinDocs:          2,
		WebResults:          3,
	}
}

// RetrievalResult 检索与上下文组装结果
type RetrievalResult struct {
	Context       string // 组装好的上下文,可直接交给生成模型
	Sources       string // 逐行引用列表
	DocCount      int    // 命中的文档块数量
	WebCount      int    // 网络搜索结果数量
	WebSearchUsed bool   // 是否使用了网络搜索
}

// Retriever 检索与上下文组装服务
type Retriever struct {
	store    *VectorStore
	embedder EmbeddingProvider
	searcher WebSearcher
	policy   RetrievalPolicy
	tracer   trace.Tracer
}

// NewRetriever 创建检索服务
// searcher 允许为 nil,此时网络搜索路径整体禁用
func NewRetriever(store *VectorStore, embedder EmbeddingProvider, searcher WebSearcher, policy RetrievalPolicy) *Retriever {
	def := DefaultRetrievalPolicy()
	if policy.MaxChunks <= 0 {
		policy.MaxChunks = def.MaxChunks
	}
	if policy.RelaxedThreshold <= 0 {
		policy.RelaxedThreshold = def.RelaxedThreshold
	}
	if policy.RelaxedTrigger <= 0 {
		policy.RelaxedTrigger = def.RelaxedTrigger
	}
	if policy.WebMinDocs <= 0 {
		policy.WebMinDocs = def.WebMinDocs
	}
	if policy.WebResults <= 0 {
		policy.WebResults = def.WebResults
	}

	return &Retriever{
		store:    store,
		embedder: embedder,
		searcher: searcher,
		policy:   policy,
		tracer:   otel.Tracer("docqa/internal/rag"),
	}
}

// RetrieveContext 执行检索并组装上下文与引用
// 向量化或检索失败不会返回错误,统一降级为零文档证据后继续网络搜索路径,
// 保证问答请求永远能走到生成环节
func (r *Retriever) RetrieveContext(ctx context.Context, query string, useWebSearch bool) *RetrievalResult {
	ctx, span := r.tracer.Start(ctx, "Retriever.RetrieveContext")
	defer span.End()

	// 1. 文档检索(查询只向量化一次)
	docs := r.searchDocuments(ctx, query)

	// 2. 证据不足时触发网络搜索补充,文档证据永远保留而非被替换
	var webResults []websearch.WebResult
	if useWebSearch && len(docs) < r.policy.WebMinDocs {
		// 未配置凭证时静默跳过
		if r.searcher != nil && r.searcher.IsConfigured() {
			webResults = r.searcher.Search(ctx, query, r.policy.WebResults)
		}
	}

	// 3. 组装上下文与引用
	result := &RetrievalResult{
		Context:       assembleContext(docs, webResults),
		Sources:       assembleSources(docs, webResults),
		DocCount:      len(docs),
		WebCount:      len(webResults),
		WebSearchUsed: len(webResults) > 0,
	}

	span.SetAttributes(
		attribute.Int("doc_count", result.DocCount),
		attribute.Int("web_count", result.WebCount),
		attribute.Bool("web_search_used", result.WebSearchUsed),
	)

	logger.Info("检索完成",
		zap.Int("doc_count", result.DocCount),
		zap.Int("web_count", result.WebCount),
		zap.Bool("web_search_used", result.WebSearchUsed),
		zap.Int("context_length", len(result.Context)))

	return result
}

// searchDocuments 文档检索,失败时降级为空结果
func (r *Retriever) searchDocuments(ctx context.Context, query string) []*SearchResult {
	// 1. 向量化查询
	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.Error("查询向量化失败,降级为无文档证据", zap.Error(err))
		return nil
	}

	// 2. 严格阈值检索
	var results []*SearchResult
	_, err = metrics.RecordSearch("strict", func() (int, error) {
		var searchErr error
		results, searchErr = r.store.Search(queryVector, r.policy.MaxChunks, r.policy.SimilarityThreshold)
		return len(results), searchErr
	})
	if err != nil {
		logger.Error("向量检索失败,降级为无文档证据", zap.Error(err))
		return nil
	}

	// 3. 稀疏知识库回退:严格阈值偏高且零命中时,放宽阈值重试一次
	if len(results) == 0 && r.policy.SimilarityThreshold > r.policy.RelaxedTrigger {
		var relaxed []*SearchResult
		_, err = metrics.RecordSearch("relaxed", func() (int, error) {
			var searchErr error
			relaxed, searchErr = r.store.Search(queryVector, r.policy.MaxChunks, r.policy.RelaxedThreshold)
			return len(relaxed), searchErr
		})
		if err != nil {
			logger.Error("放宽阈值检索失败,降级为无文档证据", zap.Error(err))
			return nil
		}
		if len(relaxed) > 0 {
			logger.Info("放宽阈值重试命中",
				zap.Float64("threshold", r.policy.RelaxedThreshold),
				zap.Int("results", len(relaxed)))
		}
		results = relaxed
	}

	return results
}

// assembleContext 组装上下文
// 文档段落在前,网络结果在后,两类得分不可比,永不按分数混排
func assembleContext(docs []*SearchResult, webResults []websearch.WebResult) string {
	sections := make([]string, 0, 2)

	if len(docs) > 0 {
		parts := make([]string, 0, len(docs)+1)
		parts = append(parts, "Document Knowledge:")
		for _, doc := range docs {
			parts = append(parts, truncateRunes(doc.Content, contextSnippetLimit))
		}
		sections = append(sections, strings.Join(parts, "\n"))
	}

	if len(webResults) > 0 {
		parts := make([]string, 0, len(webResults)*2+1)
		parts = append(parts, "Web Search Results:")
		for i, result := range webResults {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, result.Title))
			if result.Snippet != "" {
				parts = append(parts, "   "+result.Snippet)
			}
		}
		sections = append(sections, strings.Join(parts, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// assembleSources 组装引用列表,与上下文条目一一对应
func assembleSources(docs []*SearchResult, webResults []websearch.WebResult) string {
	lines := make([]string, 0, len(docs)+len(webResults))

	for _, doc := range docs {
		name := doc.Metadata.FileName
		if name == "" {
			name = doc.Metadata.Source
		}
		lines = append(lines, fmt.Sprintf("Doc: %s (%.3f)", name, doc.Similarity))
	}
	for _, result := range webResults {
		lines = append(lines, fmt.Sprintf("Web: %s", result.Title))
	}

	if len(lines) == 0 {
		return "No sources found"
	}
	return strings.Join(lines, "\n")
}

// truncateRunes 按字符数截断文本,超出部分以省略号标记
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
