package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP API 指标
var (
	// APIRequestsTotal 按方法、路由和状态码计数的请求总数
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_api_requests_total",
		Help: "API 请求总数",
	}, []string{"method", "path", "status"})

	// APIRequestDuration 请求延迟分布(秒)
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_api_request_duration_seconds",
		Help:    "API 请求延迟分布",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// APIRequestSize 请求体大小分布(字节)
	APIRequestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_api_request_size_bytes",
		Help:    "API 请求体大小分布",
		Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
	}, []string{"method", "path"})

	// APIResponseSize 响应体大小分布(字节)
	APIResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_api_response_size_bytes",
		Help:    "API 响应体大小分布",
		Buckets: []float64{100, 1000, 10000, 100000, 1000000},
	}, []string{"method", "path"})
)

// 文档入库指标
var (
	// DocumentsIngestedTotal 已入库文档总数,按格式与结果状态区分
	DocumentsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_documents_ingested_total",
		Help: "已入库文档总数",
	}, []string{"format", "status"})

	// DocumentIngestDuration 单个文档入库耗时分布(秒)
	DocumentIngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_document_ingest_duration_seconds",
		Help:    "单个文档入库耗时分布",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"format"})

	// ChunksCreatedTotal 切分产生的文本块总数
	ChunksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docqa_chunks_created_total",
		Help: "切分产生的文本块总数",
	})

	// StoreChunks 向量库当前文本块数量
	StoreChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docqa_store_chunks",
		Help: "向量库当前文本块数量",
	})
)

// 检索与网络搜索指标
var (
	// SearchesTotal 向量检索总数,stage 取 strict 或 relaxed
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_searches_total",
		Help: "向量检索总数",
	}, []string{"stage", "status"})

	// SearchDuration 向量检索耗时分布(秒)
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_search_duration_seconds",
		Help:    "向量检索耗时分布",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"stage"})

	// SearchResults 向量检索返回结果数量分布
	SearchResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_search_results",
		Help:    "向量检索返回结果数量分布",
		Buckets: []float64{1, 2, 3, 5, 10, 20},
	}, []string{"stage"})

	// WebSearchesTotal 网络搜索补充次数
	WebSearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_web_searches_total",
		Help: "网络搜索补充次数",
	}, []string{"status"})
)

// AI 模型调用指标
var (
	// ModelCallsTotal 模型调用总数
	ModelCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_model_calls_total",
		Help: "AI 模型调用总数",
	}, []string{"provider", "model", "status"})

	// ModelCallDuration 模型调用耗时分布(秒)
	ModelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docqa_model_call_duration_seconds",
		Help:    "AI 模型调用耗时分布",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"provider", "model"})

	// ModelCallTokens 模型调用 Token 总数,type 取 prompt 或 completion
	ModelCallTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_model_call_tokens_total",
		Help: "AI 模型调用 Token 总数",
	}, []string{"provider", "model", "type"})
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中总数
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_cache_hits_total",
		Help: "缓存命中总数",
	}, []string{"cache_type"})

	// CacheMissesTotal 缓存未命中总数
	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_cache_misses_total",
		Help: "缓存未命中总数",
	}, []string{"cache_type"})
)

// BuildInfo 构建信息,值恒为 1,信息在标签里
var BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "docqa_build_info",
	Help: "DocQA 构建信息",
}, []string{"version", "go_version", "commit"})

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion, commit string) {
	BuildInfo.WithLabelValues(version, goVersion, commit).Set(1)
}

// RecordCacheHit 记录一次缓存命中
func RecordCacheHit(cacheType string) {
	CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录一次缓存未命中
func RecordCacheMiss(cacheType string) {
	CacheMissesTotal.WithLabelValues(cacheType).Inc()
}
