package api

import (
	"context"
	"strings"
	"time"

	_ "docqa/api/docs"
	chatHandlers "docqa/api/handlers/chat"
	knowledgeHandlers "docqa/api/handlers/knowledge"
	"docqa/internal/ai"
	"docqa/internal/config"
	"docqa/internal/logger"
	"docqa/internal/metrics"
	middlewarepkg "docqa/internal/middleware"
	"docqa/internal/rag"
	"docqa/internal/websearch"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// SetupRouter 组装全部依赖并返回 Gin 路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()

	// 初始化 Redis 客户端（向量化缓存），连接失败时退回进程内缓存
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			MaintNotificationsConfig: &maintnotifications.Config{ // Redis 服务器不支持 maint_notifications
				Mode: maintnotifications.ModeDisabled,
			},
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis 不可用，向量化缓存退回进程内实现", zap.Error(err))
			redisClient = nil
		}
	}

	// 初始化向量化组件
	embedder := buildEmbedder(cfg, redisClient)

	// 初始化向量库与入库流水线
	store := rag.NewVectorStore(cfg.RAG.StorePath)
	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	ingestor := rag.NewIngestor(store, embedder, chunker, cfg.Upload.MaxFileSize)

	// 初始化网络搜索与上下文检索
	searcher := websearch.NewSerpSearcher(
		cfg.WebSearch.APIKey,
		cfg.WebSearch.BaseURL,
		time.Duration(cfg.WebSearch.Timeout)*time.Second,
	)
	if !searcher.IsConfigured() {
		logger.Warn("SerpAPI Key 未配置，网络搜索将返回降级提示结果")
	}
	retriever := rag.NewRetriever(store, embedder, searcher, rag.RetrievalPolicy{
		MaxChunks:           cfg.RAG.MaxChunks,
		SimilarityThreshold: cfg.RAG.SimilarityThreshold,
		RelaxedThreshold:    cfg.RAG.RelaxedThreshold,
		RelaxedTrigger:      cfg.RAG.RelaxedTrigger,
		WebMinDocs:          cfg.RAG.WebMinDocs,
		WebResults:          cfg.RAG.WebResults,
	})

	// 初始化答案生成模型
	generator := buildGenerator(cfg)

	// 知识库规模指标采集
	metrics.NewSystemCollector(func() int {
		return store.Stats().NumDocuments
	})

	// 问答接口限流器
	limiter := middlewarepkg.NewRateLimiter(middlewarepkg.DefaultRateLimiterConfig())

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())

	// Prometheus 指标收集中间件
	router.Use(metrics.PrometheusMiddleware())

	router.MaxMultipartMemory = 32 << 20

	// 公开端点
	router.GET("/health", HealthCheck())

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 初始化 Handlers
	knowledgeHandler := knowledgeHandlers.NewHandler(ingestor, embedder, store, cfg.RAG.SimilarityThreshold)
	chatHandler := chatHandlers.NewHandler(retriever, generator)

	// 版本化 API 组
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents", knowledgeHandler.Upload)
		apiV1.DELETE("/documents", knowledgeHandler.Clear)
		apiV1.POST("/search", knowledgeHandler.Search)
		apiV1.GET("/stats", knowledgeHandler.Stats)
		apiV1.POST("/chat", middlewarepkg.RateLimitMiddleware(limiter), chatHandler.Ask)
	}

	return router
}

// buildEmbedder 按配置选择向量化实现并套上缓存层
func buildEmbedder(cfg *config.Config, redisClient *redis.Client) rag.EmbeddingProvider {
	var base rag.EmbeddingProvider
	switch strings.ToLower(strings.TrimSpace(cfg.Embedding.Provider)) {
	case "openai":
		apiKey := cfg.EmbeddingAPIKey()
		if strings.TrimSpace(apiKey) == "" {
			logger.Warn("OpenAI Embedding API Key 未配置，退回本地哈希向量化")
			base = rag.NewLocalEmbeddingProvider(cfg.Embedding.Dimension)
		} else {
			base = rag.NewOpenAIEmbeddingProvider(apiKey, cfg.Embedding.BaseURL, cfg.Embedding.Model)
		}
	default:
		base = rag.NewLocalEmbeddingProvider(cfg.Embedding.Dimension)
	}

	cache := rag.NewEmbeddingCache(redisClient, "docqa:emb:", 0)
	return rag.NewCachedEmbeddingProvider(base, cache)
}

// buildGenerator 构造答案生成模型，凭证缺失时用占位实现保证服务可启动
func buildGenerator(cfg *config.Config) ai.Generator {
	gen, err := ai.NewOpenAIGenerator(
		cfg.AI.OpenAI.APIKey,
		cfg.AI.OpenAI.BaseURL,
		cfg.AI.OpenAI.Model,
		cfg.AI.OpenAI.Temperature,
		cfg.AI.OpenAI.MaxTokens,
	)
	if err != nil {
		logger.Warn("OpenAI 生成模型不可用，问答将返回兜底话术", zap.Error(err))
		return ai.UnconfiguredGenerator{}
	}
	return gen
}
