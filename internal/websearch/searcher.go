// Package websearch 封装网络搜索适配器,用于在文档证据不足时补充实时信息
package websearch

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/pkg/httputil"
)

// defaultEndpoint SerpAPI 官方搜索端点
const defaultEndpoint = "https://serpapi.com/search"

// WebResult 单条网络搜索结果
type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
	Source  string `json:"source"`
}

// Searcher 网络搜索适配器接口
type Searcher interface {
	// Search 执行搜索,永不返回错误,失败时退化为一条说明性结果
	Search(ctx context.Context, query string, numResults int) []WebResult
	// IsConfigured 是否已配置搜索凭证
	IsConfigured() bool
}

// SerpSearcher 基于 SerpAPI 的 Searcher 实现
type SerpSearcher struct {
	apiKey  string
	baseURL string
	engine  string
	client  *httputil.CachedClient
}

// serpResponse SerpAPI 响应中关心的字段
type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
	} `json:"organic_results"`
}

// NewSerpSearcher 创建 SerpAPI 搜索适配器
// baseURL 为空时使用官方端点
func NewSerpSearcher(apiKey, baseURL string, timeout time.Duration) *SerpSearcher {
	if baseURL == "" {
		baseURL = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	base := httputil.NewClient(
		httputil.WithTimeout(timeout),
		httputil.WithRetries(1),
	)

	return &SerpSearcher{
		apiKey:  apiKey,
		baseURL: baseURL,
		engine:  "google",
		// 相同查询短时间内复用缓存结果,减少配额消耗
		client: httputil.NewCachedClient(base, httputil.WithCacheTTL(5*time.Minute)),
	}
}

// IsConfigured 是否已配置搜索凭证
func (s *SerpSearcher) IsConfigured() bool {
	return strings.TrimSpace(s.apiKey) != ""
}

// Search 执行网络搜索
// 任何传输或鉴权失败都退化为一条降级结果,调用方始终能拿到可展示的内容
func (s *SerpSearcher) Search(ctx context.Context, query string, numResults int) []WebResult {
	if numResults <= 0 {
		numResults = 3
	}

	// 1. 未配置凭证时直接降级
	if !s.IsConfigured() {
		return []WebResult{unavailableResult()}
	}

	// 2. 构造请求参数
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("engine", s.engine)
	params.Set("num", strconv.Itoa(numResults))
	params.Set("gl", "us")
	params.Set("hl", "en")

	// 3. 调用 SerpAPI
	var resp serpResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		logger.Error("网络搜索失败", zap.String("query", query), zap.Error(err))
		metrics.RecordWebSearch(false)
		return []WebResult{unavailableResult()}
	}

	// 4. 提取搜索结果,最多 numResults 条
	results := make([]WebResult, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		if len(results) >= numResults {
			break
		}
		results = append(results, WebResult{
			Title:   r.Title,
			Snippet: r.Snippet,
			Link:    r.Link,
			Source:  r.Source,
		})
	}

	metrics.RecordWebSearch(true)
	logger.Info("网络搜索完成",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results
}

// unavailableResult 搜索不可用时的降级结果
func unavailableResult() WebResult {
	return WebResult{
		Title:   "Web search unavailable",
		Snippet: "Web search could not be completed. The search service is not configured or is temporarily unreachable.",
		Link:    "",
		Source:  "system",
	}
}
