// Package httputil 封装对外部服务的 HTTP 访问:统一超时、默认请求头、
// 5xx 重试以及 GET 响应的短期缓存。
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// retryBaseDelay 重试间隔基数,第 n 次重试前等待 n*retryBaseDelay
const retryBaseDelay = 100 * time.Millisecond

// Client 带重试的 HTTP 客户端。
// 服务端错误(5xx)和传输错误会重试,客户端错误(4xx)原样返回。
type Client struct {
	hc         *http.Client
	headers    map[string]string
	maxRetries int
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithTimeout 设置单次请求的超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.hc.Timeout = timeout
	}
}

// WithHeaders 替换默认请求头集合
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithRetries 设置失败后的最大重试次数(总尝试次数为 retries+1)
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

// NewClient 创建 HTTP 客户端,默认 30 秒超时、不重试
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	// 调用方未指定 User-Agent 时补默认值
	if _, ok := c.headers["User-Agent"]; !ok {
		c.headers["User-Agent"] = "DocQA/1.0"
	}
	return c
}

// SetHeader 追加或覆盖单个默认请求头
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Do 执行请求。5xx 或传输错误时按递增间隔重试,
// 重试耗尽后返回最后一次的响应与错误。
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.hc.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt >= c.maxRetries {
			return resp, err
		}
		time.Sleep(time.Duration(attempt+1) * retryBaseDelay)
	}
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建GET请求失败: %w", err)
	}
	return c.Do(ctx, req)
}

// GetJSON 发送 GET 请求并将响应体解析到 result
func (c *Client) GetJSON(ctx context.Context, url string, result interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("GET请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP请求返回错误状态: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}
