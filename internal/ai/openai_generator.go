package ai

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"docqa/internal/logger"
	"docqa/internal/metrics"
)

// OpenAIGenerator 基于 OpenAI Chat Completions 的 Generator 实现
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
}

// NewOpenAIGenerator 创建 OpenAI 生成客户端
// baseURL 为空时使用官方端点,兼容任何 OpenAI 协议的网关
func NewOpenAIGenerator(apiKey, baseURL, model string, temperature float64, maxTokens int) (*OpenAIGenerator, error) {
	// 验证配置
	if apiKey == "" {
		return nil, &ClientError{
			Type:    ErrorTypeAuth,
			Message: "OpenAI API Key 不能为空",
		}
	}

	// 创建配置
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	// 设置默认值
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		maxRetries:  3,
	}, nil
}

// GenerateAnswer 基于检索上下文生成回答
func (g *OpenAIGenerator) GenerateAnswer(ctx context.Context, query, contextText, responseMode string) (string, error) {
	// 1. 构造提示词
	prompt := BuildPrompt(query, contextText, NormalizeMode(responseMode))

	openaiReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(g.temperature),
		MaxTokens:   g.maxTokens,
	}

	// 2. 调用 API（带重试与指数退避）
	var resp openai.ChatCompletionResponse
	err := metrics.RecordModelCall("openai", g.model, func() (int, int, error) {
		var callErr error
		for i := 0; i <= g.maxRetries; i++ {
			resp, callErr = g.client.CreateChatCompletion(ctx, openaiReq)
			if callErr == nil {
				break
			}

			// 判断是否可重试
			if !isRetryableError(callErr) {
				break
			}

			// 指数退避
			if i < g.maxRetries {
				backoff := time.Duration(1<<uint(i)) * time.Second
				time.Sleep(backoff)
			}
		}
		if callErr != nil {
			return 0, 0, callErr
		}
		return resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
	})
	if err != nil {
		logger.Error("答案生成失败",
			zap.String("model", g.model),
			zap.Error(err))
		return "", wrapError(err)
	}

	// 3. 转换响应
	if len(resp.Choices) == 0 {
		return "", &ClientError{
			Type:    ErrorTypeServerError,
			Message: "API 返回空响应",
		}
	}

	// 4. 空白输出回退为固定提示,避免给用户一个空答案
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "Sorry, I couldn't generate a response right now.", nil
	}
	return answer, nil
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	// 简化判断：网络错误和服务器错误可重试
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "500") ||
		strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") ||
		strings.Contains(errMsg, "504")
}

// wrapError 包装错误
func wrapError(err error) *ClientError {
	errMsg := strings.ToLower(err.Error())

	// 判断错误类型
	var errType ErrorType
	switch {
	case strings.Contains(errMsg, "401") || strings.Contains(errMsg, "403"):
		errType = ErrorTypeAuth
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "429"):
		errType = ErrorTypeRateLimit
	case strings.Contains(errMsg, "400") || strings.Contains(errMsg, "invalid"):
		errType = ErrorTypeInvalidParams
	case strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") || strings.Contains(errMsg, "503"):
		errType = ErrorTypeServerError
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "connection"):
		errType = ErrorTypeNetwork
	default:
		errType = ErrorTypeUnknown
	}

	return &ClientError{
		Type:    errType,
		Message: "OpenAI API 错误",
		Err:     err,
	}
}
