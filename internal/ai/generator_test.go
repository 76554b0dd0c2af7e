package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/logger"
)

func init() {
	_ = logger.Init("debug", "console", "stdout")
}

func TestBuildPrompt_DetailedWithContext(t *testing.T) {
	prompt := BuildPrompt("What is Go?", "Go is a programming language.", ModeDetailed)

	expected := "You are a helpful AI assistant. Answer questions based on the provided information.\n\n" +
		"Provide a detailed explanation with examples if helpful.\n\n" +
		"Context:\nGo is a programming language.\n\n" +
		"Question: What is Go?\n\nAnswer:"
	assert.Equal(t, expected, prompt)
}

func TestBuildPrompt_ConciseWithContext(t *testing.T) {
	prompt := BuildPrompt("What is Go?", "Go is a programming language.", ModeConcise)

	expected := "You are a helpful AI assistant. Answer questions based on the provided information.\n\n" +
		"Keep your answer brief and to the point.\n\n" +
		"Context:\nGo is a programming language.\n\n" +
		"Question: What is Go?\n\nAnswer:"
	assert.Equal(t, expected, prompt)
}

func TestBuildPrompt_WithoutContext(t *testing.T) {
	prompt := BuildPrompt("What is Go?", "", ModeDetailed)

	expected := "You are a helpful AI assistant. Answer questions based on the provided information.\n\n" +
		"Provide a detailed explanation with examples if helpful.\n\n" +
		"Question: What is Go?\n\nAnswer:"
	assert.Equal(t, expected, prompt)
	assert.NotContains(t, prompt, "Context:")
}

func TestNormalizeMode(t *testing.T) {
	assert.Equal(t, ModeConcise, NormalizeMode("concise"))
	assert.Equal(t, ModeDetailed, NormalizeMode("detailed"))
	assert.Equal(t, ModeDetailed, NormalizeMode(""))
	assert.Equal(t, ModeDetailed, NormalizeMode("verbose"))
	assert.Equal(t, ModeDetailed, NormalizeMode("CONCISE"))
}

func TestUnconfiguredGenerator(t *testing.T) {
	answer, err := UnconfiguredGenerator{}.GenerateAnswer(context.Background(), "你好", "", ModeDetailed)

	assert.Empty(t, answer)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrorTypeAuth, clientErr.Type)
	assert.False(t, clientErr.IsRetryable())
}

func TestNewOpenAIGenerator_RequiresAPIKey(t *testing.T) {
	gen, err := NewOpenAIGenerator("", "", "gpt-4o-mini", 0.7, 1024)

	assert.Nil(t, gen)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrorTypeAuth, clientErr.Type)
}

func TestNewOpenAIGenerator_Defaults(t *testing.T) {
	gen, err := NewOpenAIGenerator("sk-test", "", "", 0.7, 0)
	require.NoError(t, err)

	assert.Equal(t, openai.GPT4oMini, gen.model)
	assert.Equal(t, 1024, gen.maxTokens)
	assert.Equal(t, 3, gen.maxRetries)
}

// newChatCompletionServer 构造返回固定回答的假 OpenAI 服务,并捕获收到的请求
func newChatCompletionServer(t *testing.T, content string, captured *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(captured)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, content)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIGenerator_GenerateAnswer(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	server := newChatCompletionServer(t, "Go 是一门编译型语言。", &gotReq)

	gen, err := NewOpenAIGenerator("sk-test", server.URL+"/v1", "gpt-4o-mini", 0.3, 256)
	require.NoError(t, err)

	answer, err := gen.GenerateAnswer(context.Background(), "What is Go?", "Go is a language.", ModeConcise)
	require.NoError(t, err)
	assert.Equal(t, "Go 是一门编译型语言。", answer)

	// 请求应携带归一化模式下构造的完整提示词
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, gotReq.Messages[0].Role)
	assert.Equal(t, BuildPrompt("What is Go?", "Go is a language.", ModeConcise), gotReq.Messages[0].Content)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Equal(t, 256, gotReq.MaxTokens)
}

func TestOpenAIGenerator_BlankAnswerFallsBack(t *testing.T) {
	server := newChatCompletionServer(t, "   \n\t", nil)

	gen, err := NewOpenAIGenerator("sk-test", server.URL+"/v1", "gpt-4o-mini", 0.3, 256)
	require.NoError(t, err)

	answer, err := gen.GenerateAnswer(context.Background(), "anything", "", ModeDetailed)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't generate a response right now.", answer)
}

func TestOpenAIGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0,"total_tokens":1}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("sk-test", server.URL+"/v1", "gpt-4o-mini", 0.3, 256)
	require.NoError(t, err)

	answer, err := gen.GenerateAnswer(context.Background(), "anything", "", ModeDetailed)
	assert.Empty(t, answer)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrorTypeServerError, clientErr.Type)
}

func TestOpenAIGenerator_AuthErrorNotRetried(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("sk-bad", server.URL+"/v1", "gpt-4o-mini", 0.3, 256)
	require.NoError(t, err)

	answer, err := gen.GenerateAnswer(context.Background(), "anything", "", ModeDetailed)
	assert.Empty(t, answer)

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrorTypeAuth, clientErr.Type)

	// 鉴权错误不可重试,只应请求一次
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("request timeout")))
	assert.True(t, isRetryableError(errors.New("connection refused")))
	assert.True(t, isRetryableError(errors.New("rate limit exceeded")))
	assert.True(t, isRetryableError(errors.New("status code: 503")))
	assert.False(t, isRetryableError(errors.New("status code: 401")))
	assert.False(t, isRetryableError(errors.New("invalid request")))
}

func TestWrapError_Classification(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected ErrorType
	}{
		{"鉴权错误", "status code: 401, unauthorized", ErrorTypeAuth},
		{"速率限制", "status code: 429, rate limit reached", ErrorTypeRateLimit},
		{"参数错误", "status code: 400, invalid model", ErrorTypeInvalidParams},
		{"服务端错误", "status code: 502, bad gateway", ErrorTypeServerError},
		{"网络错误", "dial tcp: connection refused", ErrorTypeNetwork},
		{"未知错误", "something odd happened", ErrorTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := wrapError(errors.New(tc.input))
			assert.Equal(t, tc.expected, wrapped.Type)
			assert.ErrorContains(t, wrapped, tc.input)
		})
	}
}

func TestClientError(t *testing.T) {
	inner := errors.New("boom")
	err := &ClientError{Type: ErrorTypeNetwork, Message: "请求失败", Err: inner}

	assert.Equal(t, "请求失败: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.True(t, err.IsRetryable())

	bare := &ClientError{Type: ErrorTypeInvalidParams, Message: "参数无效"}
	assert.Equal(t, "参数无效", bare.Error())
	assert.Nil(t, bare.Unwrap())
	assert.False(t, bare.IsRetryable())
}
