// Package ai 封装答案生成模型的调用
package ai

import (
	"context"
	"fmt"
)

// 回答模式
const (
	ModeDetailed = "detailed"
	ModeConcise  = "concise"
)

// Generator 答案生成接口
type Generator interface {
	// GenerateAnswer 基于检索上下文生成回答
	// contextText 为空时退化为无上下文直接回答
	GenerateAnswer(ctx context.Context, query, contextText, responseMode string) (string, error)
}

// NormalizeMode 归一化回答模式,未知值回退为 detailed
func NormalizeMode(mode string) string {
	if mode == ModeConcise {
		return ModeConcise
	}
	return ModeDetailed
}

// UnconfiguredGenerator 在未配置模型凭证时占位,调用方收到认证错误后走兜底话术
type UnconfiguredGenerator struct{}

func (UnconfiguredGenerator) GenerateAnswer(ctx context.Context, query, contextText, responseMode string) (string, error) {
	return "", &ClientError{Type: ErrorTypeAuth, Message: "生成模型未配置 API Key"}
}

// BuildPrompt 构造完整提示词
func BuildPrompt(query, contextText, responseMode string) string {
	systemMsg := "You are a helpful AI assistant. Answer questions based on the provided information."

	modeMsg := "Provide a detailed explanation with examples if helpful."
	if responseMode == ModeConcise {
		modeMsg = "Keep your answer brief and to the point."
	}

	if contextText != "" {
		return fmt.Sprintf("%s\n\n%s\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:", systemMsg, modeMsg, contextText, query)
	}
	return fmt.Sprintf("%s\n\n%s\n\nQuestion: %s\n\nAnswer:", systemMsg, modeMsg, query)
}
