// Package chat 提供文档问答 API
package chat

import (
	"context"
	"net/http"
	"unicode/utf8"

	response "docqa/api/handlers/common"
	"docqa/internal/ai"
	"docqa/internal/rag"

	"github.com/gin-gonic/gin"
)

// ContextRetriever 检索与上下文组装能力
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, useWebSearch bool) *rag.RetrievalResult
}

// Handler 问答处理器
type Handler struct {
	retriever ContextRetriever
	generator ai.Generator
}

// NewHandler 创建问答处理器
func NewHandler(retriever ContextRetriever, generator ai.Generator) *Handler {
	return &Handler{
		retriever: retriever,
		generator: generator,
	}
}

// ChatRequest 问答请求
type ChatRequest struct {
	Question     string `json:"question" binding:"required,min=1"`
	ResponseMode string `json:"response_mode"` // detailed(默认) 或 concise
	UseWebSearch *bool  `json:"use_web_search"` // 缺省为 true
}

// ChatResponse 问答响应
type ChatResponse struct {
	Answer        string `json:"answer"`
	Sources       string `json:"sources"`
	DocCount      int    `json:"doc_count"`
	WebSearchUsed bool   `json:"web_search_used"`
	ContextLength int    `json:"context_length"`
}

// Ask 文档问答
// @Summary 基于知识库回答问题
// @Description 检索相关文档块组装上下文后调用生成模型回答。文档证据不足且开启网络搜索时自动补充实时信息。生成失败时返回致歉文本而非错误,问答请求永远有回答
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body ChatRequest true "问答请求"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/chat [post]
func (h *Handler) Ask(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	// 网络搜索默认开启,调用方可显式关闭
	useWebSearch := true
	if req.UseWebSearch != nil {
		useWebSearch = *req.UseWebSearch
	}

	// 1. 检索并组装上下文
	result := h.retriever.RetrieveContext(c.Request.Context(), req.Question, useWebSearch)

	// 2. 生成回答,失败时退化为致歉文本,不让对话死在错误页上
	answer, err := h.generator.GenerateAnswer(c.Request.Context(), req.Question, result.Context, ai.NormalizeMode(req.ResponseMode))
	if err != nil {
		answer = "Sorry, I encountered an error processing your query: " + err.Error()
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: ChatResponse{
		Answer:        answer,
		Sources:       result.Sources,
		DocCount:      result.DocCount,
		WebSearchUsed: result.WebSearchUsed,
		ContextLength: utf8.RuneCountInString(result.Context),
	}})
}
