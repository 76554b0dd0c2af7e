// Package knowledge 提供知识库管理 API:文档上传、检索、统计与清空
package knowledge

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	response "docqa/api/handlers/common"
	"docqa/internal/rag"

	"github.com/gin-gonic/gin"
)

// IngestService 文档入库能力
type IngestService interface {
	IngestDocuments(ctx context.Context, docs []rag.UploadedDocument) (*rag.IngestReport, error)
	SupportedExtensions() []string
}

// QueryEmbedder 查询向量化能力
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher 向量库检索与维护能力
type VectorSearcher interface {
	Search(queryVector []float32, topK int, threshold float64) ([]*rag.SearchResult, error)
	Stats() rag.StoreStats
	Clear() error
}

// Handler 知识库处理器
type Handler struct {
	ingestor         IngestService
	embedder         QueryEmbedder
	store            VectorSearcher
	defaultThreshold float64
}

// NewHandler 创建知识库处理器
func NewHandler(ingestor IngestService, embedder QueryEmbedder, store VectorSearcher, defaultThreshold float64) *Handler {
	return &Handler{
		ingestor:         ingestor,
		embedder:         embedder,
		store:            store,
		defaultThreshold: defaultThreshold,
	}
}

// Upload 批量上传文档
// @Summary 批量上传文档入库
// @Description 接收 multipart 文件列表,逐个解析、分块、向量化后写入知识库。单个文件失败不影响其余文件,结果在报告中逐一列出
// @Tags Knowledge
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "文档文件,可多选,支持 .pdf .docx .txt .md"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/documents [post]
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "解析上传表单失败: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "未找到上传文件,请使用 files 字段"})
		return
	}

	// 逐个读取文件内容,读取失败的文件与入库失败同样记入报告
	docs := make([]rag.UploadedDocument, 0, len(files))
	readErrors := make([]rag.IngestError, 0)
	for _, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			readErrors = append(readErrors, rag.IngestError{File: fh.Filename, Error: "读取文件失败: " + err.Error()})
			continue
		}
		docs = append(docs, rag.UploadedDocument{Name: fh.Filename, Data: data})
	}

	report, err := h.ingestor.IngestDocuments(c.Request.Context(), docs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "文档入库失败: " + err.Error()})
		return
	}
	report.Errors = append(report.Errors, readErrors...)

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: report})
}

// readMultipartFile 读取单个上传文件的完整内容
func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query     string   `json:"query" binding:"required,min=1"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

// Search 语义检索
// @Summary 知识库语义检索
// @Tags Knowledge
// @Accept json
// @Produce json
// @Param request body SearchRequest true "检索请求"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/search [post]
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	// 默认 TopK
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	if topK > 20 {
		topK = 20
	}

	// 未显式指定阈值时使用配置的严格阈值
	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	// 向量化查询
	queryVector, err := h.embedder.Embed(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询向量化失败: " + err.Error()})
		return
	}

	// 执行检索
	results, err := h.store.Search(queryVector, topK, threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "检索失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: gin.H{
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	}})
}

// Stats 知识库统计
// @Summary 知识库统计信息
// @Tags Knowledge
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /api/v1/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	stats := h.store.Stats()
	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: gin.H{
		"num_documents":        stats.NumDocuments,
		"embedding_dimension":  stats.EmbeddingDimension,
		"store_path":           stats.StorePath,
		"supported_extensions": h.ingestor.SupportedExtensions(),
	}})
}

// Clear 清空知识库
// @Summary 清空知识库
// @Description 删除所有已入库的文档块与持久化文件,操作幂等
// @Tags Knowledge
// @Produce json
// @Success 200 {object} response.APIResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/documents [delete]
func (h *Handler) Clear(c *gin.Context) {
	if err := h.store.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "清空知识库失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "知识库已清空"})
}
