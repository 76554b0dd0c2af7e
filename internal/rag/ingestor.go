package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/rag/parsers"
)

// UploadedDocument 待入库的上传文档,内容已完整读入内存
type UploadedDocument struct {
	Name string
	Data []byte
}

// IngestError 单个文件的失败记录
type IngestError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// IngestReport 批量入库报告
type IngestReport struct {
	Processed   int           `json:"processed"`
	TotalChunks int           `json:"total_chunks"`
	Errors      []IngestError `json:"errors"`
}

// Ingestor 文档入库服务:提取文本 -> 分块 -> 向量化 -> 写入向量库
type Ingestor struct {
	store          *VectorStore
	embedder       EmbeddingProvider
	chunker        *Chunker
	parserRegistry *parsers.ParserRegistry
	maxFileSize    int64
	tracer         trace.Tracer
}

// NewIngestor 创建文档入库服务
func NewIngestor(store *VectorStore, embedder EmbeddingProvider, chunker *Chunker, maxFileSize int64) *Ingestor {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20 // 默认上限 10MB
	}
	return &Ingestor{
		store:          store,
		embedder:       embedder,
		chunker:        chunker,
		parserRegistry: parsers.NewParserRegistry(),
		maxFileSize:    maxFileSize,
		tracer:         otel.Tracer("docqa/internal/rag"),
	}
}

// SupportedExtensions 返回可入库的文件扩展名
func (ing *Ingestor) SupportedExtensions() []string {
	return ing.parserRegistry.SupportedExtensions()
}

// IngestDocuments 批量入库文档
// 单个文件失败不会中断整个批次,失败原因逐一记录在报告中
func (ing *Ingestor) IngestDocuments(ctx context.Context, docs []UploadedDocument) (*IngestReport, error) {
	ctx, span := ing.tracer.Start(ctx, "Ingestor.IngestDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	report := &IngestReport{Errors: make([]IngestError, 0)}
	if len(docs) == 0 {
		return report, nil
	}

	for _, doc := range docs {
		format := strings.ToLower(filepath.Ext(doc.Name))
		chunkCount, err := metrics.RecordDocumentIngest(format, func() (int, error) {
			return ing.ingestOne(ctx, doc)
		})
		if err != nil {
			logger.Warn("文档入库失败",
				zap.String("file", doc.Name),
				zap.Error(err))
			report.Errors = append(report.Errors, IngestError{File: doc.Name, Error: err.Error()})
			continue
		}

		report.Processed++
		report.TotalChunks += chunkCount
	}

	// 同步向量库规模指标
	metrics.StoreChunks.Set(float64(ing.store.Stats().NumDocuments))

	span.SetAttributes(
		attribute.Int("processed", report.Processed),
		attribute.Int("total_chunks", report.TotalChunks),
		attribute.Int("failed", len(report.Errors)),
	)

	logger.Info("批量入库完成",
		zap.Int("processed", report.Processed),
		zap.Int("total_chunks", report.TotalChunks),
		zap.Int("failed", len(report.Errors)))

	return report, nil
}

// ingestOne 入库单个文档,返回产生的文本块数量
func (ing *Ingestor) ingestOne(ctx context.Context, doc UploadedDocument) (int, error) {
	ctx, span := ing.tracer.Start(ctx, "Ingestor.ingestOne")
	defer span.End()

	span.SetAttributes(attribute.String("file_name", doc.Name))

	// 1. 基础校验
	if strings.TrimSpace(doc.Name) == "" {
		return 0, fmt.Errorf("文件名为空")
	}
	if int64(len(doc.Data)) > ing.maxFileSize {
		return 0, fmt.Errorf("文件过大: %d 字节,上限 %d 字节", len(doc.Data), ing.maxFileSize)
	}

	// 2. 提取文本
	content, err := ing.parserRegistry.Parse(doc.Name, bytes.NewReader(doc.Data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text extraction failed")
		if errors.Is(err, parsers.ErrUnsupportedFormat) {
			return 0, err
		}
		return 0, fmt.Errorf("提取文本失败: %v: %w", err, ErrExtractionFailure)
	}

	// 3. 分块
	chunks, err := ing.chunker.ChunkDocument(content)
	if err != nil {
		return 0, fmt.Errorf("文档分块失败: %w", err)
	}

	// 4. 批量向量化
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return 0, fmt.Errorf("向量化失败: %w", err)
	}

	// 5. 写入向量库,块 ID 按本批次内的顺序编号
	metadata := make([]Metadata, len(chunks))
	for i, chunk := range chunks {
		metadata[i] = Metadata{
			ID:         i,
			Source:     doc.Name,
			FileName:   doc.Name,
			ChunkIndex: chunk.ChunkIndex,
			Origin:     "uploaded",
		}
	}

	if err := ing.store.AddDocuments(texts, embeddings, metadata); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector store write failed")
		return 0, fmt.Errorf("写入向量库失败: %w", err)
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	logger.Info("文档入库完成",
		zap.String("file", doc.Name),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
