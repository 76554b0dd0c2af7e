package rag

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"docqa/internal/logger"
)

// storeFileName 知识库持久化文件名，位于配置的存储目录下
const storeFileName = "store.json"

// Metadata 段落元数据。随段落一起持久化，检索结果原样携带。
type Metadata struct {
	ID         int    `json:"id"`
	Source     string `json:"source"`
	FileName   string `json:"file_name,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Origin     string `json:"origin,omitempty"` // uploaded | web
}

// SearchResult 描述一次相似度检索的返回结果。临时对象，不持久化。
type SearchResult struct {
	Content    string   `json:"content"`
	Similarity float64  `json:"similarity"`
	Metadata   Metadata `json:"metadata"`
}

// StoreStats 记录知识库的统计信息。
type StoreStats struct {
	NumDocuments       int    `json:"num_documents"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	StorePath          string `json:"store_path"`
}

// storeSnapshot 持久化文件结构。三个切片按下标一一对应。
type storeSnapshot struct {
	Documents  []string    `json:"documents"`
	Embeddings [][]float32 `json:"embeddings"`
	Metadata   []Metadata  `json:"metadata"`
	Dimension  int         `json:"dimension"`
}

// VectorStore 内存矩阵 + 单文件JSON持久化的向量存储。
// 段落、向量、元数据三个切片始终保持等长；
// 只支持追加和整库清空，不支持按条删除。
// 读写锁保证并发安全：写入(含全量落盘)持写锁，检索持读锁。
type VectorStore struct {
	mu         sync.RWMutex
	documents  []string
	embeddings [][]float32
	metadata   []Metadata
	dimension  int
	storePath  string
}

// NewVectorStore 创建向量存储并尝试从磁盘恢复。
// 持久化文件缺失视为空库；文件损坏时重置为空库并告警，绝不阻塞启动。
func NewVectorStore(storePath string) *VectorStore {
	s := &VectorStore{storePath: storePath}
	s.load()
	return s
}

func (s *VectorStore) artifactPath() string {
	return filepath.Join(s.storePath, storeFileName)
}

// AddDocuments 追加段落及其向量，并同步将全量存储落盘后才返回。
// metadata 为 nil 时按批内下标生成默认元数据 {id: i, source: "unknown"}。
func (s *VectorStore) AddDocuments(documents []string, embeddings [][]float32, metadata []Metadata) error {
	if len(documents) == 0 {
		return nil
	}

	// 1. 前置校验：三个切片必须等长
	if len(documents) != len(embeddings) {
		return fmt.Errorf("段落数量与向量数量不一致: %d != %d", len(documents), len(embeddings))
	}
	if metadata != nil && len(metadata) != len(documents) {
		return fmt.Errorf("段落数量与元数据数量不一致: %d != %d", len(documents), len(metadata))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 2. 维度校验：首次写入确立维度，之后不允许漂移
	width := s.dimension
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return fmt.Errorf("第 %d 条向量为空: %w", i, ErrDimensionMismatch)
		}
		if width == 0 {
			width = len(emb)
		}
		if len(emb) != width {
			return fmt.Errorf("第 %d 条向量维度 %d 与存储维度 %d 不一致: %w",
				i, len(emb), width, ErrDimensionMismatch)
		}
	}

	// 3. 默认元数据
	if metadata == nil {
		metadata = make([]Metadata, len(documents))
		for i := range documents {
			metadata[i] = Metadata{ID: i, Source: "unknown"}
		}
	}

	// 4. 追加入内存
	s.documents = append(s.documents, documents...)
	s.embeddings = append(s.embeddings, embeddings...)
	s.metadata = append(s.metadata, metadata...)
	s.dimension = width

	// 5. 同步全量落盘(非增量)
	if err := s.persistLocked(); err != nil {
		return err
	}

	logger.Debug("向量存储追加完成",
		zap.Int("added", len(documents)),
		zap.Int("total", len(s.documents)))
	return nil
}

// Search 对查询向量执行余弦相似度检索。
// 每次调用重新计算所有向量的范数，不做预归一化缓存(千级段落规模下足够)。
// 返回按相似度降序的前 topK 条且分数不低于 threshold 的结果；
// 同分时先入库的段落排前。空库返回空结果并告警，不报错。
func (s *VectorStore) Search(queryVector []float32, topK int, threshold float64) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.documents) == 0 {
		logger.Warn("向量存储为空，检索返回空结果")
		return []*SearchResult{}, nil
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("查询向量维度 %d 与存储维度 %d 不一致: %w",
			len(queryVector), s.dimension, ErrDimensionMismatch)
	}
	if topK <= 0 {
		return []*SearchResult{}, nil
	}

	// 1. 逐行计算余弦相似度
	scores := make([]float64, len(s.embeddings))
	for i, row := range s.embeddings {
		scores[i] = cosineSimilarity(queryVector, row)
	}

	// 2. 按分数降序稳定排序，同分保持插入顺序
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// 3. 取前 topK 并过滤低于阈值的结果(降序排列，遇到低分即可截断)
	results := make([]*SearchResult, 0, topK)
	for _, idx := range order {
		if len(results) >= topK {
			break
		}
		if scores[idx] < threshold {
			break
		}
		results = append(results, &SearchResult{
			Content:    s.documents[idx],
			Similarity: scores[idx],
			Metadata:   s.metadata[idx],
		})
	}

	return results, nil
}

// Clear 清空存储并删除持久化文件。幂等：对空库重复调用不报错。
func (s *VectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = nil
	s.embeddings = nil
	s.metadata = nil
	s.dimension = 0

	if err := os.Remove(s.artifactPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除向量存储文件失败: %w", err)
	}

	logger.Info("向量存储已清空", zap.String("path", s.storePath))
	return nil
}

// Stats 返回当前存储的统计信息。
func (s *VectorStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreStats{
		NumDocuments:       len(s.documents),
		EmbeddingDimension: s.dimension,
		StorePath:          s.storePath,
	}
}

// load 从磁盘恢复存储。任何读取或校验失败都按损坏处理：
// 告警后以空库继续，不中断进程启动。
func (s *VectorStore) load() {
	data, err := os.ReadFile(s.artifactPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("向量存储读取失败，以空库启动",
				zap.String("path", s.artifactPath()), zap.Error(err))
		}
		return
	}

	var snap storeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("向量存储文件损坏，以空库启动",
			zap.String("path", s.artifactPath()),
			zap.Error(fmt.Errorf("%w: %v", ErrStoreCorruption, err)))
		return
	}

	// 等长校验失败同样视为损坏
	if len(snap.Documents) != len(snap.Embeddings) || len(snap.Documents) != len(snap.Metadata) {
		logger.Warn("向量存储文件内部不一致，以空库启动",
			zap.String("path", s.artifactPath()),
			zap.Int("documents", len(snap.Documents)),
			zap.Int("embeddings", len(snap.Embeddings)),
			zap.Int("metadata", len(snap.Metadata)))
		return
	}

	s.documents = snap.Documents
	s.embeddings = snap.Embeddings
	s.metadata = snap.Metadata
	s.dimension = snap.Dimension
	if s.dimension == 0 && len(s.embeddings) > 0 {
		s.dimension = len(s.embeddings[0])
	}

	logger.Info("向量存储加载完成",
		zap.Int("documents", len(s.documents)),
		zap.Int("dimension", s.dimension))
}

// persistLocked 全量序列化并写盘。先写临时文件再原子替换，
// 避免进程中断留下半个文件。调用方必须持有写锁。
func (s *VectorStore) persistLocked() error {
	if err := os.MkdirAll(s.storePath, 0o755); err != nil {
		return fmt.Errorf("创建存储目录失败: %w", err)
	}

	snap := storeSnapshot{
		Documents:  s.documents,
		Embeddings: s.embeddings,
		Metadata:   s.metadata,
		Dimension:  s.dimension,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化向量存储失败: %w", err)
	}

	tmpPath := s.artifactPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("写入向量存储失败: %w", err)
	}
	if err := os.Rename(tmpPath, s.artifactPath()); err != nil {
		return fmt.Errorf("替换向量存储文件失败: %w", err)
	}

	return nil
}

// cosineSimilarity 计算两个向量的余弦相似度。
// 两侧按L2范数归一化后求点积，零向量返回0。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
