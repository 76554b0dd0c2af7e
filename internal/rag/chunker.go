package rag

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"docqa/internal/logger"
)

// sentenceDelimiter 句子分隔符。换行符先归一化为空格，再按 ". " 切分。
const sentenceDelimiter = ". "

// Chunker 文档分块器。按句子边界贪心累积，相邻分块之间保留重叠前缀。
type Chunker struct {
	ChunkSize    int // 分块大小(字符数)
	ChunkOverlap int // 重叠大小(字符数)

	enc *tiktoken.Tiktoken
}

// NewChunker 创建新的分块器
// chunkSize: 每个分块的字符数上限
// chunkOverlap: 相邻分块之间的重叠字符数
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10 // 重叠不允许达到分块大小
	}

	// Token 统计优先使用 tiktoken，加载失败时退回启发式估算
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn(fmt.Sprintf("tiktoken 编码器加载失败，使用估算模式: %v", err))
		enc = nil
	}

	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		enc:          enc,
	}
}

// ChunkResult 分块结果
type ChunkResult struct {
	Content     string // 分块内容
	ChunkIndex  int    // 分块索引(从0开始)
	Length      int    // 内容长度(字符数)
	TokenCount  int    // Token数量
	ContentHash string // 内容哈希(SHA256)
}

// ChunkDocument 对文档进行分块
// content: 文档内容
// 返回: 分块结果列表，按 ChunkIndex 升序
func (c *Chunker) ChunkDocument(content string) ([]*ChunkResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("文档内容不能为空")
	}

	// 1. 规范化文本(换行符与多余空白归一为单个空格)
	content = normalizeText(content)

	// 2. 短文本直接作为单个分块返回
	if utf8.RuneCountInString(content) <= c.ChunkSize {
		return []*ChunkResult{c.newChunk(content, 0)}, nil
	}

	// 3. 按句子切分；找不到任何句子分隔符时退回定长切分
	sentences := splitIntoSentences(content)
	if len(sentences) <= 1 {
		return c.chunkByFixedSize(content), nil
	}

	// 4. 贪心累积句子，超出上限时关闭当前分块并带重叠开启下一个
	chunks := make([]*ChunkResult, 0)
	currentChunk := ""
	chunkIndex := 0

	for _, sentence := range sentences {
		if utf8.RuneCountInString(currentChunk)+utf8.RuneCountInString(sentence) > c.ChunkSize && currentChunk != "" {
			chunks = append(chunks, c.newChunk(currentChunk, chunkIndex))
			chunkIndex++

			// 新分块以上一分块的重叠尾部开头
			if overlap := c.overlapTail(currentChunk); overlap != "" {
				currentChunk = overlap + sentenceDelimiter + sentence
			} else {
				currentChunk = sentence
			}
		} else {
			if currentChunk != "" {
				currentChunk += sentenceDelimiter
			}
			currentChunk += sentence
		}
	}

	// 5. 保存最后一个分块
	if strings.TrimSpace(currentChunk) != "" {
		chunks = append(chunks, c.newChunk(currentChunk, chunkIndex))
	}

	return chunks, nil
}

// newChunk 创建分块结果
func (c *Chunker) newChunk(content string, index int) *ChunkResult {
	content = strings.TrimSpace(content)
	return &ChunkResult{
		Content:     content,
		ChunkIndex:  index,
		Length:      utf8.RuneCountInString(content),
		TokenCount:  c.countTokens(content),
		ContentHash: hashContent(content),
	}
}

// overlapTail 获取分块末尾的重叠文本。
// 取末尾 ChunkOverlap 个字符，若窗口内存在句子边界则向前裁剪到边界之后，
// 避免重叠从句子中间开始。
func (c *Chunker) overlapTail(text string) string {
	if c.ChunkOverlap <= 0 {
		return ""
	}

	window := text
	if runes := []rune(text); len(runes) > c.ChunkOverlap {
		window = string(runes[len(runes)-c.ChunkOverlap:])
	}

	if idx := strings.Index(window, sentenceDelimiter); idx >= 0 {
		window = window[idx+len(sentenceDelimiter):]
	}

	return strings.TrimSpace(window)
}

// chunkByFixedSize 无句子边界时的定长切分
func (c *Chunker) chunkByFixedSize(content string) []*ChunkResult {
	raw := ChunkByFixedSize(content, c.ChunkSize, c.ChunkOverlap)
	for _, chunk := range raw {
		chunk.TokenCount = c.countTokens(chunk.Content)
	}
	return raw
}

// countTokens 统计Token数量
func (c *Chunker) countTokens(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimateTokenCount(text)
}

// normalizeText 规范化文本
// 换行符及连续空白替换为单个空格
func normalizeText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// splitIntoSentences 按 ". " 将文本分割成句子，跳过空白片段。
// 末尾句子保留其结束标点。
func splitIntoSentences(text string) []string {
	parts := strings.Split(text, sentenceDelimiter)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// estimateTokenCount 估算Token数量(tiktoken不可用时的退路)
// 简单规则: 英文按单词数, 中文按字符数/1.5
func estimateTokenCount(text string) int {
	wordCount := len(strings.Fields(text))

	chineseCount := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			chineseCount++
		}
	}

	return wordCount + int(float64(chineseCount)/1.5)
}

// hashContent 计算内容哈希
func hashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// ChunkByFixedSize 按固定大小分块(不考虑句子边界)
// 步长恒为正以保证向前推进，overlap >= size 时依然能够终止。
func ChunkByFixedSize(content string, size, overlap int) []*ChunkResult {
	if content == "" || size <= 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	chunks := make([]*ChunkResult, 0)
	runes := []rune(content)
	totalLen := len(runes)
	index := 0

	for start := 0; start < totalLen; start += step {
		end := start + size
		if end > totalLen {
			end = totalLen
		}

		chunkContent := strings.TrimSpace(string(runes[start:end]))
		if chunkContent != "" {
			chunks = append(chunks, &ChunkResult{
				Content:     chunkContent,
				ChunkIndex:  index,
				Length:      utf8.RuneCountInString(chunkContent),
				TokenCount:  estimateTokenCount(chunkContent),
				ContentHash: hashContent(chunkContent),
			})
			index++
		}

		if end >= totalLen {
			break
		}
	}

	return chunks
}

// GetChunkSummary 获取分块摘要信息
func GetChunkSummary(chunks []*ChunkResult) string {
	if len(chunks) == 0 {
		return "无分块"
	}

	totalChars := 0
	totalTokens := 0
	for _, chunk := range chunks {
		totalChars += chunk.Length
		totalTokens += chunk.TokenCount
	}

	return fmt.Sprintf("分块数: %d, 总字符数: %d, 总Token数: %d, 平均字符数: %d, 平均Token数: %d",
		len(chunks), totalChars, totalTokens, totalChars/len(chunks), totalTokens/len(chunks))
}
