package parsers

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v3"
)

// TextParser 文本文件解析器
// 支持: .txt, .md, .markdown
// 自动识别编码(UTF-8 / 带BOM的UTF-16 / Latin-1兜底)，
// 并剥离 Markdown 文档头部的 YAML front matter。
type TextParser struct{}

// NewTextParser 创建文本解析器
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse 解析文本文件
func (p *TextParser) Parse(reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}

	text, err := decodeText(content)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(stripFrontMatter(text))
	if text == "" {
		return "", fmt.Errorf("文件内容为空")
	}

	return text, nil
}

// decodeText 按编码解码字节流
// BOM 优先；无 BOM 时先按 UTF-8 校验，失败退回 Latin-1。
func decodeText(data []byte) (string, error) {
	// UTF-16 BOM (FF FE 小端 / FE FF 大端)
	if len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("UTF-16 解码失败: %w", err)
		}
		return string(decoded), nil
	}

	// UTF-8 BOM
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	// Latin-1 解码不会失败，作为最后的兜底
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("Latin-1 解码失败: %w", err)
	}
	return string(decoded), nil
}

// stripFrontMatter 剥离文档头部的 YAML front matter。
// front matter 是配置而非正文，不应参与分块与检索；
// 其中的 title 字段保留为正文首行，保证标题可被检索到。
// 非法的 front matter 按普通正文处理。
func stripFrontMatter(text string) string {
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		rest, ok = strings.CutPrefix(text, "---\r\n")
	}
	if !ok {
		return text
	}

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return text
	}
	block := rest[:end]

	var meta struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return text
	}

	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	if meta.Title != "" {
		return meta.Title + "\n\n" + body
	}
	return body
}

// SupportedExtensions 支持的文件扩展名
func (p *TextParser) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// CanParse 检查是否可以解析指定扩展名的文件
func (p *TextParser) CanParse(extension string) bool {
	extension = strings.ToLower(extension)
	for _, ext := range p.SupportedExtensions() {
		if ext == extension {
			return true
		}
	}
	return false
}
