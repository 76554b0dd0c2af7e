package parsers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// word/document.xml 的正文结构,只关心段落 p、文本运行 r 和文本 t
type wordText struct {
	Content string `xml:",chardata"`
}

type wordRun struct {
	Texts []wordText `xml:"t"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

// DocxParser Word 文档解析器(.docx)
// .docx 实为 ZIP 包,正文在 word/document.xml 中
type DocxParser struct{}

// NewDocxParser 创建 DOCX 解析器
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse 解析 DOCX 文档,按段落提取纯文本
func (p *DocxParser) Parse(reader io.Reader) (string, error) {
	// zip.NewReader 需要 io.ReaderAt,先整体读入内存
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文档失败: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 DOCX 失败: %w", err)
	}

	documentXML, err := readDocumentXML(zr)
	if err != nil {
		return "", err
	}

	text := p.extractText(documentXML)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("DOCX 内容为空或无法解析文本")
	}
	return text, nil
}

// readDocumentXML 从 ZIP 包中取出正文 XML
func readDocumentXML(zr *zip.Reader) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("打开 document.xml 失败: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("读取 document.xml 失败: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("无效的 DOCX 文件：找不到 document.xml")
}

// extractText 结构化解析正文,失败时退回正则提取
func (p *DocxParser) extractText(xmlData []byte) string {
	var doc wordDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return p.extractByRegex(xmlData)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Texts {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n")
}

var (
	wordTextPattern = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	wordParaPattern = regexp.MustCompile(`<w:p[^>]*>(.*?)</w:p>`)
)

// extractByRegex 正则提取文本,兜底处理命名空间或结构不规范的文档
func (p *DocxParser) extractByRegex(xmlData []byte) string {
	content := string(xmlData)

	// 能按段落分组时保持段落换行
	if paras := wordParaPattern.FindAllStringSubmatch(content, -1); len(paras) > 0 {
		var lines []string
		for _, para := range paras {
			if len(para) < 2 {
				continue
			}
			var sb strings.Builder
			for _, tm := range wordTextPattern.FindAllStringSubmatch(para[1], -1) {
				if len(tm) > 1 {
					sb.WriteString(tm[1])
				}
			}
			if text := strings.TrimSpace(sb.String()); text != "" {
				lines = append(lines, text)
			}
		}
		return strings.Join(lines, "\n")
	}

	var texts []string
	for _, m := range wordTextPattern.FindAllStringSubmatch(content, -1) {
		if len(m) > 1 && m[1] != "" {
			texts = append(texts, m[1])
		}
	}
	return strings.Join(texts, " ")
}

// SupportedExtensions 支持的扩展名
func (p *DocxParser) SupportedExtensions() []string {
	return []string{".docx"}
}

// CanParse 检查扩展名是否受支持,大小写不敏感
func (p *DocxParser) CanParse(ext string) bool {
	return strings.EqualFold(ext, ".docx")
}
