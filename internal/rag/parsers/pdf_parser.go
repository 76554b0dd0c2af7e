package parsers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"
	"go.uber.org/zap"

	"docqa/internal/logger"
)

// PDFParser PDF 文件解析器
type PDFParser struct{}

// NewPDFParser 创建 PDF 解析器
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse 解析 PDF 文件,逐页提取纯文本
// 单页失败只记日志跳过,整个文件没有任何文本时才报错
func (p *PDFParser) Parse(reader io.Reader) (string, error) {
	// pdf.NewReader 需要 io.ReaderAt,先整体读入内存
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取 PDF 内容失败: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}

	content := strings.TrimSpace(p.extractText(doc))
	if content == "" {
		return "", errors.New("PDF 内容为空或无法解析文本")
	}
	return content, nil
}

// extractText 按页序拼接文本,页面之间以换行分隔
func (p *PDFParser) extractText(doc *pdf.Reader) string {
	var buf strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("PDF 页面解析失败，跳过该页",
				zap.Int("page", i), zap.Error(err))
			continue
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// SupportedExtensions 支持的文件扩展名
func (p *PDFParser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// CanParse 检查扩展名是否受支持,大小写不敏感
func (p *PDFParser) CanParse(extension string) bool {
	return strings.EqualFold(extension, ".pdf")
}
