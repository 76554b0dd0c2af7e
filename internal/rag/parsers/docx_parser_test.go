package parsers

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocx 在内存中构造最小化的 .docx 文件
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

const docxXMLHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

func TestDocxParser_Paragraphs(t *testing.T) {
	parser := NewDocxParser()

	xmlBody := docxXMLHeader +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` +
		`<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := parser.Parse(bytes.NewReader(buildDocx(t, xmlBody)))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", text)
}

func TestDocxParser_MultipleRunsJoined(t *testing.T) {
	parser := NewDocxParser()

	xmlBody := docxXMLHeader +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` +
		`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := parser.Parse(bytes.NewReader(buildDocx(t, xmlBody)))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestDocxParser_NotAZip(t *testing.T) {
	parser := NewDocxParser()

	_, err := parser.Parse(strings.NewReader("plain text pretending to be docx"))
	assert.Error(t, err)
}

func TestDocxParser_MissingDocumentXML(t *testing.T) {
	parser := NewDocxParser()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = parser.Parse(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.xml")
}

func TestDocxParser_EmptyBody(t *testing.T) {
	parser := NewDocxParser()

	xmlBody := docxXMLHeader +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body></w:body></w:document>`

	_, err := parser.Parse(bytes.NewReader(buildDocx(t, xmlBody)))
	assert.Error(t, err)
}

func TestDocxParser_CanParse(t *testing.T) {
	parser := NewDocxParser()

	assert.True(t, parser.CanParse(".docx"))
	assert.True(t, parser.CanParse(".DOCX"))
	assert.False(t, parser.CanParse(".doc"))
}
