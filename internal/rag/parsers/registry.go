// Package parsers extracts plain text from uploaded documents.
// Supported formats: PDF, DOCX, plain text and markdown.
package parsers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned before any parsing work when the file
// extension has no registered parser.
var ErrUnsupportedFormat = errors.New("不支持的文件格式")

// Parser defines the interface for document parsers
type Parser interface {
	// Parse reads from the reader and extracts text content
	Parse(reader io.Reader) (string, error)

	// SupportedExtensions returns the list of supported file extensions (e.g. ".txt")
	SupportedExtensions() []string

	// CanParse checks if the parser supports the given extension
	CanParse(extension string) bool
}

// ParserRegistry manages document parsers
type ParserRegistry struct {
	parsers []Parser
}

// NewParserRegistry creates a new registry with default parsers
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{
		parsers: make([]Parser, 0),
	}

	r.Register(NewTextParser())
	r.Register(NewPDFParser())
	r.Register(NewDocxParser())

	return r
}

// Register registers a new parser
func (r *ParserRegistry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Supports reports whether any registered parser handles the extension.
func (r *ParserRegistry) Supports(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, p := range r.parsers {
		if p.CanParse(ext) {
			return true
		}
	}
	return false
}

// SupportedExtensions returns all extensions with a registered parser.
func (r *ParserRegistry) SupportedExtensions() []string {
	exts := make([]string, 0)
	for _, p := range r.parsers {
		exts = append(exts, p.SupportedExtensions()...)
	}
	return exts
}

// Parse chooses the appropriate parser by file extension and parses the
// document. Unknown extensions fail with ErrUnsupportedFormat before any
// content is read.
func (r *ParserRegistry) Parse(fileName string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	for _, p := range r.parsers {
		if p.CanParse(ext) {
			return p.Parse(reader)
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
