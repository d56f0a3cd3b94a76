package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// Func returns the plain text of a file.
type Func func(data []byte) (string, error)

var registry = map[string]Func{}

func register(fn Func, exts ...string) {
	for _, ext := range exts {
		registry[strings.ToLower(ext)] = fn
	}
}

func init() {
	register(plainText, ".txt", ".text", ".log", ".csv")
	register(markdownText, ".md", ".markdown")
	register(docxText, ".docx")
	register(pptxText, ".pptx")
	register(pdfText, ".pdf")
}

// Supported lists the accepted file extensions.
func Supported() []string {
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Text extracts the text of an uploaded file, picking the parser from the
// file name's extension.
func Text(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := registry[ext]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, appErr.ErrUnsupportedFile)
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return text, nil
}

func plainText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
