package ai

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Boundaries tried from strongest to weakest when closing a window.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

// Chunker splits text into overlapping windows measured in runes.
// Consecutive windows share exactly overlap runes, so dropping the first
// overlap runes of every window after the first rebuilds the input.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return appErr.Validation("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return appErr.Validation("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return appErr.Validation("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return nil
}

// Split returns the raw windows of text. Blank input yields no windows.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	var out []string
	start := 0
	for {
		end := windowEnd(runes, start, size, overlap)
		out = append(out, string(runes[start:end]))
		if end >= len(runes) {
			return out, nil
		}
		start = end - overlap
	}
}

// windowEnd picks where the window starting at start closes. The result is
// always greater than start+overlap so that the next window makes progress.
func windowEnd(runes []rune, start, size, overlap int) int {
	maxEnd := start + size
	if maxEnd >= len(runes) {
		return len(runes)
	}
	minEnd := start + overlap + 1
	if half := start + size/2; half > minEnd {
		minEnd = half
	}
	for _, sep := range separators {
		if end := lastBoundary(runes, minEnd, maxEnd, sep); end > 0 {
			return end
		}
	}
	return maxEnd
}

// lastBoundary returns the index right after the last sep that ends inside
// [minEnd, maxEnd], or -1.
func lastBoundary(runes []rune, minEnd, maxEnd int, sep []rune) int {
	for end := maxEnd; end >= minEnd; end-- {
		begin := end - len(sep)
		if begin < 0 {
			break
		}
		match := true
		for i, r := range sep {
			if runes[begin+i] != r {
				match = false
				break
			}
		}
		if match {
			return end
		}
	}
	return -1
}

// Chunk splits a document into chunks tagged with their source and position.
// Windows that hold only whitespace are dropped.
func (c *Chunker) Chunk(ctx context.Context, doc model.Document) ([]model.Chunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("source", doc.Source))
	windows, err := Split(doc.Content, c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]model.Chunk, 0, len(windows))
	for _, w := range windows {
		if strings.TrimSpace(w) == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{
			ID:       uuid.NewString(),
			Source:   doc.Source,
			Position: len(chunks),
			Text:     w,
		})
	}
	logger.Debug("document chunked",
		zap.Int("runes", len([]rune(doc.Content))),
		zap.Int("windows", len(windows)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

// Reassemble is the inverse of Split for windows produced with overlap.
func Reassemble(windows []string, overlap int) string {
	var sb strings.Builder
	for i, w := range windows {
		if i == 0 {
			sb.WriteString(w)
			continue
		}
		r := []rune(w)
		sb.WriteString(string(r[overlap:]))
	}
	return sb.String()
}
