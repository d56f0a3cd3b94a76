package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const pdfTool = "pdftotext"

// ErrPDFToolNotFound makes PDF an unsupported type on hosts without poppler.
var ErrPDFToolNotFound = fmt.Errorf("pdftotext not found in PATH, install poppler-utils (apt) or poppler (brew): %w", appErr.ErrUnsupportedFile)

// CommandRunner runs an external tool with data on stdin.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

var (
	pdfRunner   CommandRunner = execRunner{}
	pdfLookPath               = exec.LookPath
	pdfTimeout                = time.Minute
)

func pdfText(data []byte) (string, error) {
	if _, err := pdfLookPath(pdfTool); err != nil {
		return "", ErrPDFToolNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), pdfTimeout)
	defer cancel()
	out, err := pdfRunner.Run(ctx, data, pdfTool, "-enc", "UTF-8", "-layout", "-", "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	// pdftotext separates pages with form feeds
	text := strings.ReplaceAll(string(out), "\f", "\n\n")
	return plainText([]byte(text))
}
