package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ []byte, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

func withPDFRunner(t *testing.T, r CommandRunner, found bool) {
	t.Helper()
	oldRunner, oldLook := pdfRunner, pdfLookPath
	pdfRunner = r
	pdfLookPath = func(string) (string, error) {
		if !found {
			return "", errors.New("missing")
		}
		return "/usr/bin/pdftotext", nil
	}
	t.Cleanup(func() {
		pdfRunner, pdfLookPath = oldRunner, oldLook
	})
}

func TestPDFText(t *testing.T) {
	r := &mockRunner{output: []byte("Page one.\fPage two.")}
	withPDFRunner(t, r, true)
	out, err := Text("report.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "Page one.\n\nPage two.", out)
	require.Equal(t, []string{"-enc", "UTF-8", "-layout", "-", "-"}, r.args)
}

func TestPDFToolMissing(t *testing.T) {
	withPDFRunner(t, &mockRunner{}, false)
	_, err := Text("report.pdf", []byte("%PDF-1.4"))
	require.ErrorIs(t, err, ErrPDFToolNotFound)
	require.ErrorIs(t, err, appErr.ErrUnsupportedFile)
}

func TestPDFRunnerError(t *testing.T) {
	withPDFRunner(t, &mockRunner{err: errors.New("crashed")}, true)
	_, err := Text("report.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "pdftotext failed")
}
