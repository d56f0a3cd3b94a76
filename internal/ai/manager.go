package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// The refusal sentence in the prompt must match a phrase the answer policy
// recognises, otherwise "no answer" replies reach the user verbatim.
const answerPromptTemplate = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

const contextSeparator = "\n\n"

type ManagerConfig struct {
	Timeout         int
	MaxContextChars int
	Retry           RetryPolicy
}

// Manager turns a question and its retrieved context into a model answer.
type Manager struct {
	generator IGenerator
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, cfg ManagerConfig) *Manager {
	return &Manager{generator: generator, cfg: cfg}
}

// BuildPrompt joins chunks in rank order. When MaxContextChars is set, trailing
// chunks that would overflow it are left out.
func (m *Manager) BuildPrompt(query string, contexts []string) string {
	kept := make([]string, 0, len(contexts))
	used := 0
	for _, c := range contexts {
		n := len([]rune(c))
		if m.cfg.MaxContextChars > 0 && len(kept) > 0 && used+n > m.cfg.MaxContextChars {
			break
		}
		kept = append(kept, c)
		used += n
	}
	return fmt.Sprintf(answerPromptTemplate, strings.Join(kept, contextSeparator), query)
}

// Answer returns the raw model reply, trimmed. An empty reply is not an error
// here; deciding what to show is left to the caller.
func (m *Manager) Answer(ctx context.Context, query string, contexts []string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	prompt := m.BuildPrompt(query, contexts)
	logutil.GetLogger(ctx).Debug("generating answer",
		zap.Int("contexts", len(contexts)),
		zap.Int("prompt_chars", len(prompt)),
	)
	var out string
	err := WithRetry(ctx, m.cfg.Retry, "generate", func(ctx context.Context) error {
		text, err := m.generateText(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}
