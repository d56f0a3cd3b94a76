package ai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type funcGenerator func(ctx context.Context, prompt string) (string, error)

func (f funcGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestManagerBuildPromptOrder(t *testing.T) {
	m := NewManager(nil, ManagerConfig{})
	prompt := m.BuildPrompt("What color is the sky?", []string{"first chunk", "second chunk"})
	require.Contains(t, prompt, "Question: What color is the sky?")
	require.Less(t, strings.Index(prompt, "first chunk"), strings.Index(prompt, "second chunk"))
	require.Contains(t, prompt, "don't know")
}

func TestManagerBuildPromptBudget(t *testing.T) {
	m := NewManager(nil, ManagerConfig{MaxContextChars: 10})
	prompt := m.BuildPrompt("q", []string{"0123456789abc", "dropped"})
	require.Contains(t, prompt, "0123456789abc")
	require.NotContains(t, prompt, "dropped")
}

func TestManagerAnswerTrims(t *testing.T) {
	m := NewManager(funcGenerator(func(ctx context.Context, prompt string) (string, error) {
		return "  blue \n", nil
	}), ManagerConfig{})
	out, err := m.Answer(context.Background(), "q", []string{"c"})
	require.NoError(t, err)
	require.Equal(t, "blue", out)
}

func TestManagerAnswerRetriesTransient(t *testing.T) {
	var calls int32
	m := NewManager(funcGenerator(func(ctx context.Context, prompt string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", &StatusError{Provider: "test", StatusCode: 429}
		}
		return "ok", nil
	}), ManagerConfig{Retry: RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}})
	out, err := m.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestManagerAnswerPermanentError(t *testing.T) {
	var calls int32
	boom := errors.New("invalid model")
	m := NewManager(funcGenerator(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", boom
	}), ManagerConfig{Retry: RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}})
	_, err := m.Answer(context.Background(), "q", nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager(funcGenerator(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), ManagerConfig{Timeout: 1})
	start := time.Now()
	_, err := m.Answer(context.Background(), "q", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 3*time.Second)
}
