package ai

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const maxRetryDelay = 5 * time.Second

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// IsTransient reports whether a provider error is worth retrying: timeouts,
// rate limiting and server side failures.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429 || se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "resource_exhausted", "rate limit", "unavailable", "overloaded", "503", "502", "500 internal"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs fn until it succeeds, fails permanently or the retry budget
// runs out. Waits stop early when ctx is done.
func WithRetry(ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= policy.MaxRetries || !IsTransient(err) || ctx.Err() != nil {
			return err
		}
		wait := policy.delay(attempt)
		logutil.GetLogger(ctx).Warn("transient ai failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

type retryEmbedder struct {
	next   IEmbedder
	policy RetryPolicy
}

func WrapRetryEmbedder(e IEmbedder, policy RetryPolicy) IEmbedder {
	if policy.MaxRetries <= 0 {
		return e
	}
	return &retryEmbedder{next: e, policy: policy}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var out []float32
	err := WithRetry(ctx, r.policy, "embed", func(ctx context.Context) error {
		v, err := r.next.Embed(ctx, text, taskType)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
