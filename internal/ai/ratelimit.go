package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// NewLimiter returns nil when rps is not positive, which disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type limitedGenerator struct {
	next    IGenerator
	limiter *rate.Limiter
}

func WrapRateLimitGenerator(g IGenerator, l *rate.Limiter) IGenerator {
	if l == nil {
		return g
	}
	return &limitedGenerator{next: g, limiter: l}
}

func (g *limitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.Generate(ctx, prompt)
}

type limitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func WrapRateLimitEmbedder(e IEmbedder, l *rate.Limiter) IEmbedder {
	if l == nil {
		return e
	}
	return &limitedEmbedder{next: e, limiter: l}
}

func (e *limitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Embed(ctx, text, taskType)
}

func (e *limitedEmbedder) ModelName() string {
	return e.next.ModelName()
}
