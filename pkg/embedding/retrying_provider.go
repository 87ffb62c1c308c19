package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryingProvider retries failed embedding calls with exponential backoff.
// Embedding is idempotent so a retry never changes the result.
type RetryingProvider struct {
	next        EmbeddingProvider
	maxTries    uint
	initialWait time.Duration
}

func NewRetryingProvider(next EmbeddingProvider, maxTries uint, initialWait time.Duration) *RetryingProvider {
	if maxTries == 0 {
		maxTries = 3
	}
	if initialWait <= 0 {
		initialWait = 200 * time.Millisecond
	}
	return &RetryingProvider{next: next, maxTries: maxTries, initialWait: initialWait}
}

func (p *RetryingProvider) Name() string {
	return p.next.Name()
}

func (p *RetryingProvider) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialWait

	return backoff.Retry(ctx, func() ([]float32, error) {
		vec, err := p.next.Embed(ctx, text, task)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyEmbedding) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxTries))
}
