package embedprovider

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// BatchProgress reports embedding progress, mirroring the teacher's
// embed.BatchProgress.
type BatchProgress struct {
	BatchIndex      int
	TotalBatches    int
	ProcessedChunks int
	TotalChunks     int
}

// RetryPolicy configures the jittered exponential backoff spec.md C8
// Stage 4 requires for transient provider errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches common provider-client defaults: a few
// attempts, sub-second base delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 4, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2+1))
	return d/2 + jitter
}

// EmbedDocumentsBatched splits texts into batches of at most
// batchSize, embeds each via embedOne, retrying transient errors with
// jittered exponential backoff and aborting the whole call on the
// first permanent error (mirroring the teacher's EmbedWithProgress
// batching loop, generalized over any embed func signature via
// embedOne and augmented with the retry policy spec.md C8 adds).
func EmbedDocumentsBatched[T any](
	ctx context.Context,
	texts []string,
	batchSize int,
	policy RetryPolicy,
	progressCh chan<- BatchProgress,
	embedOne func(ctx context.Context, batch []string) ([]T, error),
) ([]T, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	numBatches := (len(texts) + batchSize - 1) / batchSize
	results := make([]T, len(texts))
	processed := 0

	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := batchIdx * batchSize
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		out, err := embedWithRetry(ctx, batch, policy, embedOne)
		if err != nil {
			return nil, fmt.Errorf("embedprovider: batch %d/%d failed: %w", batchIdx+1, numBatches, err)
		}
		copy(results[start:end], out)

		processed += len(batch)
		if progressCh != nil {
			progressCh <- BatchProgress{
				BatchIndex:      batchIdx + 1,
				TotalBatches:    numBatches,
				ProcessedChunks: processed,
				TotalChunks:     len(texts),
			}
		}
	}

	return results, nil
}

func embedWithRetry[T any](ctx context.Context, batch []string, policy RetryPolicy, embedOne func(ctx context.Context, batch []string) ([]T, error)) ([]T, error) {
	var lastErr error
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := embedOne(ctx, batch)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var perm *PermanentError
		if isPermanent(err, &perm) {
			return nil, err
		}

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}
	return nil, lastErr
}

func isPermanent(err error, target **PermanentError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if p, ok := err.(*PermanentError); ok {
			*target = p
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
