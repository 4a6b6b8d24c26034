package runtime

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ormasoftchile/grimoire/pkg/chat"
)

// Policy bounds whole-run retry: attempts, base delay, exponential
// multiplier, cap, and jitter fraction.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultPolicy retries twice after the first failure with exponential
// backoff starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Classifier reports whether an error is transient and therefore worth
// retrying.
type Classifier func(error) bool

// DefaultClassifier treats collaborator rate limits, upstream outages,
// and network timeouts as transient. Recipe, tool, and definition errors
// are permanent by construction and never match.
var DefaultClassifier Classifier = chat.IsTransient

// RunWithRetry wraps Executor.Run with whole-operation retry. Only the
// entire run is ever retried, never an individual variable resolution:
// re-running resolves every variable from scratch, so tools invoked for
// their side effects are not safe to retry blindly — the classifier is the
// only guard.
func RunWithRetry(ctx context.Context, e *Executor, name string, opts RunOptions, p Policy, classify Classifier) (*RunResult, error) {
	if classify == nil {
		classify = DefaultClassifier
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res, err := e.Run(ctx, name, opts)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !classify(err) || attempt == p.MaxAttempts {
			return nil, err
		}

		delay := p.delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("transient failure, retrying run")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// delay computes the backoff before the next attempt: base * multiplier^(n-1),
// capped, with proportional jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
