package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/chat"
	"github.com/ormasoftchile/grimoire/pkg/schema"
)

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// flakyChat fails the first n calls with err, then succeeds.
type flakyChat struct {
	failures int
	err      error
	calls    int
}

func (c *flakyChat) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", c.err
	}
	return "ok", nil
}

func retryFixture(ch chat.Collaborator) *Executor {
	store := mapStore{
		"plain": {Name: "plain", Version: 1, UserTemplate: "hi"},
	}
	return &Executor{Store: store, Providers: nil, Chat: ch}
}

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
}

func TestRunWithRetryTransientRecovers(t *testing.T) {
	ch := &flakyChat{failures: 2, err: timeoutError{}}
	e := retryFixture(ch)

	res, err := RunWithRetry(context.Background(), e, "plain", RunOptions{}, fastPolicy(3), DefaultClassifier)
	if err != nil {
		t.Fatalf("RunWithRetry: %v", err)
	}
	if res.Response != "ok" {
		t.Errorf("response = %q", res.Response)
	}
	if ch.calls != 3 {
		t.Errorf("chat called %d times, want 3", ch.calls)
	}
}

func TestRunWithRetryExhaustsAttempts(t *testing.T) {
	ch := &flakyChat{failures: 10, err: timeoutError{}}
	e := retryFixture(ch)

	_, err := RunWithRetry(context.Background(), e, "plain", RunOptions{}, fastPolicy(3), DefaultClassifier)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if ch.calls != 3 {
		t.Errorf("chat called %d times, want 3", ch.calls)
	}
}

func TestRunWithRetryPermanentNotRetried(t *testing.T) {
	ch := &flakyChat{failures: 10, err: errors.New("invalid api key")}
	e := retryFixture(ch)

	_, err := RunWithRetry(context.Background(), e, "plain", RunOptions{}, fastPolicy(5), DefaultClassifier)
	if err == nil {
		t.Fatal("expected error")
	}
	if ch.calls != 1 {
		t.Errorf("chat called %d times, want 1 (permanent failure)", ch.calls)
	}
}

func TestRunWithRetryToolNotFoundNotRetried(t *testing.T) {
	store := mapStore{
		"bad": {
			Name: "bad", Version: 1,
			Vars:         schema.VarList{{Name: "x", Call: schema.ToolCall{Tool: "missing"}}},
			UserTemplate: "{{x}}",
		},
	}
	ch := &flakyChat{}
	e := &Executor{Store: store, Chat: ch}

	_, err := RunWithRetry(context.Background(), e, "bad", RunOptions{}, fastPolicy(5), DefaultClassifier)
	var nf *catalog.ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want ToolNotFoundError", err)
	}
	if ch.calls != 0 {
		t.Errorf("chat called %d times, want 0", ch.calls)
	}
}

func TestRunWithRetryContextCancelled(t *testing.T) {
	ch := &flakyChat{failures: 10, err: timeoutError{}}
	e := retryFixture(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2.0}
	_, err := RunWithRetry(ctx, e, "plain", RunOptions{}, p, DefaultClassifier)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestPolicyDelayBounds(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2.0}
	if d := p.delay(1); d != time.Second {
		t.Errorf("delay(1) = %v, want 1s", d)
	}
	if d := p.delay(2); d != 2*time.Second {
		t.Errorf("delay(2) = %v, want 2s", d)
	}
	if d := p.delay(10); d != 5*time.Second {
		t.Errorf("delay(10) = %v, want capped at 5s", d)
	}
}

func TestPolicyDelayJitterStaysWithinBand(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		d := p.delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s]", d)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !chat.IsTransient(timeoutError{}) {
		t.Error("net timeout should be transient")
	}
	if !chat.IsTransient(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be transient")
	}
	if chat.IsTransient(errors.New("boom")) {
		t.Error("plain error should be permanent")
	}
	if chat.IsTransient(nil) {
		t.Error("nil should not be transient")
	}
}
