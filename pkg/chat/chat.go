// Package chat defines the contract with the LLM backend that receives
// the assembled prompts, plus the Claude implementation of it.
package chat

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
)

// Collaborator receives the assembled system and user prompts and returns
// the model's response. The call may block on the network; callers that
// need a deadline wrap ctx.
type Collaborator interface {
	Send(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Streamer is the optional token-by-token variant. Implementations call
// onToken for each text delta and return the full accumulated response.
type Streamer interface {
	SendStream(ctx context.Context, systemPrompt, userPrompt string, onToken func(string)) (string, error)
}

// IsTransient reports whether a collaborator error is worth retrying:
// rate limits, request timeouts, overloaded upstreams, and network
// timeouts. Everything else (auth failures, invalid requests) is
// permanent.
func IsTransient(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 408, 429, 529:
			return true
		}
		return apierr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
