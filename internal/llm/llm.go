// Package llm defines the generation collaborator: the one external
// capability that may suspend, time out, or be unavailable.
//
// The engine treats all three failure modes identically (deterministic
// fallback, never a user-facing error), so the interface surfaces them
// as sentinel errors rather than rich error types.
package llm

import (
	"context"
	"errors"
	"time"
)

// Failure modes a Generator may report. Everything else an
// implementation returns is wrapped into one of these before callers
// see it.
var (
	// ErrUnavailable means the collaborator cannot be reached at all,
	// typically missing credentials.
	ErrUnavailable = errors.New("llm: service unavailable")
	// ErrTimeout means the bounded call deadline elapsed.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrMalformed means the service answered with something the
	// client could not use, including oversize responses.
	ErrMalformed = errors.New("llm: malformed response")
)

// Message is one chat turn sent to the collaborator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options bound and shape a generation call.
type Options struct {
	// MaxTokens caps the reply length. Zero lets the service decide.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
	// SystemPrompt, when set, is prepended as a system message.
	SystemPrompt string
	// Timeout bounds the call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds generation calls that don't set their own.
const DefaultTimeout = 60 * time.Second

// MaxResponseBytes caps how much of a reply body the client reads.
const MaxResponseBytes = 1 << 20 // 1 MiB

// Reply is a successful generation result.
type Reply struct {
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
}

// Generator produces the next assistant message for a transcript.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (*Reply, error)
}
