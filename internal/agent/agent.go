package agent

import (
	"errors"

	"github.com/MimeLyc/isp-diag/internal/llm"
)

// DefaultMaxTurns bounds the assistant turns of a single run.
const DefaultMaxTurns = 10

// ErrLoopBudgetExceeded is returned when the model keeps asking for tools
// past the turn limit.
var ErrLoopBudgetExceeded = errors.New("LoopBudgetExceeded")

// Runtime drives agents through the tool-use loop. One Runtime is shared by
// all agents; every Run owns its own conversation.
type Runtime struct {
	provider  llm.Provider
	maxTurns  int
	maxTokens int
	model     string
}

type Option func(*Runtime)

// WithMaxTurns sets the turn limit. Non-positive values keep the default.
func WithMaxTurns(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithMaxTokens sets max_tokens for every turn.
func WithMaxTokens(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(r *Runtime) { r.model = model }
}

// NewRuntime creates a runtime that talks to provider.
func NewRuntime(provider llm.Provider, opts ...Option) *Runtime {
	r := &Runtime{
		provider:  provider,
		maxTurns:  DefaultMaxTurns,
		maxTokens: llm.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxTurns returns the configured turn limit.
func (r *Runtime) MaxTurns() int {
	return r.maxTurns
}
