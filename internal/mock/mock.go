// Package mock provides test doubles for the diagnostics interfaces using
// function fields.
package mock

import (
	"context"
	"encoding/json"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/diagnose"
	"github.com/MimeLyc/isp-diag/internal/llm"
)

// Interface compliance checks.
var (
	_ llm.Provider         = (*Provider)(nil)
	_ agent.ToolDispatcher = (*ToolDispatcher)(nil)
	_ diagnose.Sink        = (*Sink)(nil)
)

// Provider is a test double for llm.Provider.
// Set SendFn before calling Send.
type Provider struct {
	SendFn func(ctx context.Context, req llm.Request) (*llm.Reply, error)
}

// Send delegates to SendFn.
func (p *Provider) Send(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	return p.SendFn(ctx, req)
}

// ToolDispatcher is a test double for agent.ToolDispatcher.
// Set DispatchFn before calling Dispatch.
type ToolDispatcher struct {
	DispatchFn func(ctx context.Context, name string, input json.RawMessage) (any, error)
}

// Dispatch delegates to DispatchFn.
func (d *ToolDispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) (any, error) {
	return d.DispatchFn(ctx, name, input)
}

// Sink is a test double for diagnose.Sink.
// Set SendFn before calling Send.
type Sink struct {
	SendFn func(event string, data any) error
}

// Send delegates to SendFn.
func (s *Sink) Send(event string, data any) error {
	return s.SendFn(event, data)
}
