package agent

import (
	"context"
	"encoding/json"

	"github.com/MimeLyc/isp-diag/internal/llm"
)

// ToolDispatcher executes a named tool. It fails with tools.ErrUnknownTool
// for names it does not know and otherwise propagates the tool's own error.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) (any, error)
}

// Descriptor is an immutable agent definition built once at startup.
type Descriptor struct {
	// Name is the stable identifier used on the wire.
	Name string

	// DisplayName is the human label.
	DisplayName string

	// SystemPrompt instructs the model, including the JSON reply shape.
	SystemPrompt string

	// Tools is forwarded verbatim to the model, in order.
	Tools []llm.ToolSpec

	// Dispatcher runs the tools. It may be nil when Tools is empty.
	Dispatcher ToolDispatcher
}

// EventType distinguishes progress events.
type EventType string

const (
	EventStart    EventType = "start"
	EventTool     EventType = "tool"
	EventComplete EventType = "complete"
)

// ProgressEvent is an in-flight notification from a run.
type ProgressEvent struct {
	Type        EventType `json:"type"`
	Agent       string    `json:"agent"`
	DisplayName string    `json:"displayName,omitempty"`
	Tool        string    `json:"tool,omitempty"`
}

// ProgressFunc receives progress events. It is best-effort and may be nil.
type ProgressFunc func(ProgressEvent)
