package tools

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnknownTool is returned when a dispatcher has no tool of the
	// requested name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidInput is returned when tool arguments fail to decode or
	// validate, including unknown fields.
	ErrInvalidInput = errors.New("invalid tool input")
)

// Tool defines the interface for tools that can be called by an agent
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON Schema for the tool's parameters
	Parameters() json.RawMessage

	// Execute runs the tool. The returned value is serialized to JSON and
	// handed back to the model.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}
