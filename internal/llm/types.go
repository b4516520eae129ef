package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Provider sends one conversation turn to a remote model and returns its
// structured reply. Implementations hold no per-call state and are safe for
// concurrent use.
type Provider interface {
	Send(ctx context.Context, req Request) (*Reply, error)
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason tells why the model stopped producing output.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// ContentBlock is one element of a turn's content. The set of
// implementations is closed: TextBlock, ToolUseBlock, ToolResultBlock and
// UnknownBlock.
type ContentBlock interface {
	contentBlock()
}

// TextBlock is plain model or user text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is a model request to invoke a tool.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock answers the ToolUseBlock with the same id.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// UnknownBlock carries a block kind this package does not model. Raw holds
// the provider's encoding so it can be echoed back unchanged.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

func (TextBlock) contentBlock()       {}
func (ToolUseBlock) contentBlock()    {}
func (ToolResultBlock) contentBlock() {}
func (UnknownBlock) contentBlock()    {}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// UserText builds the opening user turn.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock{Text: text}}}
}

// AssistantBlocks builds an assistant turn from a reply's content.
func AssistantBlocks(blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// UserToolResults builds the user turn answering an assistant's tool uses.
func UserToolResults(results []ToolResultBlock) Message {
	content := make([]ContentBlock, len(results))
	for i, r := range results {
		content[i] = r
	}
	return Message{Role: RoleUser, Content: content}
}

// ToolSpec describes a tool to the model. InputSchema is forwarded verbatim.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is a single turn sent to a Provider.
type Request struct {
	Model     string
	System    string
	Tools     []ToolSpec
	Messages  []Message
	MaxTokens int
}

// Validate checks that the required fields are present.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages are required")
	}
	if r.MaxTokens < 1 {
		return errors.New("max tokens must be greater than 0")
	}
	return nil
}

// Reply is a model's answer to one turn.
type Reply struct {
	StopReason StopReason
	Content    []ContentBlock
}

// ToolUses returns the reply's tool-use blocks in order.
func (r *Reply) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, b := range r.Content {
		if tu, ok := b.(ToolUseBlock); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// Text joins the reply's text blocks with newlines. Other block kinds
// contribute nothing.
func (r *Reply) Text() string {
	var parts []string
	for _, b := range r.Content {
		if tb, ok := b.(TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}
