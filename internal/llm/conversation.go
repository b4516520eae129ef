package llm

import (
	"fmt"
)

// Conversation is the turn history of a single agent run. It is not safe for
// concurrent use and is never shared between runs.
//
// Every tool use in an assistant turn must be answered, in the same order,
// by the user turn that follows it; AppendToolResults enforces that.
type Conversation struct {
	messages []Message
	pending  []ToolUseBlock
}

// NewConversation seeds a conversation with one user text turn.
func NewConversation(userText string) *Conversation {
	return &Conversation{
		messages: []Message{UserText(userText)},
	}
}

// Messages returns the turns accumulated so far. The slice must not be
// modified by the caller.
func (c *Conversation) Messages() []Message {
	return c.messages
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// AppendAssistant records a model reply. Its tool uses become pending until
// the matching results are appended.
func (c *Conversation) AppendAssistant(reply *Reply) error {
	if len(c.pending) > 0 {
		return fmt.Errorf("assistant turn appended with %d unanswered tool uses", len(c.pending))
	}
	c.messages = append(c.messages, AssistantBlocks(reply.Content))
	c.pending = reply.ToolUses()
	return nil
}

// AppendToolResults records the user turn answering the pending tool uses.
func (c *Conversation) AppendToolResults(results []ToolResultBlock) error {
	if len(results) != len(c.pending) {
		return fmt.Errorf("got %d tool results for %d tool uses", len(results), len(c.pending))
	}
	for i, r := range results {
		if r.ToolUseID != c.pending[i].ID {
			return fmt.Errorf("tool result %d answers %q, want %q", i, r.ToolUseID, c.pending[i].ID)
		}
	}
	c.messages = append(c.messages, UserToolResults(results))
	c.pending = nil
	return nil
}
