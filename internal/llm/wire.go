package llm

import (
	"encoding/json"
	"fmt"
)

// Anthropic messages API wire format.

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Tools     []ToolSpec    `json:"tools,omitempty"`
	Messages  []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    Role  `json:"role"`
	Content []any `json:"content"`
}

type wireText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireToolUse struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type wireToolResult struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

type messagesResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var emptyObject = json.RawMessage(`{}`)

func encodeMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		content := make([]any, 0, len(m.Content))
		for _, b := range m.Content {
			switch bl := b.(type) {
			case TextBlock:
				// The API rejects empty text blocks.
				if bl.Text == "" {
					continue
				}
				content = append(content, wireText{Type: "text", Text: bl.Text})
			case ToolUseBlock:
				input := bl.Input
				if len(input) == 0 {
					input = emptyObject
				}
				content = append(content, wireToolUse{Type: "tool_use", ID: bl.ID, Name: bl.Name, Input: input})
			case ToolResultBlock:
				content = append(content, wireToolResult{
					Type:      "tool_result",
					ToolUseID: bl.ToolUseID,
					Content:   bl.Content,
					IsError:   bl.IsError,
				})
			case UnknownBlock:
				content = append(content, bl.Raw)
			}
		}
		out = append(out, wireMessage{Role: m.Role, Content: content})
	}
	return out
}

func decodeReply(body []byte) (*Reply, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewErrorWithCause(KindMalformed, "failed to parse response", err)
	}
	if resp.StopReason == "" {
		return nil, NewError(KindMalformed, "response has no stop_reason")
	}

	reply := &Reply{
		StopReason: StopReason(resp.StopReason),
		Content:    make([]ContentBlock, 0, len(resp.Content)),
	}
	for i, raw := range resp.Content {
		block, err := decodeBlock(raw)
		if err != nil {
			return nil, NewErrorWithCause(KindMalformed, fmt.Sprintf("content block %d", i), err)
		}
		reply.Content = append(reply.Content, block)
	}
	return reply, nil
}

func decodeBlock(raw json.RawMessage) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "text":
		var b wireText
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return TextBlock{Text: b.Text}, nil
	case "tool_use":
		var b wireToolUse
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		if b.ID == "" || b.Name == "" {
			return nil, fmt.Errorf("tool_use block missing id or name")
		}
		return ToolUseBlock{ID: b.ID, Name: b.Name, Input: b.Input}, nil
	default:
		return UnknownBlock{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
