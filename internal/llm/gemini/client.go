// Package gemini implements llm.Provider on top of the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/MimeLyc/isp-diag/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// Client is a stateless Gemini provider.
type Client struct {
	client *genai.Client
	model  string
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates a Gemini client for the given API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", llm.ErrNoCredential)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{client: gc, model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Send(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, convertMessages(req.Messages), buildConfig(req))
	if err != nil {
		return nil, classify(err)
	}
	return convertResponse(resp)
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Tools:           convertTools(req.Tools),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return config
}

func classify(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewErrorWithCause(llm.KindTransport, "gemini request failed", err)
	}
	return llm.NewErrorWithCause(llm.KindProvider, "gemini returned an error", err)
}

func convertMessages(msgs []llm.Message) []*genai.Content {
	// Function responses must name the function; remember names by call id.
	names := make(map[string]string)

	var result []*genai.Content
	for _, m := range msgs {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		for _, b := range m.Content {
			switch bl := b.(type) {
			case llm.TextBlock:
				if bl.Text != "" {
					parts = append(parts, &genai.Part{Text: bl.Text})
				}
			case llm.ToolUseBlock:
				names[bl.ID] = bl.Name
				var args map[string]any
				_ = json.Unmarshal(bl.Input, &args)
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: bl.ID, Name: bl.Name, Args: args},
				})
			case llm.ToolResultBlock:
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       bl.ToolUseID,
						Name:     names[bl.ToolUseID],
						Response: responseMap(bl),
					},
				})
			}
		}
		if len(parts) > 0 {
			result = append(result, &genai.Content{Role: role, Parts: parts})
		}
	}
	return result
}

func responseMap(r llm.ToolResultBlock) map[string]any {
	if r.IsError {
		return map[string]any{"error": r.Content}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(r.Content), &obj); err == nil {
		return obj
	}
	return map[string]any{"output": r.Content}
}

func convertTools(tools []llm.ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.InputSchema, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertResponse(resp *genai.GenerateContentResponse) (*llm.Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, llm.NewError(llm.KindMalformed, "gemini response has no candidates")
	}
	cand := resp.Candidates[0]

	reply := &llm.Reply{StopReason: llm.StopEndTurn}
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		reply.StopReason = llm.StopMaxTokens
	}
	if cand.Content == nil {
		return reply, nil
	}

	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			input, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, llm.NewErrorWithCause(llm.KindMalformed, "function call args", err)
			}
			if p.FunctionCall.Args == nil {
				input = []byte(`{}`)
			}
			reply.Content = append(reply.Content, llm.ToolUseBlock{ID: id, Name: p.FunctionCall.Name, Input: input})
			reply.StopReason = llm.StopToolUse
		case p.Thought:
			// thought summaries are not part of the answer
		case p.Text != "":
			reply.Content = append(reply.Content, llm.TextBlock{Text: p.Text})
		}
	}
	return reply, nil
}
