package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/MimeLyc/isp-diag/internal/llm"
)

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrNoCredential)
}

func TestConvertMessages_NamesFunctionResponses(t *testing.T) {
	msgs := []llm.Message{
		llm.UserText("context"),
		llm.AssistantBlocks([]llm.ContentBlock{
			llm.TextBlock{Text: ""},
			llm.ToolUseBlock{ID: "u1", Name: "lookup_ip", Input: json.RawMessage(`{"ip":"1.1.1.1"}`)},
		}),
		llm.UserToolResults([]llm.ToolResultBlock{
			{ToolUseID: "u1", Content: `{"error":"boom"}`, IsError: true},
		}),
	}

	got := convertMessages(msgs)
	require.Len(t, got, 3)

	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "context", got[0].Parts[0].Text)

	assert.Equal(t, "model", got[1].Role)
	require.Len(t, got[1].Parts, 1)
	assert.Equal(t, "lookup_ip", got[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, map[string]any{"ip": "1.1.1.1"}, got[1].Parts[0].FunctionCall.Args)

	resp := got[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "u1", resp.ID)
	assert.Equal(t, "lookup_ip", resp.Name)
	assert.Equal(t, map[string]any{"error": `{"error":"boom"}`}, resp.Response)
}

func TestResponseMap(t *testing.T) {
	assert.Equal(t, map[string]any{"x": float64(1)}, responseMap(llm.ToolResultBlock{Content: `{"x":1}`}))
	assert.Equal(t, map[string]any{"output": "[1,2]"}, responseMap(llm.ToolResultBlock{Content: `[1,2]`}))
}

func TestConvertTools(t *testing.T) {
	assert.Nil(t, convertTools(nil))

	tools := convertTools([]llm.ToolSpec{{
		Name:        "check_ipv6",
		Description: "ipv6",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	decl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "check_ipv6", decl.Name)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, decl.ParametersJsonSchema)
}

func TestConvertResponse(t *testing.T) {
	t.Run("function call becomes tool use", func(t *testing.T) {
		reply, err := convertResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "thinking", Thought: true},
					{Text: "let me check"},
					{FunctionCall: &genai.FunctionCall{Name: "check_ipv6"}},
				}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, llm.StopToolUse, reply.StopReason)
		require.Len(t, reply.Content, 2)
		assert.Equal(t, llm.TextBlock{Text: "let me check"}, reply.Content[0])

		use := reply.Content[1].(llm.ToolUseBlock)
		assert.NotEmpty(t, use.ID)
		assert.JSONEq(t, `{}`, string(use.Input))
	})

	t.Run("max tokens", func(t *testing.T) {
		reply, err := convertResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonMaxTokens,
				Content:      &genai.Content{Parts: []*genai.Part{{Text: "{\"findings\""}}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, llm.StopMaxTokens, reply.StopReason)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := convertResponse(&genai.GenerateContentResponse{})
		require.Error(t, err)
		assert.True(t, llm.IsKind(err, llm.KindMalformed))
	})
}

func TestClassify(t *testing.T) {
	assert.True(t, llm.IsKind(classify(context.DeadlineExceeded), llm.KindTransport))
	assert.True(t, llm.IsKind(classify(errors.New("400 bad request")), llm.KindProvider))
}
