package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/llm"
	"github.com/MimeLyc/isp-diag/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays replies in order and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []*llm.Reply
	requests []llm.Request
}

func (s *scriptedProvider) provider() *mock.Provider {
	return &mock.Provider{
		SendFn: func(_ context.Context, req llm.Request) (*llm.Reply, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			req.Messages = append([]llm.Message(nil), req.Messages...)
			s.requests = append(s.requests, req)
			if len(s.replies) == 0 {
				return nil, errors.New("script exhausted")
			}
			r := s.replies[0]
			s.replies = s.replies[1:]
			return r, nil
		},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []agent.ProgressEvent
}

func (l *eventLog) record(ev agent.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	var out []string
	for _, ev := range l.events {
		s := string(ev.Type)
		if ev.Tool != "" {
			s += ":" + ev.Tool
		}
		out = append(out, s)
	}
	return out
}

func endTurn(text string) *llm.Reply {
	return &llm.Reply{StopReason: llm.StopEndTurn, Content: []llm.ContentBlock{llm.TextBlock{Text: text}}}
}

func toolUse(uses ...llm.ToolUseBlock) *llm.Reply {
	blocks := make([]llm.ContentBlock, 0, len(uses))
	for _, u := range uses {
		blocks = append(blocks, u)
	}
	return &llm.Reply{StopReason: llm.StopToolUse, Content: blocks}
}

func probeAgent(d agent.ToolDispatcher) agent.Descriptor {
	return agent.Descriptor{
		Name:         "a",
		DisplayName:  "Agent A",
		SystemPrompt: "You are a test agent.",
		Tools: []llm.ToolSpec{{
			Name:        "probe",
			Description: "Probe something.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}},
		Dispatcher: d,
	}
}

func TestRun_NoTools(t *testing.T) {
	t.Parallel()

	script := &scriptedProvider{replies: []*llm.Reply{endTurn(`{"findings":[],"analysis":"ok"}`)}}
	rt := agent.NewRuntime(script.provider(), agent.WithModel("test-model"), agent.WithMaxTokens(256))

	var log eventLog
	desc := agent.Descriptor{Name: "a", DisplayName: "Agent A", SystemPrompt: "sys"}
	text, err := rt.Run(context.Background(), desc, "hello", log.record)
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[],"analysis":"ok"}`, text)

	assert.Equal(t, []agent.ProgressEvent{
		{Type: agent.EventStart, Agent: "a", DisplayName: "Agent A"},
		{Type: agent.EventComplete, Agent: "a"},
	}, log.events)

	require.Len(t, script.requests, 1)
	req := script.requests[0]
	assert.Equal(t, "sys", req.System)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Empty(t, req.Tools)
	assert.Equal(t, []llm.Message{llm.UserText("hello")}, req.Messages)
}

func TestRun_OneTool(t *testing.T) {
	t.Parallel()

	final := `{"findings":[{"label":"X","value":"1","status":"info"}],"analysis":"done"}`
	script := &scriptedProvider{replies: []*llm.Reply{
		toolUse(llm.ToolUseBlock{ID: "u1", Name: "probe", Input: json.RawMessage(`{}`)}),
		endTurn(final),
	}}
	dispatcher := &mock.ToolDispatcher{
		DispatchFn: func(_ context.Context, name string, input json.RawMessage) (any, error) {
			assert.Equal(t, "probe", name)
			assert.JSONEq(t, `{}`, string(input))
			return map[string]int{"x": 1}, nil
		},
	}
	rt := agent.NewRuntime(script.provider())

	var log eventLog
	text, err := rt.Run(context.Background(), probeAgent(dispatcher), "ctx", log.record)
	require.NoError(t, err)
	assert.Equal(t, final, text)
	assert.Equal(t, []string{"start", "tool:probe", "complete"}, log.types())

	require.Len(t, script.requests, 2)
	second := script.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	assert.Equal(t, llm.UserToolResults([]llm.ToolResultBlock{
		{ToolUseID: "u1", Content: `{"x":1}`},
	}), second[2])
	assert.Len(t, script.requests[1].Tools, 1)
}

func TestRun_ToolFailureIsFedBack(t *testing.T) {
	t.Parallel()

	script := &scriptedProvider{replies: []*llm.Reply{
		toolUse(llm.ToolUseBlock{ID: "u1", Name: "probe"}),
		endTurn(`{"findings":[],"analysis":"recovered"}`),
	}}
	dispatcher := &mock.ToolDispatcher{
		DispatchFn: func(context.Context, string, json.RawMessage) (any, error) {
			return nil, errors.New("boom")
		},
	}
	rt := agent.NewRuntime(script.provider())

	text, err := rt.Run(context.Background(), probeAgent(dispatcher), "ctx", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "recovered")

	require.Len(t, script.requests, 2)
	results := script.requests[1].Messages[2].Content
	require.Len(t, results, 1)
	assert.Equal(t, llm.ToolResultBlock{ToolUseID: "u1", Content: `{"error":"boom"}`, IsError: true}, results[0])
}

func TestRun_ToolPanicIsFedBack(t *testing.T) {
	t.Parallel()

	script := &scriptedProvider{replies: []*llm.Reply{
		toolUse(llm.ToolUseBlock{ID: "u1", Name: "probe"}),
		endTurn(`{"findings":[],"analysis":"survived"}`),
	}}
	dispatcher := &mock.ToolDispatcher{
		DispatchFn: func(context.Context, string, json.RawMessage) (any, error) {
			var counts map[string]int
			counts["probe"]++
			return counts, nil
		},
	}
	rt := agent.NewRuntime(script.provider())

	var log eventLog
	var text string
	var err error
	require.NotPanics(t, func() {
		text, err = rt.Run(context.Background(), probeAgent(dispatcher), "ctx", log.record)
	})
	require.NoError(t, err)
	assert.Contains(t, text, "survived")
	assert.Equal(t, []string{"start", "tool:probe", "complete"}, log.types())

	require.Len(t, script.requests, 2)
	results := script.requests[1].Messages[2].Content
	require.Len(t, results, 1)
	res := results[0].(llm.ToolResultBlock)
	assert.Equal(t, "u1", res.ToolUseID)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "tool panicked: assignment to entry in nil map")
}

func TestRun_ToolResultsMirrorToolUses(t *testing.T) {
	t.Parallel()

	script := &scriptedProvider{replies: []*llm.Reply{
		{StopReason: llm.StopToolUse, Content: []llm.ContentBlock{
			llm.TextBlock{Text: "checking"},
			llm.ToolUseBlock{ID: "u1", Name: "first"},
			llm.ToolUseBlock{ID: "u2", Name: "second"},
			llm.ToolUseBlock{ID: "u3", Name: "third"},
		}},
		toolUse(llm.ToolUseBlock{ID: "u4", Name: "first"}),
		endTurn("done"),
	}}

	var calls []string
	dispatcher := &mock.ToolDispatcher{
		DispatchFn: func(_ context.Context, name string, _ json.RawMessage) (any, error) {
			calls = append(calls, name)
			if name == "second" {
				return nil, errors.New("nope")
			}
			return name, nil
		},
	}
	rt := agent.NewRuntime(script.provider())

	var log eventLog
	_, err := rt.Run(context.Background(), probeAgent(dispatcher), "ctx", log.record)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "first"}, calls)
	assert.Equal(t, []string{"start", "tool:first", "tool:second", "tool:third", "tool:first", "complete"}, log.types())

	msgs := script.requests[2].Messages
	for i := 1; i+1 < len(msgs); i += 2 {
		var useIDs, resultIDs []string
		for _, b := range msgs[i].Content {
			if u, ok := b.(llm.ToolUseBlock); ok {
				useIDs = append(useIDs, u.ID)
			}
		}
		for _, b := range msgs[i+1].Content {
			resultIDs = append(resultIDs, b.(llm.ToolResultBlock).ToolUseID)
		}
		assert.Equal(t, useIDs, resultIDs)
	}
	assert.Equal(t, `"first"`, msgs[2].Content[0].(llm.ToolResultBlock).Content)
	assert.True(t, msgs[2].Content[1].(llm.ToolResultBlock).IsError)
}

func TestRun_LoopBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	provider := &mock.Provider{
		SendFn: func(context.Context, llm.Request) (*llm.Reply, error) {
			calls++
			return toolUse(llm.ToolUseBlock{ID: "u", Name: "probe"}), nil
		},
	}
	dispatcher := &mock.ToolDispatcher{
		DispatchFn: func(context.Context, string, json.RawMessage) (any, error) { return "ok", nil },
	}
	rt := agent.NewRuntime(provider, agent.WithMaxTurns(3))

	var log eventLog
	_, err := rt.Run(context.Background(), probeAgent(dispatcher), "ctx", log.record)
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrLoopBudgetExceeded)
	assert.Contains(t, err.Error(), "LoopBudgetExceeded")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"start", "tool:probe", "tool:probe", "tool:probe"}, log.types())
}

func TestRun_ProviderErrorEndsRunWithoutComplete(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		SendFn: func(context.Context, llm.Request) (*llm.Reply, error) {
			return nil, llm.NewError(llm.KindTransport, "connection reset")
		},
	}
	rt := agent.NewRuntime(provider)

	var log eventLog
	_, err := rt.Run(context.Background(), probeAgent(nil), "ctx", log.record)
	require.Error(t, err)
	assert.True(t, llm.IsKind(err, llm.KindTransport))
	assert.Equal(t, []string{"start"}, log.types())
}

func TestRun_TerminalStopReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply *llm.Reply
		want  string
	}{
		{
			name:  "max tokens",
			reply: &llm.Reply{StopReason: llm.StopMaxTokens, Content: []llm.ContentBlock{llm.TextBlock{Text: "trunc"}}},
			want:  "trunc",
		},
		{
			name:  "stop sequence",
			reply: &llm.Reply{StopReason: llm.StopStopSequence, Content: []llm.ContentBlock{llm.TextBlock{Text: "a"}, llm.TextBlock{Text: "b"}}},
			want:  "a\nb",
		},
		{
			name:  "unknown block",
			reply: &llm.Reply{StopReason: llm.StopEndTurn, Content: []llm.ContentBlock{llm.UnknownBlock{Type: "thinking"}}},
			want:  "",
		},
		{
			name:  "tool_use without tool blocks",
			reply: &llm.Reply{StopReason: llm.StopToolUse, Content: []llm.ContentBlock{llm.TextBlock{Text: "odd"}}},
			want:  "odd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			script := &scriptedProvider{replies: []*llm.Reply{tt.reply}}
			var log eventLog
			text, err := agent.NewRuntime(script.provider()).Run(context.Background(), probeAgent(nil), "ctx", log.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, []string{"start", "complete"}, log.types())
		})
	}
}

func TestRun_MissingDispatcherReportsUnknownTool(t *testing.T) {
	t.Parallel()

	script := &scriptedProvider{replies: []*llm.Reply{
		toolUse(llm.ToolUseBlock{ID: "u1", Name: "ghost"}),
		endTurn("ok"),
	}}
	_, err := agent.NewRuntime(script.provider()).Run(context.Background(), probeAgent(nil), "ctx", nil)
	require.NoError(t, err)

	res := script.requests[1].Messages[2].Content[0].(llm.ToolResultBlock)
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"unknown tool: ghost"}`, res.Content)
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()
	assert.Equal(t, agent.DefaultMaxTurns, agent.NewRuntime(nil).MaxTurns())
	assert.Equal(t, 4, agent.NewRuntime(nil, agent.WithMaxTurns(4)).MaxTurns())
	assert.Equal(t, agent.DefaultMaxTurns, agent.NewRuntime(nil, agent.WithMaxTurns(-1)).MaxTurns())
}
