package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/isp-diag/internal/llm"
	"github.com/MimeLyc/isp-diag/pkg/log"
)

// Run drives desc through the tool-use loop seeded with userContext and
// returns the text of the terminal assistant turn.
//
// onProgress sees one start event, a tool event before each tool runs and,
// only when the run succeeds, one complete event.
func (r *Runtime) Run(ctx context.Context, desc Descriptor, userContext string, onProgress ProgressFunc) (string, error) {
	emit := func(ev ProgressEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	emit(ProgressEvent{Type: EventStart, Agent: desc.Name, DisplayName: desc.DisplayName})
	log.Debug("agent %s: started", desc.Name)

	conv := llm.NewConversation(userContext)

	for turn := 1; turn <= r.maxTurns; turn++ {
		reply, err := r.provider.Send(ctx, llm.Request{
			Model:     r.model,
			System:    desc.SystemPrompt,
			Tools:     desc.Tools,
			Messages:  conv.Messages(),
			MaxTokens: r.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("agent %s: turn %d: %w", desc.Name, turn, err)
		}

		uses := reply.ToolUses()
		if reply.StopReason != llm.StopToolUse || len(uses) == 0 {
			emit(ProgressEvent{Type: EventComplete, Agent: desc.Name})
			log.Debug("agent %s: completed after %d turns (stop_reason=%s)", desc.Name, turn, reply.StopReason)
			return reply.Text(), nil
		}

		if err := conv.AppendAssistant(reply); err != nil {
			return "", fmt.Errorf("agent %s: %w", desc.Name, err)
		}

		results := make([]llm.ToolResultBlock, 0, len(uses))
		for _, use := range uses {
			emit(ProgressEvent{Type: EventTool, Agent: desc.Name, Tool: use.Name})
			results = append(results, r.executeTool(ctx, desc, use))
		}

		if err := conv.AppendToolResults(results); err != nil {
			return "", fmt.Errorf("agent %s: %w", desc.Name, err)
		}
	}

	log.Warn("agent %s: gave up after %d turns", desc.Name, r.maxTurns)
	return "", fmt.Errorf("%w: agent %s used %d turns", ErrLoopBudgetExceeded, desc.Name, r.maxTurns)
}

// executeTool runs one tool use. Failures become an error result the model
// can read instead of aborting the run.
func (r *Runtime) executeTool(ctx context.Context, desc Descriptor, use llm.ToolUseBlock) llm.ToolResultBlock {
	if desc.Dispatcher == nil {
		return errorResult(use.ID, fmt.Sprintf("unknown tool: %s", use.Name))
	}

	out, err := safeDispatch(ctx, desc.Dispatcher, use)
	if err != nil {
		log.Debug("agent %s: tool %s failed: %v", desc.Name, use.Name, err)
		return errorResult(use.ID, err.Error())
	}

	content, err := json.Marshal(out)
	if err != nil {
		return errorResult(use.ID, fmt.Sprintf("encode result: %v", err))
	}
	log.Debug("agent %s: tool %s ok (%d bytes)", desc.Name, use.Name, len(content))
	return llm.ToolResultBlock{ToolUseID: use.ID, Content: string(content)}
}

// safeDispatch turns a panicking tool into an error result.
func safeDispatch(ctx context.Context, d ToolDispatcher, use llm.ToolUseBlock) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("tool %s panicked: %v", use.Name, p)
			out, err = nil, fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return d.Dispatch(ctx, use.Name, use.Input)
}

func errorResult(id, msg string) llm.ToolResultBlock {
	content, _ := json.Marshal(map[string]string{"error": msg})
	return llm.ToolResultBlock{ToolUseID: id, Content: string(content), IsError: true}
}
