// Package analyzer turns client-side test results into a short written
// assessment using a tool-less agent.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/isp-diag/internal/agent"
)

const systemPrompt = `You are a network diagnostics analyst. Given test results from a client's browser, provide a brief, insightful analysis. Respond with a JSON object:
{
  "analysis": "<2-3 sentence analysis with practical recommendations.>"
}
Respond ONLY with valid JSON.`

// Descriptor is the ephemeral agent used for every analysis.
var Descriptor = agent.Descriptor{
	Name:         "analyzer",
	DisplayName:  "Analyzer",
	SystemPrompt: systemPrompt,
}

// Runner runs one agent to completion.
type Runner interface {
	Run(ctx context.Context, desc agent.Descriptor, userContext string, onProgress agent.ProgressFunc) (string, error)
}

type Analyzer struct {
	runner Runner
}

func New(runner Runner) *Analyzer {
	return &Analyzer{runner: runner}
}

// Analyze asks the model about data, a set of results of the given kind
// (for example "speed" or "webrtc"). An answer that is not JSON is returned
// as {analysis: text}.
func (a *Analyzer) Analyze(ctx context.Context, kind string, data any) (any, error) {
	prompt, err := buildPrompt(kind, data)
	if err != nil {
		return nil, err
	}

	text, err := a.runner.Run(ctx, Descriptor, prompt, nil)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}
	return map[string]any{"analysis": text}, nil
}

func buildPrompt(kind string, data any) (string, error) {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s results: %w", kind, err)
	}
	return fmt.Sprintf("Analyze these %s test results from the client's browser:\n%s", kind, body), nil
}
