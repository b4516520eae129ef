package diagnose

import "encoding/json"

// Event names on the stream.
const (
	EventInit     = "init"
	EventProgress = "progress"
	EventResult   = "result"
	EventDone     = "done"
)

const doneMessage = "All diagnostics complete"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// AgentInfo is one entry of the init event.
type AgentInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Result is the single settlement event of one agent.
type Result struct {
	Agent       string `json:"agent"`
	DisplayName string `json:"displayName"`
	Status      Status `json:"status"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

type Done struct {
	Message string `json:"message"`
}

// Normalize parses an agent's final text as JSON. Text that is not JSON is
// kept readable as {findings: [], analysis: text}.
func Normalize(text string) any {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}
	return map[string]any{
		"findings": []any{},
		"analysis": text,
	}
}
