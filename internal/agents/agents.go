// Package agents defines the diagnostic agents: their prompts, their tool
// catalogues and the probe calls behind each tool.
package agents

import (
	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

// findingsContract is appended to every agent prompt.
const findingsContract = `Status meanings: good = secure/optimal, bad = insecure/failing, warn = suboptimal, info = neutral.
Respond ONLY with valid JSON.`

type noArgs struct{}

// All returns the agents in display order. They share p.
func All(p *probe.Prober) []agent.Descriptor {
	return []agent.Descriptor{
		IP(p),
		DNS(p),
		Security(p),
		Network(p),
		Performance(p),
	}
}

// Names returns the agent names in order.
func Names(descs []agent.Descriptor) []string {
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return names
}

func describe(name, displayName, prompt string, reg *tools.Registry) agent.Descriptor {
	return agent.Descriptor{
		Name:         name,
		DisplayName:  displayName,
		SystemPrompt: prompt,
		Tools:        reg.Specs(),
		Dispatcher:   reg,
	}
}
