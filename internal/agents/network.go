package agents

import (
	"context"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

const networkPrompt = `You are a network diagnostics agent specializing in network capability detection.

Use your tools to test IPv6 connectivity, protocol support, and network features. Then respond with a JSON object:
{
  "findings": [
    {"label": "<capability>", "value": "<result>", "status": "good|bad|warn|info"}
  ],
  "analysis": "<1-2 sentence summary of network capabilities and any recommendations.>"
}

` + findingsContract

// Network tests IPv6, HTTP protocol support and general reachability.
func Network(p *probe.Prober) agent.Descriptor {
	reg := tools.NewRegistry(
		checkIPv6Tool(p, "Test if IPv6 connectivity is available from this network"),
		tools.NewFunc("check_protocol_support",
			"Check HTTP protocol support (HTTP/2, HTTP/3) by making a request to a known endpoint",
			func(ctx context.Context, args optionalURLArgs) (any, error) {
				return p.CheckProtocolSupport(ctx, args.URL)
			}),
		tools.NewFunc("check_connectivity",
			"Test general internet connectivity by reaching multiple well-known endpoints",
			func(ctx context.Context, _ noArgs) (any, error) {
				return p.CheckConnectivity(ctx), nil
			}),
	)
	return describe("network", "Network Capabilities", networkPrompt, reg)
}
