package agents

import (
	"context"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

const ipPrompt = `You are a network diagnostics agent specializing in IP address and ISP analysis.

Use your tools to gather information about the client's IP address, then respond with a JSON object:
{
  "findings": [
    {"label": "IPv4", "value": "<ip>", "status": "info", "detail": "<city, region, country>"},
    {"label": "IPv6", "value": "<ipv6 or 'not available'>", "status": "good|bad"},
    {"label": "ISP", "value": "<org>", "status": "info", "detail": "AS<number>"},
    {"label": "Location", "value": "<city, region, country>", "status": "info"}
  ],
  "analysis": "<1-2 sentence insight about the IP/ISP configuration. Note anything interesting like a VPN, a datacenter IP, or a known ISP with specific behaviors.>"
}

If the client IP is local, omit the ip argument to look up the server's own address.
` + findingsContract

type lookupIPArgs struct {
	IP string `json:"ip,omitempty" jsonschema_description:"IP address to look up. Omit for a self-lookup." validate:"omitempty,ip"`
}

func checkIPv6Tool(p *probe.Prober, description string) tools.Tool {
	return tools.NewFunc("check_ipv6", description, func(ctx context.Context, _ noArgs) (any, error) {
		return p.CheckIPv6(ctx), nil
	})
}

// IP reports the client's address, ISP and location.
func IP(p *probe.Prober) agent.Descriptor {
	reg := tools.NewRegistry(
		tools.NewFunc("lookup_ip",
			"Look up geolocation and ISP information for an IP address via ipapi.co. Pass the IP address or omit it for a server self-lookup.",
			func(ctx context.Context, args lookupIPArgs) (any, error) {
				return p.LookupIP(ctx, args.IP)
			}),
		checkIPv6Tool(p, "Check if IPv6 connectivity is available from this network"),
	)
	return describe("ip", "IP & Location", ipPrompt, reg)
}
