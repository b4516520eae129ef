package agents

import (
	"context"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

const performancePrompt = `You are a network diagnostics agent specializing in network performance analysis.

Use your tools to measure DNS query latency and overall network responsiveness. Then respond with a JSON object:
{
  "findings": [
    {"label": "<metric>", "value": "<result>", "status": "good|bad|warn|info"}
  ],
  "analysis": "<2-3 sentence performance assessment. Note if latency or jitter indicate congestion, routing issues, or throttling.>"
}

Latency guidelines: <50ms = good, 50-150ms = warn, >150ms = bad.
Jitter guidelines: <10ms = good, 10-30ms = warn, >30ms = bad.
` + findingsContract

type dnsLatencyArgs struct {
	Samples int `json:"samples,omitempty" jsonschema_description:"Number of latency samples to collect (default 10)" validate:"omitempty,min=1,max=20"`
}

type httpLatencyArgs struct {
	URL     string `json:"url,omitempty" jsonschema_description:"URL to measure latency to (defaults to https://cloudflare.com)" validate:"omitempty,http_url"`
	Samples int    `json:"samples,omitempty" jsonschema_description:"Number of samples (default 5)" validate:"omitempty,min=1,max=10"`
}

// Performance measures DNS and HTTP latency and jitter.
func Performance(p *probe.Prober) agent.Descriptor {
	reg := tools.NewRegistry(
		tools.NewFunc("measure_dns_latency",
			"Measure DNS-over-HTTPS query latency by performing multiple queries and computing statistics",
			func(ctx context.Context, args dnsLatencyArgs) (any, error) {
				return p.MeasureDNSLatency(ctx, args.Samples)
			}),
		tools.NewFunc("measure_http_latency",
			"Measure HTTP request latency to a well-known endpoint",
			func(ctx context.Context, args httpLatencyArgs) (any, error) {
				return p.MeasureHTTPLatency(ctx, args.URL, args.Samples)
			}),
	)
	return describe("performance", "Performance", performancePrompt, reg)
}
