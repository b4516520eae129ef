package agents

import (
	"context"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

const dnsPrompt = `You are a network diagnostics agent specializing in DNS security and configuration analysis.

Use your tools to check DNS resolver reachability, DNSSEC validation, DNS-over-HTTPS support, EDNS Client Subnet exposure, and DNS leak potential. Then respond with a JSON object:
{
  "findings": [
    {"label": "<check name>", "value": "<result>", "status": "good|bad|warn|info"}
  ],
  "analysis": "<2-3 sentence analysis of DNS security posture with actionable recommendations.>"
}

` + findingsContract

type queryDoHArgs struct {
	Provider string `json:"provider" jsonschema:"enum=cloudflare,enum=google,enum=quad9" jsonschema_description:"Which DoH provider to query" validate:"required,oneof=cloudflare google quad9"`
	Domain   string `json:"domain" jsonschema_description:"Domain name to resolve" validate:"required,hostname_rfc1123"`
	Type     string `json:"type,omitempty" jsonschema:"default=A" jsonschema_description:"DNS record type (A, AAAA, NS, etc.)" validate:"omitempty,alphanum,max=10"`
}

type domainArgs struct {
	Domain string `json:"domain" jsonschema_description:"Domain to check" validate:"required,hostname_rfc1123"`
}

// DNS checks resolver behaviour over DNS-over-HTTPS.
func DNS(p *probe.Prober) agent.Descriptor {
	reg := tools.NewRegistry(
		tools.NewFunc("query_doh",
			"Send a DNS-over-HTTPS query to a provider. Returns the JSON response.",
			func(ctx context.Context, args queryDoHArgs) (any, error) {
				return p.QueryDoH(ctx, args.Provider, args.Domain, args.Type)
			}),
		tools.NewFunc("check_dnssec",
			"Check DNSSEC validation for a domain by querying with the DO (DNSSEC OK) flag",
			func(ctx context.Context, args domainArgs) (any, error) {
				return p.CheckDNSSEC(ctx, args.Domain)
			}),
		tools.NewFunc("check_ecs",
			"Check if EDNS Client Subnet (ECS) is being used, which can leak client IP subnet information to authoritative DNS servers",
			func(ctx context.Context, _ noArgs) (any, error) {
				return p.CheckECS(ctx)
			}),
		tools.NewFunc("test_dns_leak",
			"Test for DNS leaks by querying random subdomains through multiple DNS providers",
			func(ctx context.Context, _ noArgs) (any, error) {
				return p.TestDNSLeak(ctx), nil
			}),
	)
	return describe("dns", "DNS Analysis", dnsPrompt, reg)
}
