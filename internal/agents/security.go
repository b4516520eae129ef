package agents

import (
	"context"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/tools"
)

const securityPrompt = `You are a network diagnostics agent specializing in connection security analysis.

Use your tools to check TLS/HTTPS configuration, security headers, and certificate information for the client's connection. Then respond with a JSON object:
{
  "findings": [
    {"label": "<check name>", "value": "<result>", "status": "good|bad|warn|info"}
  ],
  "analysis": "<2-3 sentence security assessment with recommendations.>"
}

Focus on practical security implications.
` + findingsContract

type optionalURLArgs struct {
	URL string `json:"url,omitempty" jsonschema_description:"URL to check (defaults to https://cloudflare.com)" validate:"omitempty,http_url"`
}

type requiredURLArgs struct {
	URL string `json:"url" jsonschema_description:"URL to check headers for" validate:"required,http_url"`
}

type certificateArgs struct {
	Domain string `json:"domain" jsonschema_description:"Domain to check certificate for" validate:"required,max=253"`
}

// Security inspects TLS, headers and certificates.
func Security(p *probe.Prober) agent.Descriptor {
	reg := tools.NewRegistry(
		tools.NewFunc("check_tls",
			"Check TLS/HTTPS configuration by making a request to a target URL and inspecting the connection",
			func(ctx context.Context, args optionalURLArgs) (any, error) {
				return p.CheckTLS(ctx, args.URL)
			}),
		tools.NewFunc("check_security_headers",
			"Fetch security-related HTTP headers from a URL (HSTS, CSP, X-Frame-Options, etc.)",
			func(ctx context.Context, args requiredURLArgs) (any, error) {
				return p.CheckSecurityHeaders(ctx, args.URL)
			}),
		tools.NewFunc("check_certificate",
			"Check certificate information for a domain via an HTTPS connection",
			func(ctx context.Context, args certificateArgs) (any, error) {
				return p.CheckCertificate(ctx, args.Domain), nil
			}),
	)
	return describe("security", "Security", securityPrompt, reg)
}
