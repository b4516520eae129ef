package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type dohAnswer struct {
	Status  int             `json:"Status"`
	AD      bool            `json:"AD"`
	CD      bool            `json:"CD"`
	Comment json.RawMessage `json:"Comment"`
}

func (a dohAnswer) comment() string {
	if len(a.Comment) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(a.Comment, &s); err == nil {
		return s
	}
	return string(a.Comment)
}

func (p *Prober) provider(name string) (DoHProvider, error) {
	prov, ok := p.endpoints.DoH[name]
	if !ok {
		return DoHProvider{}, fmt.Errorf("unknown provider: %s", name)
	}
	return prov, nil
}

func dohURL(prov DoHProvider, params url.Values) string {
	sep := "?"
	if strings.Contains(prov.URL, "?") {
		sep = "&"
	}
	return prov.URL + sep + params.Encode()
}

// QueryDoH resolves domain through the named DNS-over-HTTPS provider and
// returns the provider's JSON answer.
func (p *Prober) QueryDoH(ctx context.Context, provider, domain, rrType string) (map[string]any, error) {
	prov, err := p.provider(provider)
	if err != nil {
		return nil, err
	}
	if rrType == "" {
		rrType = "A"
	}

	var out map[string]any
	target := dohURL(prov, url.Values{"name": {domain}, "type": {rrType}})
	if _, err := p.getJSON(ctx, target, acceptHeader(prov.Accept), &out); err != nil {
		return nil, fmt.Errorf("DoH query failed: %w", err)
	}
	return out, nil
}

type DNSSECResult struct {
	Domain    string          `json:"domain"`
	Validated bool            `json:"validated"`
	Status    int             `json:"status"`
	Flags     map[string]bool `json:"flags"`
}

// CheckDNSSEC queries with the DNSSEC OK bit and reports whether the
// resolver authenticated the answer.
func (p *Prober) CheckDNSSEC(ctx context.Context, domain string) (DNSSECResult, error) {
	prov, err := p.provider("cloudflare")
	if err != nil {
		return DNSSECResult{}, err
	}

	var ans dohAnswer
	target := dohURL(prov, url.Values{"name": {domain}, "type": {"A"}, "do": {"true"}})
	if _, err := p.getJSON(ctx, target, acceptHeader(prov.Accept), &ans); err != nil {
		return DNSSECResult{}, fmt.Errorf("dnssec check: %w", err)
	}
	return DNSSECResult{
		Domain:    domain,
		Validated: ans.AD,
		Status:    ans.Status,
		Flags:     map[string]bool{"AD": ans.AD, "CD": ans.CD},
	}, nil
}

type ECSResult struct {
	ECSDetected bool    `json:"ecs_detected"`
	Comment     *string `json:"comment"`
}

// CheckECS asks a resolver that reports EDNS Client Subnet handling in its
// answer comment.
func (p *Prober) CheckECS(ctx context.Context) (ECSResult, error) {
	prov, err := p.provider("google")
	if err != nil {
		return ECSResult{}, err
	}

	var ans dohAnswer
	target := dohURL(prov, url.Values{"name": {"example.com"}, "type": {"A"}, "edns_client_subnet": {"0.0.0.0/0"}})
	if _, err := p.getJSON(ctx, target, acceptHeader(prov.Accept), &ans); err != nil {
		return ECSResult{}, fmt.Errorf("ecs check: %w", err)
	}

	res := ECSResult{}
	if c := ans.comment(); c != "" {
		res.Comment = &c
		res.ECSDetected = strings.Contains(strings.ToLower(c), "subnet")
	}
	return res, nil
}

type LeakProbe struct {
	Provider  string `json:"provider"`
	Reachable bool   `json:"reachable"`
	Status    *int   `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

type DNSLeakResult struct {
	Results []LeakProbe `json:"results"`
}

// TestDNSLeak resolves a random never-cached name through every provider.
func (p *Prober) TestDNSLeak(ctx context.Context) DNSLeakResult {
	res := DNSLeakResult{Results: make([]LeakProbe, 0, len(p.endpoints.DoHOrder))}
	for _, key := range p.endpoints.DoHOrder {
		prov, ok := p.endpoints.DoH[key]
		if !ok {
			continue
		}
		label := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

		var ans dohAnswer
		target := dohURL(prov, url.Values{"name": {label + ".example.com"}, "type": {"A"}})
		if _, err := p.getJSON(ctx, target, acceptHeader(prov.Accept), &ans); err != nil {
			res.Results = append(res.Results, LeakProbe{Provider: prov.Name, Error: err.Error()})
			continue
		}
		status := ans.Status
		res.Results = append(res.Results, LeakProbe{Provider: prov.Name, Reachable: true, Status: &status})
	}
	return res
}
