package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LookupIP returns geolocation and ISP data for ip. An empty ip looks up
// the server's own public address.
func (p *Prober) LookupIP(ctx context.Context, ip string) (map[string]any, error) {
	base := strings.TrimRight(p.endpoints.IPLookup, "/")
	target := base + "/json/"
	if ip != "" {
		target = base + "/" + url.PathEscape(ip) + "/json/"
	}

	var out map[string]any
	if _, err := p.getJSON(ctx, target, nil, &out); err != nil {
		return nil, fmt.Errorf("ip lookup: %w", err)
	}
	if reason, ok := out["reason"].(string); ok && out["error"] == true {
		return nil, fmt.Errorf("ip lookup: %s", reason)
	}
	return out, nil
}

type IPv6Result struct {
	Available   bool   `json:"available"`
	IPv6Address string `json:"ipv6_address,omitempty"`
}

// CheckIPv6 reports whether an IPv6-only echo service is reachable.
// Concurrent callers share one in-flight check, which is detached from any
// single caller's cancellation and bounded by the probe timeout. A caller
// whose ctx ends first sees IPv6 as unavailable.
func (p *Prober) CheckIPv6(ctx context.Context) IPv6Result {
	shared := context.WithoutCancel(ctx)
	ch := p.ipv6.DoChan("ipv6", func() (any, error) {
		var echo struct {
			IP string `json:"ip"`
		}
		if _, err := p.getJSON(shared, p.endpoints.IPv6Echo, nil, &echo); err != nil {
			return IPv6Result{Available: false}, nil
		}
		return IPv6Result{Available: true, IPv6Address: echo.IP}, nil
	})

	select {
	case res := <-ch:
		return res.Val.(IPv6Result)
	case <-ctx.Done():
		return IPv6Result{Available: false}
	}
}
