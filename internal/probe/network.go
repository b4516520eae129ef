package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
)

type ProtocolResult struct {
	URL             string  `json:"url"`
	NegotiatedProto string  `json:"negotiated_protocol"`
	HTTP2           bool    `json:"http2"`
	HTTP3Advertised bool    `json:"http3_advertised"`
	AltSvc          *string `json:"alt_svc"`
}

// CheckProtocolSupport reports the negotiated HTTP version and whether the
// server advertises HTTP/3 through Alt-Svc.
func (p *Prober) CheckProtocolSupport(ctx context.Context, target string) (ProtocolResult, error) {
	if target == "" {
		target = p.endpoints.DefaultTarget
	}
	resp, _, err := p.do(ctx, http.MethodHead, target, nil)
	if err != nil {
		return ProtocolResult{}, fmt.Errorf("protocol check: %w", err)
	}

	res := ProtocolResult{
		URL:             target,
		NegotiatedProto: resp.Proto,
		HTTP2:           resp.ProtoMajor == 2,
	}
	if alt := resp.Header.Get("Alt-Svc"); alt != "" {
		res.AltSvc = &alt
		res.HTTP3Advertised = strings.Contains(alt, "h3")
	}
	return res, nil
}

type EndpointResult struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ConnectivityResult struct {
	Endpoints []EndpointResult `json:"endpoints"`
}

// CheckConnectivity reaches every well-known endpoint concurrently. The
// result keeps the configured endpoint order.
func (p *Prober) CheckConnectivity(ctx context.Context) ConnectivityResult {
	eps := p.endpoints.Connectivity
	results := make([]EndpointResult, len(eps))

	var g errgroup.Group
	for i, ep := range eps {
		g.Go(func() error {
			start := p.now()
			resp, _, err := p.do(ctx, http.MethodHead, ep.URL, nil)
			if err != nil {
				results[i] = EndpointResult{Name: ep.Name, Error: err.Error()}
				return nil
			}
			results[i] = EndpointResult{
				Name:      ep.Name,
				Reachable: true,
				LatencyMS: p.now().Sub(start).Milliseconds(),
				Status:    resp.StatusCode,
			}
			return nil
		})
	}
	_ = g.Wait()

	return ConnectivityResult{Endpoints: results}
}
