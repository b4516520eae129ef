// Package probe implements the network checks the diagnostic agents call
// as tools. Every outbound request is bounded by the prober's timeout so a
// stalled endpoint surfaces as a failure instead of a hang.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// DoHProvider is a DNS-over-HTTPS endpoint speaking the JSON API.
type DoHProvider struct {
	Name   string
	URL    string
	Accept string
}

// NamedURL is a well-known endpoint used for reachability checks.
type NamedURL struct {
	Name string
	URL  string
}

// Endpoints lists the remote services probes talk to.
type Endpoints struct {
	IPLookup      string
	IPv6Echo      string
	DoH           map[string]DoHProvider
	DoHOrder      []string
	Connectivity  []NamedURL
	DefaultTarget string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		IPLookup: "https://ipapi.co",
		IPv6Echo: "https://api6.ipify.org?format=json",
		DoH: map[string]DoHProvider{
			"cloudflare": {Name: "Cloudflare", URL: "https://cloudflare-dns.com/dns-query", Accept: "application/dns-json"},
			"google":     {Name: "Google", URL: "https://dns.google/resolve"},
			"quad9":      {Name: "Quad9", URL: "https://dns.quad9.net:5053/dns-query", Accept: "application/dns-json"},
		},
		DoHOrder: []string{"cloudflare", "google", "quad9"},
		Connectivity: []NamedURL{
			{Name: "Cloudflare", URL: "https://1.1.1.1/cdn-cgi/trace"},
			{Name: "Google", URL: "https://www.google.com/generate_204"},
			{Name: "Apple", URL: "https://captive.apple.com"},
		},
		DefaultTarget: "https://cloudflare.com",
	}
}

// Prober runs network probes. It is safe for concurrent use by many agents.
type Prober struct {
	http      *http.Client
	timeout   time.Duration
	endpoints Endpoints
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	ipv6 singleflight.Group
}

type Option func(*Prober)

func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) { p.http = hc }
}

// WithTimeout bounds every single outbound request.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithEndpoints(e Endpoints) Option {
	return func(p *Prober) { p.endpoints = e }
}

func New(opts ...Option) *Prober {
	p := &Prober{
		http:      &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		timeout:   DefaultTimeout,
		endpoints: DefaultEndpoints(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do sends req under the probe timeout and returns the response with its
// body fully read. The cancel func is released before returning.
func (p *Prober) do(ctx context.Context, method, url string, header http.Header) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func (p *Prober) getJSON(ctx context.Context, url string, header http.Header, out any) (*http.Response, error) {
	resp, body, err := p.do(ctx, http.MethodGet, url, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp, nil
}

// StatusError reports a non-2xx answer from a probed endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.URL, e.StatusCode)
}

func acceptHeader(v string) http.Header {
	if v == "" {
		return nil
	}
	return http.Header{"Accept": []string{v}}
}
