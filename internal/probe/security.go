package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net/http"
	"strings"
)

type TLSResult struct {
	URL        string `json:"url"`
	Status     int    `json:"status"`
	Protocol   string `json:"protocol"`
	TLSVersion string `json:"tls_version,omitempty"`
	Redirected bool   `json:"redirected"`
	FinalURL   string `json:"final_url"`
}

// CheckTLS issues a HEAD request, following redirects, and reports where
// it ended up and over what protocol.
func (p *Prober) CheckTLS(ctx context.Context, target string) (TLSResult, error) {
	if target == "" {
		target = p.endpoints.DefaultTarget
	}
	resp, _, err := p.do(ctx, http.MethodHead, target, nil)
	if err != nil {
		return TLSResult{}, fmt.Errorf("tls check: %w", err)
	}

	final := resp.Request.URL.String()
	res := TLSResult{
		URL:        target,
		Status:     resp.StatusCode,
		Protocol:   "HTTP",
		Redirected: final != target,
		FinalURL:   final,
	}
	if resp.TLS != nil {
		res.Protocol = "HTTPS"
		res.TLSVersion = tls.VersionName(resp.TLS.Version)
	}
	return res, nil
}

var securityHeaders = []string{
	"strict-transport-security",
	"content-security-policy",
	"x-frame-options",
	"x-content-type-options",
	"referrer-policy",
	"permissions-policy",
	"x-xss-protection",
}

type SecurityHeadersResult struct {
	URL             string            `json:"url"`
	SecurityHeaders map[string]string `json:"security_headers"`
	TotalFound      int               `json:"total_found"`
}

// CheckSecurityHeaders collects the security-relevant response headers of
// target.
func (p *Prober) CheckSecurityHeaders(ctx context.Context, target string) (SecurityHeadersResult, error) {
	resp, _, err := p.do(ctx, http.MethodHead, target, nil)
	if err != nil {
		return SecurityHeadersResult{}, fmt.Errorf("security headers: %w", err)
	}

	found := make(map[string]string)
	for _, h := range securityHeaders {
		if v := resp.Header.Get(h); v != "" {
			found[h] = v
		}
	}
	return SecurityHeadersResult{URL: target, SecurityHeaders: found, TotalFound: len(found)}, nil
}

type CertificateResult struct {
	Domain        string   `json:"domain"`
	HTTPSWorks    bool     `json:"https_works"`
	Status        int      `json:"status,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Issuer        string   `json:"issuer,omitempty"`
	DNSNames      []string `json:"dns_names,omitempty"`
	NotAfter      string   `json:"not_after,omitempty"`
	DaysRemaining int      `json:"days_remaining,omitempty"`
	TLSVersion    string   `json:"tls_version,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// CheckCertificate connects to https://domain and reports the leaf
// certificate the server presented. A failed handshake is a result, not
// an error.
func (p *Prober) CheckCertificate(ctx context.Context, domain string) CertificateResult {
	host := strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	res := CertificateResult{Domain: domain}

	resp, _, err := p.do(ctx, http.MethodHead, "https://"+host, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.HTTPSWorks = true
	res.Status = resp.StatusCode
	if resp.TLS == nil {
		return res
	}
	res.TLSVersion = tls.VersionName(resp.TLS.Version)
	if len(resp.TLS.PeerCertificates) == 0 {
		return res
	}

	leaf := resp.TLS.PeerCertificates[0]
	res.Subject = leaf.Subject.CommonName
	res.Issuer = leaf.Issuer.CommonName
	if res.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		res.Issuer = leaf.Issuer.Organization[0]
	}
	res.DNSNames = leaf.DNSNames
	res.NotAfter = leaf.NotAfter.UTC().Format("2006-01-02T15:04:05Z")
	res.DaysRemaining = int(math.Floor(leaf.NotAfter.Sub(p.now()).Hours() / 24))
	return res
}
