package diagnose

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	localClientIP = "(local - use self-lookup)"
	instruction   = "Run all your diagnostic tools and provide a complete analysis."
)

// RequestMeta is what the dispatcher knows about the requesting client.
type RequestMeta struct {
	// ClientIP is the client address as observed, possibly empty.
	ClientIP string

	UserAgent      string
	AcceptLanguage string
	Time           time.Time
}

// IsLocal reports whether ip is a loopback or unknown address, for which
// geolocating the observed address would describe the server instead.
func IsLocal(ip string) bool {
	switch CleanIP(ip) {
	case "127.0.0.1", "::1", "unknown":
		return true
	}
	return false
}

// CleanIP strips the IPv4-mapped IPv6 prefix. An empty address becomes
// "unknown".
func CleanIP(ip string) string {
	ip = strings.TrimPrefix(strings.TrimSpace(ip), "::ffff:")
	if ip == "" {
		return "unknown"
	}
	return ip
}

// BuildContext renders the user message every agent run is seeded with.
func BuildContext(meta RequestMeta) string {
	ip := CleanIP(meta.ClientIP)
	if IsLocal(ip) {
		ip = localClientIP
	}
	ua := meta.UserAgent
	if ua == "" {
		ua = "unknown"
	}
	ts := meta.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	lines := []string{
		"Client IP: " + ip,
		"User-Agent: " + ua,
		"Timestamp: " + ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if lang := preferredLanguage(meta.AcceptLanguage); lang != "" {
		lines = append(lines, "Preferred-Language: "+lang)
	}
	lines = append(lines, "", instruction)
	return strings.Join(lines, "\n")
}

func preferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}
