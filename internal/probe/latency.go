package probe

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDNSSamples  = 10
	DefaultHTTPSamples = 5

	dnsSampleGap  = 200 * time.Millisecond
	httpSampleGap = 100 * time.Millisecond
)

// ErrAllSamplesFailed is returned when no latency sample succeeded.
var ErrAllSamplesFailed = errors.New("all measurements failed")

// Stats summarises latency samples in whole milliseconds.
type Stats struct {
	Samples int     `json:"samples"`
	MinMS   int64   `json:"min_ms"`
	MaxMS   int64   `json:"max_ms"`
	AvgMS   int64   `json:"avg_ms"`
	Jitter  int64   `json:"jitter_ms"`
	AllMS   []int64 `json:"all_times_ms,omitempty"`
}

// Summarize computes min, max, rounded mean and jitter (population
// standard deviation around the rounded mean).
func Summarize(times []int64) (Stats, bool) {
	if len(times) == 0 {
		return Stats{}, false
	}
	s := Stats{Samples: len(times), MinMS: times[0], MaxMS: times[0]}
	var sum int64
	for _, t := range times {
		sum += t
		s.MinMS = min(s.MinMS, t)
		s.MaxMS = max(s.MaxMS, t)
	}
	s.AvgMS = int64(math.Round(float64(sum) / float64(len(times))))

	var sq float64
	for _, t := range times {
		d := float64(t - s.AvgMS)
		sq += d * d
	}
	s.Jitter = int64(math.Round(math.Sqrt(sq / float64(len(times)))))
	return s, true
}

// MeasureDNSLatency times repeated DoH queries for the root NS set.
func (p *Prober) MeasureDNSLatency(ctx context.Context, samples int) (Stats, error) {
	if samples <= 0 {
		samples = DefaultDNSSamples
	}
	prov, err := p.provider("cloudflare")
	if err != nil {
		return Stats{}, err
	}

	times := p.sample(ctx, samples, dnsSampleGap, func() bool {
		target := dohURL(prov, url.Values{
			"name": {"."},
			"type": {"NS"},
			"_":    {strconv.FormatInt(p.now().UnixMilli(), 10)},
		})
		_, _, err := p.do(ctx, http.MethodGet, target, acceptHeader(prov.Accept))
		return err == nil
	})

	stats, ok := Summarize(times)
	if !ok {
		return Stats{}, ErrAllSamplesFailed
	}
	stats.AllMS = times
	return stats, nil
}

type HTTPLatencyResult struct {
	URL string `json:"url"`
	Stats
}

// MeasureHTTPLatency times repeated HEAD requests to target.
func (p *Prober) MeasureHTTPLatency(ctx context.Context, target string, samples int) (HTTPLatencyResult, error) {
	if target == "" {
		target = p.endpoints.DefaultTarget
	}
	if samples <= 0 {
		samples = DefaultHTTPSamples
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}

	times := p.sample(ctx, samples, httpSampleGap, func() bool {
		_, _, err := p.do(ctx, http.MethodHead, target+sep+"_="+strconv.FormatInt(p.now().UnixMilli(), 10), nil)
		return err == nil
	})

	stats, ok := Summarize(times)
	if !ok {
		return HTTPLatencyResult{}, ErrAllSamplesFailed
	}
	return HTTPLatencyResult{URL: target, Stats: stats}, nil
}

// sample runs probe n times with gap between attempts and returns the
// durations of the successful ones. It stops early if ctx is done.
func (p *Prober) sample(ctx context.Context, n int, gap time.Duration, probe func() bool) []int64 {
	times := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		start := p.now()
		if probe() {
			times = append(times, p.now().Sub(start).Milliseconds())
		}
		if i < n-1 {
			if err := p.sleep(ctx, gap); err != nil {
				break
			}
		}
	}
	return times
}
