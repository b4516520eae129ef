// Package selfcheck runs the full diagnosis on a schedule from the server's
// own vantage point and logs the outcome.
package selfcheck

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MimeLyc/isp-diag/internal/diagnose"
	"github.com/MimeLyc/isp-diag/pkg/icron"
	"github.com/MimeLyc/isp-diag/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

const userAgent = "isp-diag-selfcheck"

type dispatcher interface {
	Dispatch(ctx context.Context, meta diagnose.RequestMeta, sink diagnose.Sink) error
}

type cronAdder interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
}

// Report summarises one self-check run.
type Report struct {
	Started  time.Time
	Duration time.Duration
	Results  []diagnose.Result
}

// Failed lists the agents that ended with an error.
func (r Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if res.Status == diagnose.StatusError {
			names = append(names, res.Agent)
		}
	}
	return names
}

type Service struct {
	dispatcher dispatcher
	cronExpr   string
	cron       cronAdder
	now        func() time.Time

	group singleflight.Group
}

func New(d dispatcher, cronExpr string, c cronAdder) *Service {
	return &Service{
		dispatcher: d,
		cronExpr:   cronExpr,
		cron:       c,
		now:        time.Now,
	}
}

// Schedule registers the self-check with the cron engine. Overlapping
// triggers share the run already in progress.
func (s *Service) Schedule(ctx context.Context) error {
	if s.cronExpr == "" {
		log.Info("Self-check disabled")
		return nil
	}
	if s.cron == nil {
		return errors.New("self-check needs a cron engine")
	}

	info, err := icron.GetTriggerInfo(s.cronExpr, s.now())
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.cronExpr, func() {
		if _, err := s.Run(ctx); err != nil {
			log.Error("Self-check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	log.Info("Self-check scheduled (%s), next run at %s", s.cronExpr, info.Next.Format(time.RFC3339))
	return nil
}

// Run performs one diagnosis and logs every event. Concurrent callers get
// the result of the run in flight.
func (s *Service) Run(ctx context.Context) (Report, error) {
	v, err, shared := s.group.Do("selfcheck", func() (any, error) {
		return s.run(ctx)
	})
	if shared {
		log.Debug("Self-check joined a run in progress")
	}
	return v.(Report), err
}

func (s *Service) run(ctx context.Context) (Report, error) {
	report := Report{Started: s.now()}
	sink := &logSink{}

	log.Info("Self-check started")
	err := s.dispatcher.Dispatch(ctx, diagnose.RequestMeta{UserAgent: userAgent, Time: report.Started}, sink)

	report.Duration = s.now().Sub(report.Started)
	report.Results = sink.results
	if failed := report.Failed(); len(failed) > 0 {
		log.Warn("Self-check finished in %s with %d failed agents: %v", report.Duration.Round(time.Millisecond), len(failed), failed)
	} else {
		log.Info("Self-check finished in %s, %d agents ok", report.Duration.Round(time.Millisecond), len(report.Results))
	}
	return report, err
}

// logSink writes stream events to the log instead of a client.
type logSink struct {
	mu      sync.Mutex
	results []diagnose.Result
}

func (l *logSink) Send(event string, data any) error {
	switch v := data.(type) {
	case diagnose.Result:
		l.mu.Lock()
		l.results = append(l.results, v)
		l.mu.Unlock()
		if v.Status == diagnose.StatusError {
			log.Warn("Self-check %s: %s", v.Agent, v.Error)
		} else {
			log.Info("Self-check %s: %v", v.Agent, v.Data)
		}
	default:
		log.Debug("Self-check %s: %v", event, data)
	}
	return nil
}
