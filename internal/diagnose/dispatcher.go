// Package diagnose runs every diagnostic agent for one request and streams
// their progress and results.
package diagnose

import (
	"context"
	"fmt"
	"sync"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Sink receives stream events. Send is never called concurrently.
type Sink interface {
	Send(event string, data any) error
}

// Runner runs one agent to completion.
type Runner interface {
	Run(ctx context.Context, desc agent.Descriptor, userContext string, onProgress agent.ProgressFunc) (string, error)
}

// Dispatcher fans a request out to all agents.
type Dispatcher struct {
	runner      Runner
	agents      []agent.Descriptor
	concurrency int
}

type Option func(*Dispatcher)

// WithConcurrency caps how many agents run at once. Zero means no cap.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.concurrency = n
		}
	}
}

func NewDispatcher(runner Runner, agents []agent.Descriptor, opts ...Option) *Dispatcher {
	d := &Dispatcher{runner: runner, agents: agents}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Agents lists the dispatched agents as announced in the init event.
func (d *Dispatcher) Agents() []AgentInfo {
	infos := make([]AgentInfo, 0, len(d.agents))
	for _, a := range d.agents {
		infos = append(infos, AgentInfo{Name: a.Name, DisplayName: a.DisplayName})
	}
	return infos
}

// Dispatch emits init, runs every agent concurrently forwarding their
// progress, emits one result per agent as it settles and finally done.
//
// A failing agent never cancels its peers. If the sink fails, later writes
// are dropped while the runs finish; the first sink error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, meta RequestMeta, sink Sink) error {
	out := &stream{sink: sink}
	userContext := BuildContext(meta)

	out.send(EventInit, d.Agents())

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for _, desc := range d.agents {
		g.Go(func() error {
			out.send(EventResult, d.run(ctx, desc, userContext, out))
			return nil
		})
	}
	_ = g.Wait()

	out.send(EventDone, Done{Message: doneMessage})
	return out.err
}

func (d *Dispatcher) run(ctx context.Context, desc agent.Descriptor, userContext string, out *stream) (res Result) {
	res = Result{Agent: desc.Name, DisplayName: desc.DisplayName}
	defer func() {
		if p := recover(); p != nil {
			log.Error("agent %s panicked: %v", desc.Name, p)
			res.Status = StatusError
			res.Data = nil
			res.Error = fmt.Sprintf("agent panicked: %v", p)
		}
	}()

	text, err := d.runner.Run(ctx, desc, userContext, func(ev agent.ProgressEvent) {
		out.send(EventProgress, ev)
	})
	if err != nil {
		log.Error("agent %s failed: %v", desc.Name, err)
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	res.Status = StatusSuccess
	res.Data = Normalize(text)
	return res
}

// stream serializes writes to a Sink and stops writing after the first
// failure.
type stream struct {
	mu   sync.Mutex
	sink Sink
	err  error
}

func (s *stream) send(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.sink.Send(event, data); err != nil {
		log.Debug("stream closed while sending %s: %v", event, err)
		s.err = err
	}
}
