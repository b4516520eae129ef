package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/MimeLyc/isp-diag/internal/diagnose"
	"github.com/MimeLyc/isp-diag/pkg/log"
)

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &eventWriter{ctx: r.Context(), w: w, flusher: flusher}
	meta := s.requestMeta(r)

	// Runs outlive a disconnected client; their output is dropped.
	if err := s.diagnoser.Dispatch(context.WithoutCancel(r.Context()), meta, sink); err != nil {
		log.Info("diagnose stream for %s ended early: %v", meta.ClientIP, err)
	}
}

// eventWriter writes server-sent event frames. Callers serialize Send.
type eventWriter struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *eventWriter) Send(event string, data any) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (s *Server) requestMeta(r *http.Request) diagnose.RequestMeta {
	return diagnose.RequestMeta{
		ClientIP:       clientIP(r),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Time:           s.now(),
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
