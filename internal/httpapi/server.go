package httpapi

import (
	"context"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/isp-diag/internal/diagnose"
	"github.com/rs/cors"
)

type diagnoser interface {
	Dispatch(ctx context.Context, meta diagnose.RequestMeta, sink diagnose.Sink) error
	Agents() []diagnose.AgentInfo
}

type analyzer interface {
	Analyze(ctx context.Context, kind string, data any) (any, error)
}

type Server struct {
	diagnoser diagnoser
	analyzer  analyzer

	llmConfigured bool
	corsOrigins   []string

	uiEnabled   bool
	uiStaticDir string

	now func() time.Time

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithLLMConfigured tells the server whether a provider credential is set.
// Without one, analysis requests answer 503.
func WithLLMConfigured(configured bool) Option {
	return func(s *Server) {
		s.llmConfigured = configured
	}
}

// WithCORS allows cross-origin calls from origins. "*" allows any origin.
func WithCORS(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func NewServer(d diagnoser, a analyzer, opts ...Option) *Server {
	s := &Server{
		diagnoser: d,
		analyzer:  a,
		uiEnabled: false,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if len(s.corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(h)
	}
	return withRequestLog(h)
}

// ListenAndServe serves until Shutdown. There is no write timeout because
// diagnosis streams stay open for as long as the agents run.
//
// The http.Server exists from NewServer on, so Shutdown may run before or
// during ListenAndServe; a server shut down first returns
// http.ErrServerClosed without serving.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/diagnose", s.handleDiagnose)
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
