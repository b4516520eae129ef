package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/isp-diag/internal/agent"
	"github.com/MimeLyc/isp-diag/internal/agents"
	"github.com/MimeLyc/isp-diag/internal/analyzer"
	"github.com/MimeLyc/isp-diag/internal/config"
	"github.com/MimeLyc/isp-diag/internal/diagnose"
	"github.com/MimeLyc/isp-diag/internal/httpapi"
	"github.com/MimeLyc/isp-diag/internal/llm"
	"github.com/MimeLyc/isp-diag/internal/llm/gemini"
	"github.com/MimeLyc/isp-diag/internal/probe"
	"github.com/MimeLyc/isp-diag/internal/selfcheck"
	"github.com/MimeLyc/isp-diag/pkg/icron"
	"github.com/MimeLyc/isp-diag/pkg/log"
	"github.com/robfig/cron/v3"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	config.LoadDotEnv(".env")

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		log.Fatal("Failed to set up logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create LLM provider: %v", err)
	}
	if !cfg.HasCredential() {
		log.Warn("No %s credential set; diagnostics will report errors and /api/analyze returns 503", cfg.LLM.Provider)
	}

	prober := probe.New(probe.WithTimeout(cfg.Probe.Timeout))
	runtime := agent.NewRuntime(provider,
		agent.WithMaxTurns(cfg.Agent.MaxTurns),
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
		agent.WithModel(cfg.LLM.Model),
	)
	dispatcher := diagnose.NewDispatcher(runtime, agents.All(prober),
		diagnose.WithConcurrency(cfg.Agent.Concurrency))

	httpSrv := httpapi.NewServer(dispatcher, analyzer.New(runtime),
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithCORS(cfg.HTTP.CORSOrigins),
		httpapi.WithLLMConfigured(cfg.HasCredential()),
	)

	engine := cron.New(cron.WithParser(icron.Parser))
	selfCheck := selfcheck.New(dispatcher, cfg.SelfCheck.CronExpr, engine)

	if err := runWithComponents(ctx, cfg, selfCheck, engine, httpSrv); err != nil {
		log.Fatal("Server stopped: %v", err)
	}
}

// runWithComponents schedules background jobs, serves HTTP and shuts both
// down once ctx is cancelled or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.HTTP.Addr())
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newProvider picks the LLM backend. Without a credential it returns a
// provider that fails every call so the server still starts.
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	if !cfg.HasCredential() {
		return llm.Unconfigured{}, nil
	}

	var (
		p   llm.Provider
		err error
	)
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		p, err = gemini.New(ctx, cfg.LLM.GeminiAPIKey, gemini.WithModel(cfg.LLM.Model))
	default:
		p, err = llm.NewClient(&llm.Config{
			APIKey:    cfg.LLM.AnthropicAPIKey,
			APIURL:    cfg.LLM.AnthropicAPIURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		})
	}
	if err != nil {
		return nil, err
	}
	return llm.WithTransportRetry(p, uint(cfg.LLM.TransportRetries), 0), nil
}

func setupLogging(cfg config.LogConfig) (func(), error) {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return func() { _ = log.GetLogger().Sync() }, nil
	}

	fl, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fl.Logger)
	return func() { _ = fl.Close() }, nil
}
