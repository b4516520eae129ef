package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/isp-diag/pkg/icron"
	"github.com/MimeLyc/isp-diag/pkg/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values come from defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables.
//
// Environment Variables:
// HTTP:
// - PORT: listen port (default: 3000)
// - UI_STATIC_DIR: static UI directory (default: public)
// - UI_ENABLED: serve the static UI (default: true)
// - CORS_ORIGINS: comma separated allowed origins, empty disables CORS (default: *)
//
// LLM:
// - LLM_PROVIDER: anthropic or gemini (default: anthropic)
// - ANTHROPIC_API_KEY: Anthropic credential
// - ANTHROPIC_API_URL: Messages API base URL (default: https://api.anthropic.com)
// - GEMINI_API_KEY: Gemini credential
// - LLM_MODEL: model name (default: claude-haiku-4-5-20251001 or gemini-2.5-flash)
// - LLM_MAX_TOKENS: max tokens per turn (default: 1024)
// - LLM_TIMEOUT: per-turn transport timeout, "60s" or seconds (default: 60s)
// - LLM_TRANSPORT_RETRIES: retries of transport failures (default: 0)
//
// Agents and probes:
// - AGENT_MAX_TURNS: assistant turns per agent run (default: 10)
// - AGENT_CONCURRENCY: agents running at once, 0 for all (default: 0)
// - PROBE_TIMEOUT: per-request probe timeout (default: 5s)
//
// Other:
// - SELFCHECK_CRON: schedule of the self diagnosis, empty disables it
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: append logs to this file instead of stdout
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Agent     AgentConfig     `yaml:"agent" json:"agent"`
	Probe     ProbeConfig     `yaml:"probe" json:"probe"`
	SelfCheck SelfCheckConfig `yaml:"selfcheck" json:"selfcheck"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

type HTTPConfig struct {
	Port        int      `yaml:"port" json:"port"`
	UIStaticDir string   `yaml:"ui_static_dir" json:"ui_static_dir"`
	UIEnabled   bool     `yaml:"ui_enabled" json:"ui_enabled"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// Addr is the listen address for Port.
func (c HTTPConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderAnthropic: "claude-haiku-4-5-20251001",
	ProviderGemini:    "gemini-2.5-flash",
}

type LLMConfig struct {
	Provider         string        `yaml:"provider" json:"provider"`
	AnthropicAPIKey  string        `yaml:"anthropic_api_key" json:"-"`
	AnthropicAPIURL  string        `yaml:"anthropic_api_url" json:"anthropic_api_url"`
	GeminiAPIKey     string        `yaml:"gemini_api_key" json:"-"`
	Model            string        `yaml:"model" json:"model"`
	MaxTokens        int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	TransportRetries int           `yaml:"transport_retries" json:"transport_retries"`
}

type AgentConfig struct {
	MaxTurns    int `yaml:"max_turns" json:"max_turns"`
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type SelfCheckConfig struct {
	CronExpr string `yaml:"cron" json:"cron"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:        3000,
			UIStaticDir: "public",
			UIEnabled:   true,
			CORSOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			Provider:        ProviderAnthropic,
			AnthropicAPIURL: "https://api.anthropic.com",
			Model:           "claude-haiku-4-5-20251001",
			MaxTokens:       1024,
			Timeout:         60 * time.Second,
		},
		Agent: AgentConfig{
			MaxTurns: 10,
		},
		Probe: ProbeConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads variables from the given .env files without overriding
// ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warn("Failed to load %s: %v", p, err)
		}
	}
}

// NewFromEnv creates a new Config instance from defaults, the optional
// CONFIG_FILE overlay, environment variables and options, in that order.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := Default()

	if path := getEnvString("CONFIG_FILE", ""); path != "" {
		if err := config.overlayFile(path); err != nil {
			return nil, err
		}
	}

	config.HTTP.Port = getEnvInt("PORT", config.HTTP.Port)
	config.HTTP.UIStaticDir = getEnvString("UI_STATIC_DIR", config.HTTP.UIStaticDir)
	config.HTTP.UIEnabled = getEnvBool("UI_ENABLED", config.HTTP.UIEnabled)
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		config.HTTP.CORSOrigins = splitList(v)
	}

	config.LLM.Provider = strings.ToLower(getEnvString("LLM_PROVIDER", config.LLM.Provider))
	config.LLM.AnthropicAPIKey = getEnvString("ANTHROPIC_API_KEY", config.LLM.AnthropicAPIKey)
	config.LLM.AnthropicAPIURL = getEnvString("ANTHROPIC_API_URL", config.LLM.AnthropicAPIURL)
	config.LLM.GeminiAPIKey = getEnvString("GEMINI_API_KEY", config.LLM.GeminiAPIKey)
	config.LLM.Model = getEnvString("LLM_MODEL", config.LLM.Model)
	config.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", config.LLM.MaxTokens)
	config.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", config.LLM.Timeout)
	config.LLM.TransportRetries = getEnvInt("LLM_TRANSPORT_RETRIES", config.LLM.TransportRetries)

	config.Agent.MaxTurns = getEnvInt("AGENT_MAX_TURNS", config.Agent.MaxTurns)
	config.Agent.Concurrency = getEnvInt("AGENT_CONCURRENCY", config.Agent.Concurrency)
	config.Probe.Timeout = getEnvDuration("PROBE_TIMEOUT", config.Probe.Timeout)
	config.SelfCheck.CronExpr = getEnvString("SELFCHECK_CRON", config.SelfCheck.CronExpr)
	config.Log.Level = getEnvString("LOG_LEVEL", config.Log.Level)
	config.Log.File = getEnvString("LOG_FILE", config.Log.File)

	if config.LLM.Model == "" {
		config.LLM.Model = defaultModels[config.LLM.Provider]
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: port=%d provider=%s model=%s credential=%t max_turns=%d selfcheck=%q",
		config.HTTP.Port, config.LLM.Provider, config.LLM.Model, config.HasCredential(),
		config.Agent.MaxTurns, config.SelfCheck.CronExpr)
	return config, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// HasCredential reports whether the selected provider has an API key.
// A missing key is not a configuration error; analysis is just unavailable.
func (c *Config) HasCredential() bool {
	switch c.LLM.Provider {
	case ProviderGemini:
		return c.LLM.GeminiAPIKey != ""
	default:
		return c.LLM.AnthropicAPIKey != ""
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	var errs []error
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderAnthropic, ProviderGemini, c.LLM.Provider))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be positive"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT must be positive"))
	}
	if c.LLM.TransportRetries < 0 {
		errs = append(errs, errors.New("LLM_TRANSPORT_RETRIES must not be negative"))
	}
	if c.Agent.MaxTurns < 1 {
		errs = append(errs, errors.New("AGENT_MAX_TURNS must be positive"))
	}
	if c.Agent.Concurrency < 0 {
		errs = append(errs, errors.New("AGENT_CONCURRENCY must not be negative"))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, errors.New("PROBE_TIMEOUT must be positive"))
	}
	if c.SelfCheck.CronExpr != "" {
		if err := icron.Validate(c.SelfCheck.CronExpr); err != nil {
			errs = append(errs, fmt.Errorf("SELFCHECK_CRON: %w", err))
		}
	}
	return errors.Join(errs...)
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn("Ignoring invalid %s=%q", key, value)
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
