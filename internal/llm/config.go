package llm

import (
	"fmt"
	"time"
)

const (
	DefaultAPIURL     = "https://api.anthropic.com"
	DefaultModel      = "claude-haiku-4-5-20251001"
	DefaultMaxTokens  = 1024
	DefaultAPIVersion = "2023-06-01"
	DefaultTimeout    = 60 * time.Second
)

// Config holds the configuration for the Anthropic messages client.
//
// Environment Variables (see internal/config):
// - ANTHROPIC_API_KEY: API key (required to send)
// - ANTHROPIC_API_URL: API base URL (default: https://api.anthropic.com)
// - LLM_MODEL: Model name (default: claude-haiku-4-5-20251001)
// - LLM_MAX_TOKENS: Max tokens per turn (default: 1024)
// - LLM_TIMEOUT: Per-turn transport timeout (default: 60s)
type Config struct {
	APIKey     string        `json:"-"`
	APIURL     string        `json:"api_url"`
	APIVersion string        `json:"api_version"`
	Model      string        `json:"model"`
	MaxTokens  int           `json:"max_tokens"`
	Timeout    time.Duration `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoCredential
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for a messages API request
func (c *Config) GetHeaders() map[string]string {
	version := c.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	return map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": version,
		"content-type":      "application/json",
	}
}
