package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is an Anthropic messages API client.
// Thread-safe for concurrent use; it keeps no per-call state.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The caller's client
// timeout then governs each turn.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new client with the given configuration.
// Returns ErrNoCredential (wrapped) when the API key is missing.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Send performs one messages API turn. It never retries.
func (c *Client) Send(ctx context.Context, req Request) (*Reply, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	payload := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Tools:     req.Tools,
		Messages:  encodeMessages(req.Messages),
	}

	body, err := c.makeRequest(ctx, http.MethodPost, "/v1/messages", payload)
	if err != nil {
		return nil, err
	}
	return decodeReply(body)
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewErrorWithCause(KindTransport, "failed to make request", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewErrorWithCause(KindTransport, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError(resp.StatusCode, responseBody)
	}
	return responseBody, nil
}

func parseHTTPError(status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Type + ": " + er.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := NewError(KindProvider, msg)
	e.StatusCode = status
	return e
}

// Unconfigured stands in for a provider when no credential is set. Every
// Send fails with ErrNoCredential so agents report an error result instead
// of the process refusing to start.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, Request) (*Reply, error) {
	return nil, NewErrorWithCause(KindProvider, "no provider credential", ErrNoCredential)
}
