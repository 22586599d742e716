// Package litellm implements the proposal generator port against the
// OpenAI-compatible chat completions endpoint of a LiteLLM Proxy.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/port/generator"
	"github.com/Strob0t/devorch/internal/resilience"
)

const (
	backendName = "litellm"

	defaultModel   = "openai/gpt-4o-mini"
	defaultTimeout = 300 * time.Second
)

func init() {
	generator.Register(backendName, func(cfg map[string]string) (generator.Generator, error) {
		return NewFromConfig(cfg)
	})
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	MasterKey string
	Model     string
	Timeout   time.Duration
	Breaker   *resilience.Breaker
}

// Client sends role prompts to LiteLLM and decodes proposals from the replies.
type Client struct {
	baseURL    string
	masterKey  string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var (
	_ generator.Generator = (*Client)(nil)
	_ generator.Pinger    = (*Client)(nil)
)

// NewClient creates a LiteLLM generator.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		masterKey: opts.MasterKey,
		model:     opts.Model,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		breaker: opts.Breaker,
	}
}

// NewFromConfig builds a Client from registry configuration keys: url,
// master_key, model, timeout, breaker_max_failures and breaker_timeout.
func NewFromConfig(cfg map[string]string) (*Client, error) {
	if cfg["url"] == "" {
		return nil, fmt.Errorf("litellm: url is required")
	}
	opts := Options{BaseURL: cfg["url"], MasterKey: cfg["master_key"], Model: cfg["model"]}
	if v := cfg["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("litellm: timeout: %w", err)
		}
		opts.Timeout = d
	}
	if v := cfg["breaker_max_failures"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("litellm: breaker_max_failures: %w", err)
		}
		wait := 30 * time.Second
		if t := cfg["breaker_timeout"]; t != "" {
			if wait, err = time.ParseDuration(t); err != nil {
				return nil, fmt.Errorf("litellm: breaker_timeout: %w", err)
			}
		}
		opts.Breaker = resilience.NewBreaker(n, wait)
	}
	return NewClient(opts), nil
}

// Name returns "litellm".
func (c *Client) Name() string { return backendName }

// Model returns the model requests are sent to.
func (c *Client) Model() string { return c.model }

// HealthReport is the body of LiteLLM's /health endpoint.
type HealthReport struct {
	HealthyCount   int `json:"healthy_count"`
	UnhealthyCount int `json:"unhealthy_count"`
}

// Ping checks the proxy's /health endpoint. A proxy that reports only
// unhealthy model endpoints counts as unavailable.
func (c *Client) Ping(ctx context.Context) error {
	data, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", generator.ErrUnavailable, err)
	}
	var report HealthReport
	if json.Unmarshal(data, &report) == nil && report.HealthyCount == 0 && report.UnhealthyCount > 0 {
		return fmt.Errorf("%w: litellm reports %d unhealthy endpoints", generator.ErrUnavailable, report.UnhealthyCount)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for a proposal in JSON form.
func (c *Client) Generate(ctx context.Context, req generator.Request) (*proposal.Proposal, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Role)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	p, err := DecodeProposal(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	p.Role = string(req.Role)
	p.TaskID = req.TaskID
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["model"] = c.model
	return p, nil
}

// DecodeProposal extracts a proposal from a model reply. The JSON object may
// be wrapped in a markdown code fence or surrounded by prose.
func DecodeProposal(content string) (*proposal.Proposal, error) {
	raw := strings.TrimSpace(content)
	if i := strings.Index(raw, "```"); i >= 0 {
		rest := raw[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		raw = strings.TrimSpace(rest)
	}
	start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("decode proposal: no JSON object in reply")
	}

	var p proposal.Proposal
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	p.Normalize()
	return &p, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.ExecuteContext(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
