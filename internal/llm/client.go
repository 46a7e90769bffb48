package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/smart-ai-memory/empathy-refine/internal/logging"
)

// ClientConfig configures the HTTP chat client.
type ClientConfig struct {
	// BaseURL of an OpenAI-compatible chat API. Empty means the
	// public OpenAI endpoint.
	BaseURL string
	// APIKey for bearer auth. Empty makes every call ErrUnavailable
	// without dialing.
	APIKey string
	// Model requested from the service.
	Model string
}

// Client is an HTTP Generator speaking the OpenAI-compatible
// /chat/completions shape. Responses are size-capped and calls are
// deadline-bounded; both violations surface as the generic sentinel
// errors so callers fall back uniformly.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewClient creates an HTTP generation client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines come from the context; the transport
		// timeout is a backstop.
		httpClient: &http.Client{Timeout: DefaultTimeout + 10*time.Second},
		logger:     logging.NewModuleLogger("llm"),
	}
}

// Generate sends the transcript and returns the next assistant reply.
func (c *Client) Generate(ctx context.Context, messages []Message, opts Options) (*Reply, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: opts.SystemPrompt}}, messages...)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.logger.Debug("generation request", "url", url, "model", c.cfg.Model, "messages", len(messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMalformed, resp.StatusCode)
	}

	// Read one byte past the cap to distinguish "exactly at the limit"
	// from "over it".
	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformed, MaxResponseBytes)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformed)
	}

	c.logger.Debug("generation reply",
		"model", parsed.Model,
		"input_tokens", parsed.Usage.PromptTokens,
		"output_tokens", parsed.Usage.CompletionTokens,
	)

	return &Reply{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		Model:        parsed.Model,
	}, nil
}
