// Package llm is a minimal client for OpenAI-compatible chat completion
// endpoints (Groq, OpenAI, Ollama, vLLM) with function calling.
package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failure response is read.
const maxErrorBody = 64 << 10

// ChatRequest is one completion call.
type ChatRequest struct {
	Messages []Message
	// Tools offered to the model. Empty means the model must answer in text.
	Tools []Tool
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Model        string
	Usage        Usage
	Latency      time.Duration
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client calls the /chat/completions endpoint. Failed calls are not retried.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client from DefaultConfig and opts.
func NewClient(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Configured reports whether the client has a credential.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Chat requests a completion for req.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	start := time.Now()
	lg := zctx.From(ctx)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeChatRequest(e, c.cfg.Model, c.cfg.MaxTokens, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send completion request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := decodeAPIError(resp.StatusCode, body)
		lg.Warn("Completion request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read completion")
	}
	out, err := decodeChatResponse(body)
	if err != nil {
		return nil, err
	}
	out.Latency = time.Since(start)

	lg.Debug("Completion received",
		zap.String("model", out.Model),
		zap.String("finish_reason", out.FinishReason),
		zap.Int("tool_calls", len(out.Message.ToolCalls)),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", out.Latency),
	)
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
