// Package gateway is the sole point of contact with the external chat
// completion service. It owns the credential, the request timeout, and a
// deterministic offline fallback: any auth, network, or HTTP failure is
// logged and answered locally instead of retried, so a missing credential or
// a flaky upstream never stalls a pipeline run.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.together.xyz/v1"
	DefaultModel   = "meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8"

	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 2000
)

// AuthError means no credential is configured. The gateway recovers from it
// internally via the offline fallback; it is never surfaced to callers.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "gateway auth: " + e.Reason
}

// NetworkError wraps a transport failure or a non-success HTTP status. Like
// AuthError it is recovered at the gateway boundary, logged and never
// retried.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway request failed: status %d", e.Status)
	}
	return fmt.Sprintf("gateway request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	Timeout     time.Duration
	Logger      *zap.Logger
}

type Client struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	httpClient  *http.Client
	log         *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         cfg.Logger.Named("gateway"),
	}
}

// GenerateOpts tunes a single completion call.
type GenerateOpts struct {
	System      string
	ImageRefs   []string
	Temperature float64
	MaxTokens   int
}

// Generate sends one completion request and returns the raw response text.
// With no credential configured it returns the keyword fallback immediately,
// without a wire call. Transport failures and non-2xx statuses take the same
// fallback path with zero retries. Only context cancellation propagates as
// an error.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error) {
	if c.apiKey == "" {
		err := &AuthError{Reason: "no API key configured"}
		c.log.Warn("using offline fallback", zap.Error(err))
		return c.fallbackFor(prompt, opts), nil
	}

	req := c.buildRequest(prompt, opts, false)
	raw, err := c.post(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.Warn("request failed, using offline fallback",
			zap.String("model", req.Model),
			zap.Error(err))
		return c.fallbackFor(prompt, opts), nil
	}
	return raw, nil
}

func (c *Client) fallbackFor(prompt string, opts GenerateOpts) string {
	if len(opts.ImageRefs) > 0 {
		return FallbackImageAnalysis()
	}
	return FallbackAnswer(prompt)
}

func (c *Client) buildRequest(prompt string, opts GenerateOpts, stream bool) ChatRequest {
	model := c.model
	var user ChatMessage
	if len(opts.ImageRefs) > 0 {
		model = c.visionModel
		user = VisionMessage(prompt, opts.ImageRefs)
	} else {
		user = TextMessage("user", prompt)
	}
	var msgs []ChatMessage
	if opts.System != "" {
		msgs = append(msgs, TextMessage("system", opts.System))
	}
	msgs = append(msgs, user)

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

func (c *Client) post(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &NetworkError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &NetworkError{Err: errors.New("response has no choices")}
	}
	if parsed.Usage != nil {
		c.log.Debug("completion ok",
			zap.String("model", req.Model),
			zap.Int("totalTokens", parsed.Usage.TotalTokens))
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, req ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		c.log.Warn("non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return nil, &NetworkError{Status: resp.StatusCode}
	}
	return resp, nil
}
