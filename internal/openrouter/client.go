// Package openrouter provides the chat completion client for the OpenRouter
// gateway with:
// - Local request validation before any network call
// - Retries with exponential backoff on transport failures and 5xx
// - Classification of gateway errors into the core taxonomy
// - Structural validation of the response before it reaches callers
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"flashdeck/internal/core"
)

// Defaults applied by New when the corresponding Config field is unset.
const (
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
	DefaultRefererURL = "http://localhost:3000"
	DefaultTitle      = "Flashdeck"
	DefaultMaxRetries = 3
)

// completionsEndpoint is appended to the base URL for every completion call.
const completionsEndpoint = "/chat/completions"

// MetricsRecorder receives the outcome of every completion call.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	ObserveCompletion(outcome string, attempts int, duration time.Duration)
}

// Config holds client configuration, resolved once at construction.
type Config struct {
	// APIKey is the gateway credential. Required.
	APIKey string

	// BaseURL is the gateway API base URL (default: the OpenRouter endpoint).
	BaseURL string

	// RefererURL and Title are attribution metadata sent as the HTTP-Referer
	// and X-Title headers on every call.
	RefererURL string
	Title      string

	// MaxRetries is the number of retry attempts after the first try
	// (default: 3, i.e. 4 total attempts).
	MaxRetries int

	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Metrics receives call outcomes. Optional.
	Metrics MetricsRecorder
}

// Client issues chat completion requests against the gateway.
// A Client is immutable after construction and safe for concurrent use;
// each call owns its own retry counter and shares no mutable state.
type Client struct {
	config     Config
	httpClient *http.Client

	// backoff computes the wait before a retry. Overridable in tests.
	backoff func(attemptIndex int) time.Duration
}

// New creates a new gateway client. A missing API key is a ConfigurationError:
// the credential must always be explicit, never defaulted.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.NewConfigurationError("gateway API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RefererURL == "" {
		cfg.RefererURL = DefaultRefererURL
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{config: cfg, httpClient: httpClient, backoff: backoffDelay}, nil
}

// SetBaseURL updates the base URL. Used by tests to point at a mock gateway.
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// rawResponse is one HTTP exchange's status and fully read body.
type rawResponse struct {
	StatusCode int
	Body       []byte
}

// GetChatCompletion sends a completion request and returns a validated
// response or exactly one classified error. Retries on transport failures
// and 5xx are invisible to the caller except as latency; the backoff wait
// honors ctx so callers bound total latency with context.WithTimeout.
func (c *Client) GetChatCompletion(ctx context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	start := time.Now()
	resp, attempts, err := c.getChatCompletion(ctx, req)
	if c.config.Metrics != nil {
		c.config.Metrics.ObserveCompletion(outcomeLabel(err), attempts, time.Since(start))
	}
	return resp, err
}

func (c *Client) getChatCompletion(ctx context.Context, req *core.CompletionRequest) (*core.CompletionResponse, int, error) {
	// Cheapest failure path: never touch the network for a request the
	// gateway would reject anyway.
	if req == nil || req.Model == "" {
		return nil, 0, core.NewValidationError("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, 0, core.NewValidationError("at least one message is required")
	}

	// Optional fields are pointers with omitempty, so absent tuning
	// parameters never serialize, not even as null.
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, 0, core.NewValidationError("failed to marshal request: " + err.Error())
	}

	resp, attempts, err := c.send(ctx, payload)
	if err != nil {
		return nil, attempts, err
	}

	result, err := classify(resp.StatusCode, resp.Body)
	if err != nil {
		slog.Debug("completion request failed",
			"model", req.Model,
			"status", resp.StatusCode,
			"attempts", attempts,
			"error", err,
		)
		return nil, attempts, err
	}
	return result, attempts, nil
}

// send runs the bounded retry loop. Only transport failures and 5xx are
// retried; 4xx is definitionally non-transient and returns immediately for
// classification. After exhausting retries the last transport failure
// surfaces as a NetworkError, or the last 5xx response is handed back for
// classification as a ServerError.
func (c *Client) send(ctx context.Context, payload []byte) (*rawResponse, int, error) {
	maxAttempts := c.config.MaxRetries + 1

	var lastResp *rawResponse
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, attempt, core.NewNetworkError("request cancelled during backoff: "+ctx.Err().Error(), ctx.Err())
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		resp, err := c.doRequest(ctx, payload)
		if err != nil {
			lastErr = err
			lastResp = nil
			continue
		}
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastResp = resp
			lastErr = nil
			continue
		}
		return resp, attempt + 1, nil
	}

	if lastResp != nil {
		return lastResp, maxAttempts, nil
	}
	return nil, maxAttempts, core.NewNetworkError("request failed after retries: "+lastErr.Error(), lastErr)
}

// doRequest executes a single HTTP attempt and fully reads the body.
func (c *Client) doRequest(ctx context.Context, payload []byte) (*rawResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+completionsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("HTTP-Referer", c.config.RefererURL)
	httpReq.Header.Set("X-Title", c.config.Title)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &rawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// backoffDelay computes the wait before retry attemptIndex (from 0):
// 2^attemptIndex seconds plus a random jitter in [0, 1) seconds.
func backoffDelay(attemptIndex int) time.Duration {
	base := math.Pow(2, float64(attemptIndex))
	jitter := rand.Float64()
	return time.Duration((base + jitter) * float64(time.Second))
}

// outcomeLabel maps a call result to a metrics label.
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := err.(*core.Error); ok {
		return string(appErr.Kind)
	}
	return "error"
}
