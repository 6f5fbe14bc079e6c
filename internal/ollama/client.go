// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/inkwell/internal/prompt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type so errors.Is(err, ErrTimeout) works
// for any timeout, whatever its message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.Cause == nil
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeTransport is a network or HTTP failure during generation.
	ErrTypeTransport
	// ErrTypeConfiguration is a failure to reach the server while listing
	// models, usually a wrong server URL.
	ErrTypeConfiguration
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "transport"
	case ErrTypeConfiguration:
		return "configuration"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks.
var (
	ErrTransport     = &ClientError{Type: ErrTypeTransport}
	ErrConfiguration = &ClientError{Type: ErrTypeConfiguration}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is the address a stock Ollama install listens on.
const DefaultBaseURL = "http://localhost:11434"

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434)
	BaseURL string

	// Timeout bounds a whole request including reading the body
	// (default: 2m). Zero after defaults means no timeout.
	Timeout time.Duration

	// RequestsPerSecond limits generation calls. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default: 1 when limiting is on).
	Burst int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultBaseURL,
		Timeout: 2 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the /api/generate and /api/tags endpoints.
//
// The Client is safe for concurrent use; independent invocations share
// nothing but the HTTP connection pool and the optional rate limiter.
//
// Example:
//
//	client := ollama.NewClient("http://localhost:11434")
//	text, err := client.Generate(ctx, composed)
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for baseURL with default settings.
func NewClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	// Fill in defaults for any zero values
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{config: cfg, httpClient: httpClient}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// BaseURL returns the server address this client targets.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the server answers on its base URL.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConfiguration, Message: "invalid server URL", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyDoError(err, ErrTypeConfiguration, "server unreachable at "+c.config.BaseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConfiguration,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all installed models. Every failure is reported as a
// configuration error and is never retried.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if _, err := url.ParseRequestURI(c.config.BaseURL); err != nil {
		return nil, &ClientError{Type: ErrTypeConfiguration, Message: "invalid server URL " + c.config.BaseURL, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConfiguration, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConfiguration, Message: "cannot reach Ollama at " + c.config.BaseURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeConfiguration,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeConfiguration, Message: "failed to decode model list", Cause: err}
	}
	return result.Models, nil
}

// ModelNames lists installed models by display name (":latest" stripped).
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return DisplayNames(models), nil
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends the composed request and decodes the complete body.
// It buffers the whole response before decoding, so a malformed line
// anywhere fails the call without yielding partial text.
func (c *Client) Generate(ctx context.Context, req prompt.ComposedRequest) (string, error) {
	resp, err := c.postGenerate(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyDoError(err, ErrTypeTransport, "failed to read response")
	}
	return DecodeResponse(body)
}

// GenerateStream sends the composed request and decodes the body as it
// arrives, calling callback for each event. The returned text is the same
// as Generate would produce; on a malformed line it returns "" and the error.
func (c *Client) GenerateStream(ctx context.Context, req prompt.ComposedRequest, callback StreamCallback) (string, StreamStats, error) {
	resp, err := c.postGenerate(ctx, req)
	if err != nil {
		return "", StreamStats{}, err
	}
	defer resp.Body.Close()

	reader := NewStreamReader(resp.Body)
	if err := reader.Process(ctx, callback); err != nil {
		if IsMalformedStream(err) {
			return "", reader.Stats(), err
		}
		return "", reader.Stats(), classifyDoError(err, ErrTypeTransport, "stream interrupted")
	}
	return reader.Text(), reader.Stats(), nil
}

func (c *Client) postGenerate(ctx context.Context, composed prompt.ComposedRequest) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ClientError{Type: ErrTypeTransport, Message: "rate limiter", Cause: err}
		}
	}

	body, err := json.Marshal(NewGenerateRequest(composed))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyDoError(err, ErrTypeTransport, "generation request failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errType := ErrTypeTransport
		if resp.StatusCode == http.StatusNotFound {
			errType = ErrTypeModelNotFound
		}
		var ollamaErr OllamaError
		if err := json.NewDecoder(resp.Body).Decode(&ollamaErr); err == nil && ollamaErr.Error != "" {
			return nil, &ClientError{Type: errType, Message: ollamaErr.Error}
		}
		return nil, &ClientError{Type: errType, Message: "generate request failed: " + resp.Status}
	}
	return resp, nil
}

// classifyDoError turns an http.Client error into a ClientError, keeping
// timeouts distinct.
func classifyDoError(err error, fallback ErrorType, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: fallback, Message: message, Cause: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTransport reports whether err is a failure during generation: network,
// HTTP status, timeout, or unknown model.
func IsTransport(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrTypeTransport, ErrTypeTimeout, ErrTypeModelNotFound:
		return true
	}
	return false
}

// IsConfiguration reports whether err came from model listing.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsModelNotFound reports whether err means the model is not installed.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}
