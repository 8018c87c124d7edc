// Package ocr defines the OCR engine consumed by the extraction pipeline
// and an HTTP client implementation for a remote recognition service.
// Character recognition itself is an external concern; this package only
// transports images out and text back.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// defaultTimeout is the default timeout for recognition requests.
	defaultTimeout = 15 * time.Second
	// defaultUserAgent is the default user agent for HTTP requests.
	defaultUserAgent = "aura-ocr/1.0"
)

// Engine recognizes text in an image. Implementations return an error on
// failure; callers degrade to empty text rather than propagating it.
type Engine interface {
	// Recognize returns the text found in the given image bytes.
	Recognize(ctx context.Context, image []byte) (string, error)
}

// config holds the configuration for the HTTP engine.
type config struct {
	httpClient *http.Client
	userAgent  string
}

// Option is a functional option for configuring the HTTP engine.
type Option func(*config)

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the user agent for HTTP requests.
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.userAgent = userAgent
	}
}

// recognizeRequest is the JSON body sent to the recognition endpoint.
type recognizeRequest struct {
	Image string `json:"image"` // base64-encoded image bytes
}

// recognizeResponse is the JSON body returned by the recognition endpoint.
type recognizeResponse struct {
	Text string `json:"text"`
}

// HTTPEngine calls a remote OCR service over HTTP. The service accepts a
// JSON body {"image": "<base64>"} and answers {"text": "<recognized>"}.
type HTTPEngine struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

var _ Engine = (*HTTPEngine)(nil)

// NewHTTPEngine creates an engine that posts images to the given endpoint.
func NewHTTPEngine(endpoint string, opts ...Option) *HTTPEngine {
	c := &config{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &HTTPEngine{
		endpoint:   endpoint,
		userAgent:  c.userAgent,
		httpClient: c.httpClient,
	}
}

// Recognize implements the Engine interface.
func (e *HTTPEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	payload, err := json.Marshal(recognizeRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var response recognizeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return response.Text, nil
}
