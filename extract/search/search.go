// Package search provides an HTTP client for the DuckDuckGo Instant Answer
// API and formats its output into supplementary context text. The API serves
// factual, encyclopedic information such as entity details and definitions;
// it is not a general web index.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trpc.group/trpc-go/aura/log"
)

const (
	// maxRelatedTopics is the maximum number of related-topic summaries
	// included in formatted output.
	maxRelatedTopics = 3
	// defaultBaseURL is the default base URL for DuckDuckGo Instant Answer API.
	defaultBaseURL = "https://api.duckduckgo.com"
	// defaultUserAgent is the default user agent for HTTP requests.
	defaultUserAgent = "aura-search/1.0"
	// defaultTimeout is the default timeout for HTTP requests.
	defaultTimeout = 10 * time.Second
	// noResultsText is returned when the API produced nothing usable.
	noResultsText = "No relevant search results found."
)

// config holds the configuration for the search client.
type config struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option is a functional option for configuring the search client.
type Option func(*config)

// WithBaseURL sets the base URL for the DuckDuckGo API.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithUserAgent sets the user agent for HTTP requests.
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// Response represents the response from DuckDuckGo Instant Answer API.
type Response struct {
	Heading       string         `json:"Heading"`
	Abstract      string         `json:"Abstract"`
	AbstractText  string         `json:"AbstractText"`
	Answer        string         `json:"Answer"`
	Definition    string         `json:"Definition"`
	RelatedTopics []RelatedTopic `json:"RelatedTopics"`
}

// RelatedTopic represents a related topic from DuckDuckGo.
type RelatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// Client provides methods to interact with DuckDuckGo Instant Answer API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// New creates a new DuckDuckGo client with the provided options.
func New(opts ...Option) *Client {
	c := &config{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Client{
		baseURL:    c.baseURL,
		userAgent:  c.userAgent,
		httpClient: c.httpClient,
	}
}

// Search performs a search query using DuckDuckGo Instant Answer API.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	reqURL := fmt.Sprintf("%s/?q=%s&format=json&no_html=1",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

// ExtraInfo searches for the query and formats the result as an abstract
// plus up to three related-topic summaries. It returns an empty string on
// failure so a broken search never blocks the caller.
func (c *Client) ExtraInfo(ctx context.Context, query string) string {
	resp, err := c.Search(ctx, query)
	if err != nil {
		log.Errorf("error fetching search info: %v", err)
		return ""
	}
	return formatExtraInfo(resp)
}

// formatExtraInfo renders a search response into supplementary context text.
func formatExtraInfo(resp *Response) string {
	var sb strings.Builder
	if resp.AbstractText != "" {
		sb.WriteString(fmt.Sprintf("Abstract: %s\n", resp.AbstractText))
	}
	if len(resp.RelatedTopics) > 0 {
		sb.WriteString("Related Topics Information:\n")
		topics := resp.RelatedTopics
		if len(topics) > maxRelatedTopics {
			topics = topics[:maxRelatedTopics]
		}
		for _, topic := range topics {
			if topic.Text != "" {
				sb.WriteString(fmt.Sprintf("- %s\n", topic.Text))
			}
		}
	}
	if sb.Len() == 0 {
		return noResultsText
	}
	return sb.String()
}
