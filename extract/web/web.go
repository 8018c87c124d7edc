//
// Tencent is pleased to support the open source community by making aura available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package web scrapes web pages into bounded plain text.
package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"trpc.group/trpc-go/aura/log"
)

const (
	// defaultMaxChars caps the scraped text length.
	defaultMaxChars = 10000
	// defaultTimeout bounds a single scrape call.
	defaultTimeout = 10 * time.Second
	// defaultUserAgent is sent with every request; some sites refuse
	// requests without a browser-like agent.
	defaultUserAgent = "Mozilla/5.0"
	// maxBodyBytes limits how much of the response body is read.
	maxBodyBytes = 2 << 20
)

// multiSpacePattern collapses runs of whitespace in extracted text.
var multiSpacePattern = regexp.MustCompile(`\s\s+`)

// config holds the configuration for the scraper.
type config struct {
	httpClient *http.Client
	userAgent  string
	maxChars   int
}

// Option is a functional option for configuring the scraper.
type Option func(*config)

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithUserAgent sets the user agent for HTTP requests.
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.userAgent = userAgent
	}
}

// WithMaxChars sets the scraped text cap.
func WithMaxChars(maxChars int) Option {
	return func(c *config) {
		if maxChars > 0 {
			c.maxChars = maxChars
		}
	}
}

// Scraper fetches a URL and reduces its HTML body to whitespace-collapsed
// plain text, capped at a fixed number of characters.
type Scraper struct {
	httpClient *http.Client
	userAgent  string
	maxChars   int
}

// New creates a new scraper with the given options.
func New(opts ...Option) *Scraper {
	c := &config{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		maxChars:   defaultMaxChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Scraper{
		httpClient: c.httpClient,
		userAgent:  c.userAgent,
		maxChars:   c.maxChars,
	}
}

// Scrape fetches the URL and returns its visible text, whitespace-collapsed
// and capped. The second return value reports whether the cap was applied.
// On any failure it returns an error-marker string instead of failing; the
// caller treats the result as opaque context text either way.
func (s *Scraper) Scrape(ctx context.Context, url string) (string, bool) {
	text, err := s.scrape(ctx, url)
	if err != nil {
		log.Errorf("error extracting from url %s: %v", url, err)
		return fmt.Sprintf("Error fetching URL content: %s", url), false
	}
	return truncate(text, s.maxChars)
}

// truncate cuts s to at most limit bytes without splitting a multibyte rune
// at the boundary.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit], true
}

func (s *Scraper) scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	collectText(doc, &sb)
	text := strings.TrimSpace(multiSpacePattern.ReplaceAllString(sb.String(), " "))
	return text, nil
}

// collectText walks the DOM and gathers text nodes, skipping script and
// style subtrees.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
