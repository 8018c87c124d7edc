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

// Package extract coordinates multi-source context extraction. It fans
// attachments and links out to the PDF, OCR and scraping adapters on a
// bounded worker pool, bounds each result, and joins them back in input
// order. A failing adapter degrades to an empty result for that one item;
// failures never propagate past this package.
package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/aura/log"
)

const (
	// pdfTextLimit caps extracted PDF text per attachment.
	pdfTextLimit = 12000
	// mimeTypePDF marks attachments routed to the PDF extractor.
	mimeTypePDF = "application/pdf"
	// mimeTypeImagePrefix marks attachments routed to the OCR engine.
	mimeTypeImagePrefix = "image/"

	// defaultParallelism is the default extraction worker pool size.
	defaultParallelism = 4
	// defaultCallTimeout bounds a single adapter call.
	defaultCallTimeout = 10 * time.Second
)

// Attachment is one client-supplied file, already base64-decoded. It lives
// only for the duration of a single request.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Result is the normalized output of one adapter call.
type Result struct {
	// Label identifies the source, e.g. `PDF Document "report.pdf"`.
	Label string
	// Text is the extracted text; empty means the item contributed nothing.
	Text string
	// SizeCapped reports whether Text was truncated to a limit.
	SizeCapped bool
}

// PDFExtractor extracts plain text from PDF bytes.
type PDFExtractor interface {
	Extract(data []byte) (string, error)
}

// OCREngine recognizes text in image bytes.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// URLScraper fetches a URL and returns bounded plain text plus whether the
// bound was applied. Scrapers report failure as an in-band marker string
// rather than an error.
type URLScraper interface {
	Scrape(ctx context.Context, url string) (string, bool)
}

// config holds the configuration for the coordinator.
type config struct {
	parallelism int
	callTimeout time.Duration
}

// Option is a functional option for configuring the coordinator.
type Option func(*config)

// WithParallelism sets the extraction worker pool size.
func WithParallelism(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithCallTimeout sets the per-adapter-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// Coordinator fans extraction work out to the adapters and assembles the
// per-channel context strings.
type Coordinator struct {
	pdf     PDFExtractor
	ocr     OCREngine
	scraper URLScraper

	pool        *ants.Pool
	callTimeout time.Duration
}

// New creates a coordinator over the given adapters. A nil adapter disables
// its source; items routed to it degrade to empty results.
func New(pdf PDFExtractor, ocr OCREngine, scraper URLScraper, opts ...Option) (*Coordinator, error) {
	c := &config{
		parallelism: defaultParallelism,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	pool, err := ants.NewPool(c.parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction worker pool: %w", err)
	}

	return &Coordinator{
		pdf:         pdf,
		ocr:         ocr,
		scraper:     scraper,
		pool:        pool,
		callTimeout: c.callTimeout,
	}, nil
}

// Close releases the worker pool.
func (c *Coordinator) Close() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Extract runs every attachment and link extraction concurrently, joins the
// results, and returns the file and URL context channels. Concatenation
// order within each channel follows input order exactly regardless of
// completion order.
func (c *Coordinator) Extract(
	ctx context.Context,
	attachments []Attachment,
	links []string,
) (fileContext, urlContext string) {
	fileResults := make([]Result, len(attachments))
	linkResults := make([]Result, len(links))

	var wg sync.WaitGroup
	for i := range attachments {
		i := i
		c.submit(&wg, func() {
			fileResults[i] = c.extractAttachment(ctx, attachments[i])
		})
	}
	for i := range links {
		i := i
		c.submit(&wg, func() {
			linkResults[i] = c.extractLink(ctx, links[i])
		})
	}
	wg.Wait()

	var fileSB strings.Builder
	for _, r := range fileResults {
		if r.Text == "" {
			continue
		}
		fileSB.WriteString(fmt.Sprintf("\n[Context: %s]\n%s", r.Label, r.Text))
	}
	var urlSB strings.Builder
	for _, r := range linkResults {
		if r.Text == "" {
			continue
		}
		urlSB.WriteString(fmt.Sprintf("\n[Context: %s]\n%s\n", r.Label, r.Text))
	}
	return fileSB.String(), urlSB.String()
}

// submit schedules the task on the pool, falling back to inline execution
// when the pool rejects it. A panicking adapter counts as a failed call.
func (c *Coordinator) submit(wg *sync.WaitGroup, task func()) {
	wg.Add(1)
	wrapped := func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("extraction task panicked: %v", r)
			}
		}()
		task()
	}
	if err := c.pool.Submit(wrapped); err != nil {
		wrapped()
	}
}

// extractAttachment routes one attachment to the adapter matching its MIME
// type. Unsupported types contribute nothing and are not an error.
func (c *Coordinator) extractAttachment(ctx context.Context, att Attachment) Result {
	switch {
	case att.MIMEType == mimeTypePDF:
		return c.extractPDF(att)
	case strings.HasPrefix(att.MIMEType, mimeTypeImagePrefix):
		return c.extractImage(ctx, att)
	default:
		return Result{}
	}
}

func (c *Coordinator) extractPDF(att Attachment) Result {
	if c.pdf == nil {
		return Result{}
	}
	text, err := c.pdf.Extract(att.Data)
	if err != nil {
		log.Errorf("error parsing pdf %q: %v", att.Name, err)
		return Result{}
	}
	bounded, capped := truncate(text, pdfTextLimit)
	return Result{
		Label:      fmt.Sprintf(`PDF Document "%s"`, att.Name),
		Text:       bounded,
		SizeCapped: capped,
	}
}

func (c *Coordinator) extractImage(ctx context.Context, att Attachment) Result {
	if c.ocr == nil {
		return Result{}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	text, err := c.ocr.Recognize(callCtx, att.Data)
	if err != nil {
		log.Errorf("error running ocr on %q: %v", att.Name, err)
		return Result{}
	}
	return Result{
		Label: fmt.Sprintf(`OCR from Image "%s"`, att.Name),
		Text:  text,
	}
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

func (c *Coordinator) extractLink(ctx context.Context, url string) Result {
	if c.scraper == nil {
		return Result{}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	text, capped := c.scraper.Scrape(callCtx, url)
	return Result{
		Label:      fmt.Sprintf("Scraped Content from %s", url),
		Text:       text,
		SizeCapped: capped,
	}
}
