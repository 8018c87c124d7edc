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

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPDF struct {
	text string
	err  error
}

func (s stubPDF) Extract(data []byte) (string, error) {
	return s.text, s.err
}

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	return s.text, s.err
}

// echoScraper returns a distinct text per URL, optionally after a delay, so
// ordering under concurrency can be observed.
type echoScraper struct {
	delays map[string]time.Duration
}

func (s echoScraper) Scrape(ctx context.Context, url string) (string, bool) {
	if d, ok := s.delays[url]; ok {
		time.Sleep(d)
	}
	return "content of " + url, false
}

func newTestCoordinator(t *testing.T, pdf PDFExtractor, ocr OCREngine, scraper URLScraper, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(pdf, ocr, scraper, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCoordinator_Extract_PDFTruncation(t *testing.T) {
	longText := strings.Repeat("a", 15000)
	c := newTestCoordinator(t, stubPDF{text: longText}, nil, nil)

	fileContext, urlContext := c.Extract(context.Background(), []Attachment{
		{Name: "big.pdf", MIMEType: "application/pdf", Data: []byte("pdf")},
	}, nil)

	assert.Empty(t, urlContext)
	want := "\n[Context: PDF Document \"big.pdf\"]\n" + strings.Repeat("a", 12000)
	assert.Equal(t, want, fileContext)
}

func TestCoordinator_Extract_PDFTruncationKeepsRuneBoundary(t *testing.T) {
	// One leading ASCII byte misaligns the cap against the 3-byte runes, so
	// a byte-index cut would land mid-rune.
	longText := "a" + strings.Repeat("界", 5000)
	c := newTestCoordinator(t, stubPDF{text: longText}, nil, nil)

	fileContext, _ := c.Extract(context.Background(), []Attachment{
		{Name: "cjk.pdf", MIMEType: "application/pdf", Data: []byte("pdf")},
	}, nil)

	prefix := "\n[Context: PDF Document \"cjk.pdf\"]\n"
	require.True(t, strings.HasPrefix(fileContext, prefix))
	text := fileContext[len(prefix):]
	assert.True(t, utf8.ValidString(text), "truncation split a rune")
	assert.LessOrEqual(t, len(text), 12000)
	assert.True(t, strings.HasPrefix(longText, text))
}

func TestCoordinator_Extract_OCRUncapped(t *testing.T) {
	longText := strings.Repeat("b", 15000)
	c := newTestCoordinator(t, nil, stubOCR{text: longText}, nil)

	fileContext, _ := c.Extract(context.Background(), []Attachment{
		{Name: "scan.png", MIMEType: "image/png", Data: []byte("img")},
	}, nil)

	want := "\n[Context: OCR from Image \"scan.png\"]\n" + longText
	assert.Equal(t, want, fileContext)
}

func TestCoordinator_Extract_UnsupportedMIMESkipped(t *testing.T) {
	c := newTestCoordinator(t, stubPDF{text: "pdf text"}, stubOCR{text: "ocr text"}, nil)

	fileContext, _ := c.Extract(context.Background(), []Attachment{
		{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("hi")},
		{Name: "data.csv", MIMEType: "text/csv", Data: []byte("a,b")},
	}, nil)

	assert.Empty(t, fileContext)
}

func TestCoordinator_Extract_OrderFollowsInput(t *testing.T) {
	// The first link is the slowest; its result must still come first.
	scraper := echoScraper{delays: map[string]time.Duration{
		"https://one.example.com": 50 * time.Millisecond,
	}}
	c := newTestCoordinator(t, nil, nil, scraper, WithParallelism(8))

	links := []string{
		"https://one.example.com",
		"https://two.example.com",
		"https://three.example.com",
	}
	_, urlContext := c.Extract(context.Background(), nil, links)

	var positions []int
	for _, url := range links {
		idx := strings.Index(urlContext, "content of "+url)
		require.NotEqual(t, -1, idx, "missing result for %s", url)
		positions = append(positions, idx)
	}
	assert.True(t, positions[0] < positions[1] && positions[1] < positions[2],
		"results out of input order: %v", positions)
}

func TestCoordinator_Extract_MixedChannelsDoNotInterleave(t *testing.T) {
	c := newTestCoordinator(t, stubPDF{text: "pdf text"}, nil, echoScraper{})

	fileContext, urlContext := c.Extract(context.Background(),
		[]Attachment{{Name: "doc.pdf", MIMEType: "application/pdf", Data: []byte("pdf")}},
		[]string{"https://example.com"},
	)

	assert.Contains(t, fileContext, "PDF Document \"doc.pdf\"")
	assert.NotContains(t, fileContext, "Scraped Content")
	assert.Contains(t, urlContext, "Scraped Content from https://example.com")
	assert.NotContains(t, urlContext, "PDF Document")
}

func TestCoordinator_Extract_AdapterErrorIsolated(t *testing.T) {
	// One bad PDF must not block OCR or links.
	c := newTestCoordinator(t, stubPDF{err: errors.New("corrupt file")}, stubOCR{text: "ocr text"}, echoScraper{})

	fileContext, urlContext := c.Extract(context.Background(),
		[]Attachment{
			{Name: "bad.pdf", MIMEType: "application/pdf", Data: []byte("x")},
			{Name: "scan.jpg", MIMEType: "image/jpeg", Data: []byte("y")},
		},
		[]string{"https://example.com"},
	)

	assert.NotContains(t, fileContext, "bad.pdf")
	assert.Contains(t, fileContext, "OCR from Image \"scan.jpg\"")
	assert.Contains(t, urlContext, "content of https://example.com")
}

type panickingOCR struct{}

func (panickingOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	panic("decoder blew up")
}

func TestCoordinator_Extract_AdapterPanicRecovered(t *testing.T) {
	c := newTestCoordinator(t, stubPDF{text: "pdf text"}, panickingOCR{}, nil)

	fileContext, _ := c.Extract(context.Background(),
		[]Attachment{
			{Name: "scan.png", MIMEType: "image/png", Data: []byte("img")},
			{Name: "doc.pdf", MIMEType: "application/pdf", Data: []byte("pdf")},
		}, nil)

	assert.NotContains(t, fileContext, "OCR from Image")
	assert.Contains(t, fileContext, "PDF Document \"doc.pdf\"")
}

func TestCoordinator_Extract_NilAdapters(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, nil)

	fileContext, urlContext := c.Extract(context.Background(),
		[]Attachment{{Name: "doc.pdf", MIMEType: "application/pdf", Data: []byte("pdf")}},
		[]string{"https://example.com"},
	)
	assert.Empty(t, fileContext)
	assert.Empty(t, urlContext)
}

func TestCoordinator_Extract_ManyItemsBoundedPool(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, echoScraper{}, WithParallelism(2))

	var links []string
	for i := 0; i < 20; i++ {
		links = append(links, fmt.Sprintf("https://site-%02d.example.com", i))
	}
	_, urlContext := c.Extract(context.Background(), nil, links)

	last := -1
	for _, url := range links {
		idx := strings.Index(urlContext, "content of "+url)
		require.NotEqual(t, -1, idx)
		assert.Greater(t, idx, last)
		last = idx
	}
}
