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

// Package pipeline assembles multi-source context into a conversation and
// dispatches it to a language model. It owns the trigger heuristic, the
// context injector and the end-to-end request orchestration.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"trpc.group/trpc-go/aura/extract"
	"trpc.group/trpc-go/aura/model"
	"trpc.group/trpc-go/aura/session"
)

// supplementaryIntelLabel wraps non-empty search output.
const supplementaryIntelLabel = "\n[Supplementary Intelligence]\n"

// Extractor produces the file and URL context channels for a request.
type Extractor interface {
	Extract(ctx context.Context, attachments []extract.Attachment, links []string) (fileContext, urlContext string)
}

// SearchProvider answers a free-text query with supplementary information.
// It returns an empty string on failure, never an error.
type SearchProvider interface {
	ExtraInfo(ctx context.Context, query string) string
}

// Dispatcher issues the streaming completion call for the assembled
// conversation.
type Dispatcher interface {
	Dispatch(ctx context.Context, messages []model.Message, deepThinking bool) (<-chan *model.Response, error)
}

// Options are the per-request client options with their defaults applied.
type Options struct {
	// WebSearch gates whether the search provider may be consulted.
	WebSearch bool
	// DeepThinking selects the analytical model profile.
	DeepThinking bool
	// Links are client-supplied URLs to scrape, in order.
	Links []string
}

// DefaultOptions returns the option defaults: web search on, deep thinking
// off.
func DefaultOptions() Options {
	return Options{WebSearch: true}
}

// Pipeline wires the extraction coordinator, the search provider, the
// session ledger and the model dispatcher into one request path.
type Pipeline struct {
	extractor  Extractor
	search     SearchProvider
	dispatcher Dispatcher
	ledger     *session.Ledger
}

// New creates a pipeline. The ledger may be nil to disable session
// recording; everything else is required.
func New(extractor Extractor, search SearchProvider, dispatcher Dispatcher, ledger *session.Ledger) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		search:     search,
		dispatcher: dispatcher,
		ledger:     ledger,
	}
}

// Run executes one chat request: extraction fan-out, conditional search,
// context injection, ledger write, dispatch. The returned channel streams
// the model's answer; cancelling ctx stops both extraction and generation.
func (p *Pipeline) Run(
	ctx context.Context,
	sessionID string,
	messages []model.Message,
	attachments []extract.Attachment,
	opts Options,
) (<-chan *model.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	lastMessage := messages[len(messages)-1]

	// Extraction and search are independent; run them concurrently and
	// join before injection.
	var (
		wg            sync.WaitGroup
		fileContext   string
		urlContext    string
		searchContext string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		fileContext, urlContext = p.extractor.Extract(ctx, attachments, opts.Links)
	}()
	if p.search != nil && ShouldSearch(lastMessage, opts.WebSearch) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The raw, non-lowercased content is the query.
			if info := p.search.ExtraInfo(ctx, lastMessage.Content); info != "" {
				searchContext = supplementaryIntelLabel + info
			}
		}()
	}
	wg.Wait()

	assembled := BuildMessages(messages, fileContext, urlContext, searchContext)

	// Diagnostic side record only; never read back into the response path.
	if p.ledger != nil {
		p.ledger.Record(sessionID, assembled)
	}

	return p.dispatcher.Dispatch(ctx, assembled, opts.DeepThinking)
}
