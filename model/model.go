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

// Package model provides the request, response and message types exchanged
// with language model providers.
package model

import "context"

// Info describes basic information about a model.
type Info struct {
	// Name is the provider-side model identifier.
	Name string
}

// Model is the interface implemented by language model providers.
//
// GenerateContent returns a channel of responses. For streaming requests the
// channel carries partial deltas followed by one final aggregated response;
// for non-streaming requests it carries a single response. The channel is
// closed once generation finishes. Cancelling the context stops generation
// promptly.
type Model interface {
	// GenerateContent generates content for the given request.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}
