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

// Package dispatch selects a model profile and issues the streaming
// completion call.
package dispatch

import (
	"context"
	"errors"

	"trpc.group/trpc-go/aura/model"
)

// Profile is one fixed model configuration. Exactly two exist; the deep
// thinking flag on a request picks between them.
type Profile struct {
	// Model is the provider-side model identifier.
	Model string
	// Temperature is the sampling temperature for this profile.
	Temperature float64
	// Instruction is the system instruction prepended to the conversation.
	Instruction string
}

// FastProfile is the default low-latency profile.
var FastProfile = Profile{
	Model:       "llama-3.1-8b-instant",
	Temperature: 0.65,
	Instruction: "You are Aura, an elite AI assistant. Be professional, concise, and helpful.",
}

// DeepProfile is the higher-latency analytical profile.
var DeepProfile = Profile{
	Model:       "llama-3.3-70b-versatile",
	Temperature: 0.35,
	Instruction: "You are Aura in Neural Research Mode (Deep Thinking). Break down complexity step-by-step. Be technical, thorough, and highly analytical.",
}

// ProviderFactory builds a model provider bound to the given model name.
type ProviderFactory func(modelName string) model.Model

// Dispatcher routes assembled conversations to one of the two profiles.
type Dispatcher struct {
	fast model.Model
	deep model.Model
}

// New creates a dispatcher, constructing one provider per profile through
// the factory.
func New(factory ProviderFactory) *Dispatcher {
	return &Dispatcher{
		fast: factory(FastProfile.Model),
		deep: factory(DeepProfile.Model),
	}
}

// NewWithModels creates a dispatcher over explicit providers. Intended for
// tests and custom wiring; New is the usual constructor.
func NewWithModels(fast, deep model.Model) *Dispatcher {
	return &Dispatcher{fast: fast, deep: deep}
}

// Dispatch prepends the profile's system instruction, sets its temperature
// and streams the completion. The returned channel carries partial deltas
// followed by a final aggregated response; cancelling ctx stops generation.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	messages []model.Message,
	deepThinking bool,
) (<-chan *model.Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	profile, provider := FastProfile, d.fast
	if deepThinking {
		profile, provider = DeepProfile, d.deep
	}

	assembled := make([]model.Message, 0, len(messages)+1)
	assembled = append(assembled, model.NewSystemMessage(profile.Instruction))
	assembled = append(assembled, messages...)

	temperature := profile.Temperature
	request := &model.Request{
		Messages: assembled,
		GenerationConfig: model.GenerationConfig{
			Temperature: &temperature,
			Stream:      true,
		},
	}
	return provider.GenerateContent(ctx, request)
}
