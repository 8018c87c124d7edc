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

package pipeline

import (
	"testing"

	"trpc.group/trpc-go/aura/model"
)

func TestShouldSearch(t *testing.T) {
	tests := []struct {
		name    string
		message model.Message
		enabled bool
		want    bool
	}{
		{
			name:    "trigger word present",
			message: model.NewUserMessage("What is the current news on AI"),
			enabled: true,
			want:    true,
		},
		{
			name:    "no trigger word",
			message: model.NewUserMessage("Thanks!"),
			enabled: true,
			want:    false,
		},
		{
			name:    "web search disabled",
			message: model.NewUserMessage("What is the current news on AI"),
			enabled: false,
			want:    false,
		},
		{
			name:    "last message not from user",
			message: model.NewAssistantMessage("what happened next"),
			enabled: true,
			want:    false,
		},
		{
			name:    "substring match inside larger word",
			message: model.NewUserMessage("any infographic ideas?"),
			enabled: true,
			want:    true, // "info" matches as a substring
		},
		{
			name:    "case insensitive",
			message: model.NewUserMessage("DEFINE entropy"),
			enabled: true,
			want:    true,
		},
		{
			name:    "empty content",
			message: model.NewUserMessage(""),
			enabled: true,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSearch(tt.message, tt.enabled)
			if got != tt.want {
				t.Errorf("ShouldSearch(%q, %t) = %t, want %t",
					tt.message.Content, tt.enabled, got, tt.want)
			}
		})
	}
}
