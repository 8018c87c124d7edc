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
	"strings"

	"trpc.group/trpc-go/aura/model"
)

// triggerWords gates the supplementary search call. A single lowercase
// substring hit is sufficient; there is no scoring.
var triggerWords = []string{"who", "what", "current", "news", "latest", "info", "define"}

// ShouldSearch decides whether the last message warrants a supplementary
// search call. It is always false when web search is disabled or the last
// message was not authored by the user.
func ShouldSearch(lastMessage model.Message, webSearchEnabled bool) bool {
	if !webSearchEnabled || lastMessage.Role != model.RoleUser {
		return false
	}
	content := strings.ToLower(lastMessage.Content)
	for _, word := range triggerWords {
		if strings.Contains(content, word) {
			return true
		}
	}
	return false
}
