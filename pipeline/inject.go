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

// Context section headers, in injection order. The order is a stable
// contract: attached data, then web context, then external intel.
const (
	attachedDataHeader  = "\n\n### ATTACHED DATA ###\n"
	webContextHeader    = "\n\n### WEB CONTEXT ###\n"
	externalIntelHeader = "\n\n### EXTERNAL INTEL ###\n"
)

// BuildMessages reconstructs the conversation with the assembled context
// merged into the last message. Every message is reduced to role and
// content; the context sections are appended to the last message only when
// it was authored by the user, and empty channels produce no header.
func BuildMessages(
	messages []model.Message,
	fileContext, urlContext, searchContext string,
) []model.Message {
	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		isLast := i == len(messages)-1
		if isLast && msg.Role == model.RoleUser {
			var content strings.Builder
			content.WriteString(msg.Content)
			if fileContext != "" {
				content.WriteString(attachedDataHeader)
				content.WriteString(fileContext)
			}
			if urlContext != "" {
				content.WriteString(webContextHeader)
				content.WriteString(urlContext)
			}
			if searchContext != "" {
				content.WriteString(externalIntelHeader)
				content.WriteString(searchContext)
			}
			result[i] = model.NewUserMessage(content.String())
			continue
		}
		result[i] = model.Message{Role: msg.Role, Content: msg.Content}
	}
	return result
}
