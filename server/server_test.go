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

package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/aura/extract"
	"trpc.group/trpc-go/aura/model"
	"trpc.group/trpc-go/aura/pipeline"
)

// fakePipeline records what it was invoked with and plays back a scripted
// response stream.
type fakePipeline struct {
	calls          int
	gotSessionID   string
	gotMessages    []model.Message
	gotAttachments []extract.Attachment
	gotOpts        pipeline.Options

	responses []*model.Response
	err       error
}

func (f *fakePipeline) Run(
	ctx context.Context,
	sessionID string,
	messages []model.Message,
	attachments []extract.Attachment,
	opts pipeline.Options,
) (<-chan *model.Response, error) {
	f.calls++
	f.gotSessionID = sessionID
	f.gotMessages = messages
	f.gotAttachments = attachments
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan *model.Response, len(f.responses))
	for _, rsp := range f.responses {
		ch <- rsp
	}
	close(ch)
	return ch, nil
}

func partial(text string) *model.Response {
	return &model.Response{
		IsPartial: true,
		Choices:   []model.Choice{{Delta: model.NewAssistantMessage(text)}},
	}
}

func final(text string) *model.Response {
	return &model.Response{
		Done:    true,
		Choices: []model.Choice{{Message: model.NewAssistantMessage(text)}},
	}
}

func postChat(t *testing.T, s *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

const minimalBody = `{"messages": [{"role": "user", "content": "Hello"}]}`

func TestHandleChat_MissingCredentialFailsFast(t *testing.T) {
	p := &fakePipeline{}
	s := New(p, WithCredential(""))

	w := postChat(t, s, minimalBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Configuration Error: Missing API Key")
	// No pipeline work, hence no extraction work, happens without a key.
	assert.Zero(t, p.calls)
}

func TestHandleChat_BadJSON(t *testing.T) {
	s := New(&fakePipeline{}, WithCredential("key"))
	w := postChat(t, s, `{"messages": [`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_StreamsChunks(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{
		partial("Hello"),
		partial(" there"),
		partial("!"),
		final("Hello there!"),
	}}
	s := New(p, WithCredential("key"))

	w := postChat(t, s, minimalBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// Concatenated chunks form the full answer; the final aggregated
	// response is not replayed on top of the streamed deltas.
	assert.Equal(t, "Hello there!", w.Body.String())
	assert.True(t, w.Flushed)
}

func TestHandleChat_FinalOnlyResponse(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{final("complete answer")}}
	s := New(p, WithCredential("key"))

	w := postChat(t, s, minimalBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "complete answer", w.Body.String())
}

func TestHandleChat_PipelineErrorIsGeneric503(t *testing.T) {
	p := &fakePipeline{err: errors.New("model provider exploded: secret detail")}
	s := New(p, WithCredential("key"))

	w := postChat(t, s, minimalBody, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Intelligence Engine Unavailable", body["error"])
	// Internal detail never leaks to the client.
	assert.NotContains(t, w.Body.String(), "secret detail")
}

func TestHandleChat_StreamErrorBeforeFirstChunk(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{
		{Error: &model.ResponseError{Message: "rate limited", Type: model.ErrorTypeStreamError}, Done: true},
	}}
	s := New(p, WithCredential("key"))

	w := postChat(t, s, minimalBody, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "rate limited")
}

func TestHandleChat_StreamErrorMidStream(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{
		partial("partial answer"),
		{Error: &model.ResponseError{Message: "connection reset", Type: model.ErrorTypeStreamError}, Done: true},
	}}
	s := New(p, WithCredential("key"))

	w := postChat(t, s, minimalBody, nil)

	// Headers already went out; the stream just ends.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial answer", w.Body.String())
}

func TestHandleChat_SessionHeaderDefault(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{final("ok")}}
	s := New(p, WithCredential("key"))

	postChat(t, s, minimalBody, nil)
	assert.Equal(t, "aura-guest", p.gotSessionID)

	postChat(t, s, minimalBody, map[string]string{"x-session-id": "custom-7"})
	assert.Equal(t, "custom-7", p.gotSessionID)
}

func TestHandleChat_OptionDefaults(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{final("ok")}}
	s := New(p, WithCredential("key"))

	postChat(t, s, minimalBody, nil)
	assert.True(t, p.gotOpts.WebSearch, "web search defaults on")
	assert.False(t, p.gotOpts.DeepThinking, "deep thinking defaults off")

	body := `{
		"messages": [{"role": "user", "content": "Hello"}],
		"options": {"webSearch": false, "deepThinking": true, "links": ["https://example.com"]}
	}`
	postChat(t, s, body, nil)
	assert.False(t, p.gotOpts.WebSearch)
	assert.True(t, p.gotOpts.DeepThinking)
	assert.Equal(t, []string{"https://example.com"}, p.gotOpts.Links)
}

func TestHandleChat_DecodesAttachments(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{final("ok")}}
	s := New(p, WithCredential("key"))

	raw := []byte("%PDF-1.4 pretend")
	body := `{
		"messages": [{"role": "user", "content": "Read this"}],
		"data": {"files": [
			{"name": "doc.pdf", "type": "application/pdf", "base64": "` + base64.StdEncoding.EncodeToString(raw) + `"},
			{"name": "broken.pdf", "type": "application/pdf", "base64": "!!! not base64 !!!"}
		]}
	}`
	w := postChat(t, s, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// The undecodable file is skipped, not fatal.
	require.Len(t, p.gotAttachments, 1)
	assert.Equal(t, "doc.pdf", p.gotAttachments[0].Name)
	assert.Equal(t, "application/pdf", p.gotAttachments[0].MIMEType)
	assert.Equal(t, raw, p.gotAttachments[0].Data)
}

func TestHandleChat_OnlyRoleAndContentSurvive(t *testing.T) {
	p := &fakePipeline{responses: []*model.Response{final("ok")}}
	s := New(p, WithCredential("key"))

	// Extra client-supplied fields on a message are dropped by design.
	body := `{"messages": [
		{"role": "user", "content": "Hi", "id": "m1", "createdAt": "2026-01-01"},
		{"role": "assistant", "content": "Hello", "metadata": {"x": 1}}
	]}`
	w := postChat(t, s, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.gotMessages, 2)
	assert.Equal(t, model.NewUserMessage("Hi"), p.gotMessages[0])
	assert.Equal(t, model.NewAssistantMessage("Hello"), p.gotMessages[1])
}

func TestHandleHealthz(t *testing.T) {
	s := New(&fakePipeline{}, WithCredential("key"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	s := New(&fakePipeline{}, WithCredential("key"))

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
