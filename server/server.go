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

// Package server exposes the chat pipeline over HTTP. It owns the inbound
// wire contract, the fail-fast credential check, the single failure
// boundary, and chunked response streaming.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/aura/extract"
	"trpc.group/trpc-go/aura/log"
	"trpc.group/trpc-go/aura/model"
	"trpc.group/trpc-go/aura/pipeline"
)

const (
	// sessionHeader carries the client's session identifier.
	sessionHeader = "x-session-id"
	// defaultSessionID is used when the session header is absent.
	defaultSessionID = "aura-guest"

	// missingKeyMessage is the fixed diagnostic for an unconfigured
	// provider credential.
	missingKeyMessage = "Configuration Error: Missing API Key"
	// unavailableMessage is the only failure detail a client ever sees.
	unavailableMessage = "Intelligence Engine Unavailable"

	// defaultRequestCeiling bounds one /chat invocation end to end,
	// streaming included.
	defaultRequestCeiling = 30 * time.Second
)

// Pipeline is the request path the server drives.
type Pipeline interface {
	Run(
		ctx context.Context,
		sessionID string,
		messages []model.Message,
		attachments []extract.Attachment,
		opts pipeline.Options,
	) (<-chan *model.Response, error)
}

// Option configures the Server instance.
type Option func(*Server)

// WithCredential records the provider credential. An empty credential makes
// every chat request fail fast with a configuration error before any
// extraction work.
func WithCredential(apiKey string) Option {
	return func(s *Server) { s.credentialSet = apiKey != "" }
}

// WithRequestCeiling sets the execution-time ceiling for one chat request.
func WithRequestCeiling(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestCeiling = d
		}
	}
}

// Server exposes POST /chat backed by the context-orchestration pipeline.
type Server struct {
	router         *mux.Router
	pipeline       Pipeline
	credentialSet  bool
	requestCeiling time.Duration
}

// New creates a new HTTP server around the given pipeline.
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		pipeline:       p,
		requestCeiling: defaultRequestCeiling,
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	// OPTIONS handler to allow CORS pre-flight.
	s.router.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)
}

// ---- Wire types ---------------------------------------------------------

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireFile struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Base64 string `json:"base64"`
}

type wireData struct {
	Files []wireFile `json:"files"`
}

type wireOptions struct {
	WebSearch    *bool    `json:"webSearch,omitempty"`
	DeepThinking bool     `json:"deepThinking,omitempty"`
	Links        []string `json:"links,omitempty"`
}

type chatRequest struct {
	Messages []wireMessage `json:"messages"`
	Data     *wireData     `json:"data,omitempty"`
	Options  *wireOptions  `json:"options,omitempty"`
}

// ---- Handlers -----------------------------------------------------------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	// Fail fast before any extraction work when the provider credential is
	// not configured.
	if !s.credentialSet {
		http.Error(w, missingKeyMessage, http.StatusInternalServerError)
		return
	}

	streamStarted := false
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("critical api failure: request=%s panic=%v", requestID, rec)
			if !streamStarted {
				s.writeUnavailable(w)
			}
		}
	}()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	messages := make([]model.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = model.Message{Role: model.Role(m.Role), Content: m.Content}
	}

	var attachments []extract.Attachment
	if req.Data != nil {
		for _, f := range req.Data.Files {
			data, err := base64.StdEncoding.DecodeString(f.Base64)
			if err != nil {
				// One undecodable file must not block the request.
				log.Errorf("failed to decode attachment %q: request=%s err=%v", f.Name, requestID, err)
				continue
			}
			attachments = append(attachments, extract.Attachment{
				Name:     f.Name,
				MIMEType: f.Type,
				Data:     data,
			})
		}
	}

	opts := pipeline.DefaultOptions()
	if req.Options != nil {
		if req.Options.WebSearch != nil {
			opts.WebSearch = *req.Options.WebSearch
		}
		opts.DeepThinking = req.Options.DeepThinking
		opts.Links = req.Options.Links
	}

	log.Infof("handleChat: request=%s session=%s messages=%d files=%d links=%d deep=%t",
		requestID, sessionID, len(messages), len(attachments), len(opts.Links), opts.DeepThinking)

	// One ceiling for the whole invocation; cancellation also propagates
	// upstream when the client disconnects.
	ctx, cancel := context.WithTimeout(r.Context(), s.requestCeiling)
	defer cancel()

	out, err := s.pipeline.Run(ctx, sessionID, messages, attachments, opts)
	if err != nil {
		log.Errorf("critical api failure: request=%s err=%v", requestID, err)
		s.writeUnavailable(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Errorf("streaming unsupported by response writer: request=%s", requestID)
		s.writeUnavailable(w)
		return
	}

	for rsp := range out {
		if rsp.Error != nil {
			log.Errorf("critical api failure: request=%s err=%s", requestID, rsp.Error.Message)
			if !streamStarted {
				s.writeUnavailable(w)
			}
			return
		}
		chunk := responseChunk(rsp, streamStarted)
		if chunk == "" {
			continue
		}
		if !streamStarted {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			streamStarted = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			// Client went away; the request context cancellation stops
			// upstream generation.
			log.Debugf("client disconnected: request=%s err=%v", requestID, err)
			return
		}
		flusher.Flush()
	}

	// An empty but error-free stream is still a success.
	if !streamStarted {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
	log.Infof("handleChat finished: request=%s session=%s", requestID, sessionID)
}

// responseChunk extracts the next text chunk to write. Partial responses
// contribute their delta; a final response contributes its full content
// only when nothing was streamed before it (non-streaming providers).
func responseChunk(rsp *model.Response, streamed bool) string {
	if len(rsp.Choices) == 0 {
		return ""
	}
	if rsp.IsPartial {
		return rsp.Choices[0].Delta.Content
	}
	if !streamed {
		return rsp.Choices[0].Message.Content
	}
	return ""
}

func (s *Server) writeUnavailable(w http.ResponseWriter) {
	s.writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"error": unavailableMessage})
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
