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

// Package main runs the aura chat service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trpc.group/trpc-go/aura/dispatch"
	"trpc.group/trpc-go/aura/extract"
	"trpc.group/trpc-go/aura/extract/ocr"
	"trpc.group/trpc-go/aura/extract/pdf"
	"trpc.group/trpc-go/aura/extract/search"
	"trpc.group/trpc-go/aura/extract/web"
	"trpc.group/trpc-go/aura/log"
	"trpc.group/trpc-go/aura/model"
	openaimodel "trpc.group/trpc-go/aura/model/openai"
	"trpc.group/trpc-go/aura/pipeline"
	"trpc.group/trpc-go/aura/server"
	"trpc.group/trpc-go/aura/session"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

func main() {
	baseURLDefault := defaultBaseURL
	if v := os.Getenv("AURA_BASE_URL"); v != "" {
		baseURLDefault = v
	}

	addr := flag.String("addr", ":8080", "HTTP listen address")
	logLevel := flag.String("log-level", log.LevelInfo, "Log level: debug, info, warn, error, fatal")
	baseURL := flag.String("base-url", baseURLDefault, "OpenAI-compatible API base URL")
	ocrURL := flag.String("ocr-url", "", "Remote OCR service endpoint; empty disables OCR")
	flag.Parse()

	log.SetLevel(*logLevel)

	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		// The server still starts so that /chat can answer with the fixed
		// configuration error; nothing is dispatched without a credential.
		log.Warn("GROQ_API_KEY is not set; chat requests will be rejected")
	}

	var engine extract.OCREngine
	if *ocrURL != "" {
		engine = ocr.NewHTTPEngine(*ocrURL)
	}

	coordinator, err := extract.New(pdf.New(), engine, web.New())
	if err != nil {
		log.Fatalf("failed to create extraction coordinator: %v", err)
	}
	defer coordinator.Close()

	dispatcher := dispatch.New(func(modelName string) model.Model {
		return openaimodel.New(modelName,
			openaimodel.WithAPIKey(apiKey),
			openaimodel.WithBaseURL(*baseURL),
		)
	})

	p := pipeline.New(coordinator, search.New(), dispatcher, session.NewLedger())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(p, server.WithCredential(apiKey)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("aura listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown failed: %v", err)
	}
}
