// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command helix starts the conversational answer HTTP server.
//
// Configuration comes from an optional YAML file plus environment
// variables; environment wins.
//
// # Environment Variables
//
//   - HELIX_PORT: HTTP server port (default: 8080)
//   - HELIX_ACCESS_MODE: public, private, or firebase (default: public)
//   - HELIX_API_KEY: shared key for private mode
//   - HELIX_FIREBASE_PROJECT_ID: project for firebase mode
//   - OPENAI_API_KEY: upstream credential; absent means dry-run
//   - HELIX_MODEL: upstream model name (default: gpt-4o-mini)
//   - HELIX_DOCS_DIR: preloaded grounding document directory (optional)
//   - HELIX_TRANSCRIPT_PATH: transcript store path (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o helix ./cmd/helix
//
//	# Run
//	./helix
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/AleutianAI/helix/services/helix"
	"github.com/AleutianAI/helix/services/helix/config"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load validates the startup invariants itself.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.Info("Starting helix",
		"port", cfg.Port,
		"access_mode", cfg.AccessMode,
		"model", cfg.Model,
		"dry_run", cfg.DryRun,
	)

	svc, err := helix.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create helix service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Helix error: %v", err)
	}
}
