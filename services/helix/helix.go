// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package helix provides the conversational answer service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the access gate, grounding library, session
// store, completion providers, transcript sink, and observability
// infrastructure.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := helix.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package helix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/helix/pkg/access"
	"github.com/AleutianAI/helix/services/helix/config"
	"github.com/AleutianAI/helix/services/helix/grounding"
	"github.com/AleutianAI/helix/services/helix/handlers"
	"github.com/AleutianAI/helix/services/helix/llm"
	"github.com/AleutianAI/helix/services/helix/middleware"
	"github.com/AleutianAI/helix/services/helix/observability"
	"github.com/AleutianAI/helix/services/helix/routes"
	"github.com/AleutianAI/helix/services/helix/session"
	"github.com/AleutianAI/helix/services/helix/transcript"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the helix service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Close releases the service's resources without running the server.
	// Run() performs the same cleanup on exit; Close exists for tests
	// and callers that never start the listener.
	Close()
}

// =============================================================================
// Service Implementation
// =============================================================================

type service struct {
	config        *config.Config
	authenticator access.Authenticator
	invoker       *llm.Invoker
	store         *session.Store
	library       *grounding.Library
	sink          transcript.Sink
	router        *gin.Engine
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New constructs a fully wired service from validated configuration.
//
// # Description
//
// Wires the authenticator for the configured access mode, the live or
// dry-run completion provider, the retrying invoker, the in-memory
// session store, the preloaded grounding library, and the transcript
// sink. Tracing and the grounding library are optional: when their
// configuration is absent the service runs without them.
//
// # Inputs
//
//   - cfg: configuration that has already passed cfg.Validate()
//
// # Outputs
//
//   - Service: ready to Run()
//   - error: non-nil when a required component cannot be built
func New(cfg *config.Config) (Service, error) {
	s := &service{
		config: cfg,
		store:  session.NewStore(cfg.SessionMaxMessages),
	}

	observability.Init()

	if cfg.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if err := s.initAuthenticator(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize access gate: %w", err)
	}

	if err := s.initProvider(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	if err := s.initLibrary(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load grounding library: %w", err)
	}

	if err := s.initSink(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open transcript sink: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting helix server",
		"port", s.config.Port,
		"access_mode", s.config.AccessMode,
		"model", s.config.Model,
		"dry_run", s.config.DryRun)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close releases the grounding library watcher, the transcript sink,
// and the tracer. Safe to call more than once.
func (s *service) Close() {
	if s.library != nil {
		if err := s.library.Close(); err != nil {
			slog.Warn("Grounding library close error", "error", err)
		}
		s.library = nil
	}

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			slog.Warn("Transcript sink close error", "error", err)
		}
		s.sink = nil
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initAuthenticator builds the access gate for the configured mode.
func (s *service) initAuthenticator() error {
	switch s.config.AccessMode {
	case config.ModePublic:
		s.authenticator = access.PublicAuthenticator{}
		slog.Info("Access mode: public (no credential required)")
	case config.ModePrivate:
		auth, err := access.NewSharedKeyAuthenticator(s.config.APIKey)
		if err != nil {
			return err
		}
		s.authenticator = auth
		slog.Info("Access mode: private (shared API key)")
	case config.ModeFirebase:
		auth, err := access.NewFirebaseAuthenticator(context.Background(), s.config.FirebaseProjectID)
		if err != nil {
			return err
		}
		s.authenticator = auth
		slog.Info("Access mode: firebase", "project_id", s.config.FirebaseProjectID)
	default:
		return fmt.Errorf("unknown access mode %q", s.config.AccessMode)
	}
	return nil
}

// initProvider selects the completion backend and wraps it in the
// retrying invoker. The dry-run provider is selected once here, at
// startup, never per-request.
func (s *service) initProvider() error {
	var provider llm.Provider
	if s.config.DryRun {
		provider = &llm.DryRunProvider{}
		slog.Info("Using dry-run completion provider (no upstream credential)")
	} else {
		p, err := llm.NewOpenAIProvider(s.config.OpenAIAPIKey, s.config.OpenAIBaseURL)
		if err != nil {
			return err
		}
		provider = p
		slog.Info("Using OpenAI completion provider", "model", s.config.Model)
	}

	s.invoker = llm.NewInvoker(provider, s.config.UpstreamAttempts, s.config.UpstreamBackoff)
	return nil
}

// initLibrary preloads the on-disk document library when a directory is
// configured. The library watches the directory and reloads on change.
func (s *service) initLibrary() error {
	if s.config.DocsDir == "" {
		return nil
	}

	lib, err := grounding.NewLibrary(s.config.DocsDir, s.config.MaxContextDocs, s.config.MaxDocChars)
	if err != nil {
		return err
	}
	s.library = lib
	slog.Info("Grounding library loaded",
		"dir", s.config.DocsDir, "documents", len(lib.Documents()))
	return nil
}

// initSink opens the transcript store when a path is configured.
func (s *service) initSink() error {
	if s.config.TranscriptPath == "" {
		s.sink = transcript.NopSink{}
		return nil
	}

	sink, err := transcript.NewBadgerSink(s.config.TranscriptPath, false)
	if err != nil {
		return err
	}
	s.sink = sink
	slog.Info("Transcript sink opened", "path", s.config.TranscriptPath)
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	if s.tracerCleanup != nil {
		s.router.Use(otelgin.Middleware("helix-service"))
	}

	routes.SetupRoutes(s.router, s.authenticator, handlers.ChatDeps{
		Config:  s.config,
		Invoker: s.invoker,
		Store:   s.store,
		Library: s.library,
		Sink:    s.sink,
	})
}

// initTracer configures the OTLP gRPC trace exporter.
//
// Uses an insecure connection, appropriate for internal collector
// endpoints.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("helix-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}
