// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the helix service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/helix/services/helix/config"
	"github.com/AleutianAI/helix/services/helix/datatypes"
	"github.com/AleutianAI/helix/services/helix/grounding"
	"github.com/AleutianAI/helix/services/helix/llm"
	"github.com/AleutianAI/helix/services/helix/middleware"
	"github.com/AleutianAI/helix/services/helix/observability"
	"github.com/AleutianAI/helix/services/helix/session"
	"github.com/AleutianAI/helix/services/helix/transcript"
)

var chatTracer = otel.Tracer("helix.handlers")

// transcriptWriteTimeout bounds the detached best-effort sink append so
// a stalled disk cannot leak goroutines.
const transcriptWriteTimeout = 5 * time.Second

// ChatDeps bundles the collaborators the chat pipeline needs. All fields
// are required except Library and Sink, which fall back to empty docs
// and a no-op sink.
type ChatDeps struct {
	Config  *config.Config
	Invoker *llm.Invoker
	Store   *session.Store
	Library *grounding.Library
	Sink    transcript.Sink
}

// HandleChat runs the full answer pipeline for POST /v1/chat.
//
// # Description
//
// The request moves through a fixed sequence: validation, grounding
// assembly, history merge, model invocation, response composition, then
// the session commit and transcript write. Nothing is persisted for a
// request that fails any earlier stage — a rejected or failed request
// leaves the session exactly as it was.
//
// # Inputs
//
//   - deps: see ChatDeps
//
// # Outputs
//
//   - 200 with a datatypes.ChatResponse body
//   - 400 with a kind-tagged validation error body
//   - 502/503/504 with a kind-tagged upstream error body
func HandleChat(deps ChatDeps) gin.HandlerFunc {
	sink := deps.Sink
	if sink == nil {
		sink = transcript.NopSink{}
	}

	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		m := observability.Get()
		m.RequestsTotal.WithLabelValues(observability.StageReceived).Inc()
		// The access gate ran in middleware; reaching the handler means
		// the request is authorized.
		m.RequestsTotal.WithLabelValues(observability.StageAuthorized).Inc()
		m.ActiveRequests.Inc()
		start := time.Now()
		defer m.ActiveRequests.Dec()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.RequestsTotal.WithLabelValues(observability.StageRejectedValidation).Inc()
			m.RequestDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid request body",
				"kind":  "malformed_json",
			})
			return
		}

		if verr := req.Validate(datatypes.ValidationLimits{
			MaxOutputTokens: deps.Config.MaxOutputTokens,
		}); verr != nil {
			span.SetStatus(codes.Error, verr.Error())
			m.RequestsTotal.WithLabelValues(observability.StageRejectedValidation).Inc()
			m.RequestDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			slog.Warn("Rejected chat request",
				"request_id", middleware.GetRequestID(c),
				"kind", verr.Kind, "field", verr.Field)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": verr.Detail,
				"kind":  string(verr.Kind),
				"field": verr.Field,
			})
			return
		}
		sessionID := req.EnsureSessionID()
		span.SetAttributes(attribute.String("session.id", sessionID))
		m.RequestsTotal.WithLabelValues(observability.StageValidated).Inc()

		// Grounding: request-supplied documents take priority over the
		// preloaded library, both under the configured caps.
		var preloaded []grounding.Document
		if deps.Library != nil {
			preloaded = deps.Library.Documents()
		}
		block := grounding.Assemble(req.ContextDocuments, preloaded, grounding.Limits{
			MaxDocs:     deps.Config.MaxContextDocs,
			MaxDocChars: deps.Config.MaxDocChars,
		})
		for _, d := range block.Documents {
			if d.Truncated {
				m.DocumentsTruncatedTotal.Inc()
			}
		}
		m.RequestsTotal.WithLabelValues(observability.StageContextAssembled).Inc()

		systemPrompt := grounding.BuildSystemPrompt(req.SystemPrompt, block)

		// History merge: server-side session first, then client-supplied
		// prior turns, then the new user message last.
		history := deps.Store.Render(sessionID)
		history = append(history, req.Messages...)
		userMsg := datatypes.Message{Role: datatypes.RoleUser, Content: req.Message}
		history = append(history, userMsg)
		m.RequestsTotal.WithLabelValues(observability.StageHistoryMerged).Inc()

		model := req.Model
		if model == "" {
			model = deps.Config.Model
		}
		temperature := deps.Config.Temperature
		if req.Temperature != nil {
			temperature = *req.Temperature
		}

		invokeCtx, cancel := context.WithTimeout(ctx, deps.Config.RequestTimeout)
		defer cancel()

		result, err := deps.Invoker.Invoke(invokeCtx, llm.CompletionRequest{
			SystemPrompt:    systemPrompt,
			Messages:        history,
			Model:           model,
			Temperature:     temperature,
			MaxOutputTokens: req.MaxOutputTokens,
			Metadata:        req.Metadata,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.RequestsTotal.WithLabelValues(observability.StageUpstreamFailed).Inc()
			m.RequestDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			writeUpstreamError(c, deps.Invoker.Provider().Name(), err)
			return
		}
		m.UpstreamAttemptsTotal.WithLabelValues(deps.Invoker.Provider().Name(), "success").Inc()
		m.RequestsTotal.WithLabelValues(observability.StageInvoked).Inc()

		resp := datatypes.NewChatResponse(sessionID, result.Model, result.Text)
		resp.UpstreamResponseID = result.ResponseID
		resp.Usage = result.Usage
		if result.Usage != nil {
			m.TokensTotal.WithLabelValues("prompt", result.Model).Add(float64(result.Usage.PromptTokens))
			m.TokensTotal.WithLabelValues("completion", result.Model).Add(float64(result.Usage.CompletionTokens))
		}
		m.RequestsTotal.WithLabelValues(observability.StageComposed).Inc()

		// Session commit happens only on the success path. A request
		// whose context was cancelled mid-flight gets no writes either.
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, ctx.Err().Error())
			m.RequestDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return
		}
		deps.Store.Append(sessionID, userMsg,
			datatypes.Message{Role: datatypes.RoleAssistant, Content: result.Text})

		// Transcript writes are best-effort: detached from the request
		// context so a slow sink never delays the response, and failures
		// are logged, counted, and otherwise ignored.
		go func(userText, assistantText string, at time.Time) {
			wctx, wcancel := context.WithTimeout(context.Background(), transcriptWriteTimeout)
			defer wcancel()
			if err := sink.Append(wctx, sessionID, datatypes.RoleUser, userText, at); err != nil {
				m.TranscriptFailuresTotal.Inc()
				slog.Warn("Transcript append failed", "session_id", sessionID, "error", err)
			}
			if err := sink.Append(wctx, sessionID, datatypes.RoleAssistant, assistantText, at); err != nil {
				m.TranscriptFailuresTotal.Inc()
				slog.Warn("Transcript append failed", "session_id", sessionID, "error", err)
			}
		}(req.Message, result.Text, resp.CreatedAt)

		m.RequestsTotal.WithLabelValues(observability.StageLogged).Inc()
		m.RequestDurationSeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())

		slog.Info("Chat request completed",
			"request_id", middleware.GetRequestID(c),
			"session_id", sessionID,
			"model", result.Model,
			"retained_docs", block.Retained,
			"history_len", deps.Store.Len(sessionID))
		c.JSON(http.StatusOK, resp)
	}
}

// writeUpstreamError maps a classified provider failure to a status code
// and kind-tagged body.
func writeUpstreamError(c *gin.Context, provider string, err error) {
	var ue *datatypes.UpstreamError
	if !errors.As(err, &ue) {
		ue = &datatypes.UpstreamError{Kind: datatypes.UpstreamUnreachable, Err: err}
	}
	observability.Get().UpstreamAttemptsTotal.WithLabelValues(provider, string(ue.Kind)).Inc()

	status := http.StatusBadGateway
	switch ue.Kind {
	case datatypes.UpstreamTimeout:
		status = http.StatusGatewayTimeout
	case datatypes.UpstreamRateLimited:
		status = http.StatusServiceUnavailable
	case datatypes.UpstreamRejected:
		status = http.StatusBadGateway
	case datatypes.UpstreamUnreachable:
		status = http.StatusServiceUnavailable
	}

	slog.Error("Upstream completion failed",
		"provider", provider, "kind", ue.Kind, "attempts", ue.Attempts, "error", err)
	c.JSON(status, gin.H{
		"error":    "upstream model call failed",
		"kind":     string(ue.Kind),
		"attempts": ue.Attempts,
	})
}
