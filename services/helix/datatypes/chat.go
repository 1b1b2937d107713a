// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides wire types and the error taxonomy for the
// helix service.
//
// This file contains the request and response envelope for the single
// chat operation (POST /v1/chat). Requests are parsed at the HTTP
// boundary into these strongly-typed records before any component
// touches them.
package datatypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// RoleSystem, RoleUser and RoleAssistant are the only roles accepted
	// on the wire and stored in session history.
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MaxRequestDocuments is the absolute ceiling on context documents in
	// a single request. Counts above it are rejected outright; counts
	// between the configured cap and this ceiling are dropped whole and
	// flagged by the grounding assembler instead.
	MaxRequestDocuments = 50

	// MaxMessagesPerRequest bounds the prior-turn list a client may send.
	MaxMessagesPerRequest = 100
)

// chatValidate is the shared validator instance for parameter range checks.
var chatValidate = validator.New()

// =============================================================================
// Messages
// =============================================================================

// Message is a single conversation turn. Immutable once created.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one of system, user or assistant.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// =============================================================================
// Chat Request
// =============================================================================

// ValidationLimits carries the configured ceilings consulted by
// ChatRequest.Validate. Kept as a plain value so validation stays a pure
// function of request plus configuration.
type ValidationLimits struct {
	// MaxOutputTokens is the ceiling for the max_output_tokens parameter.
	MaxOutputTokens int
}

// ChatRequest is the body of POST /v1/chat.
//
// # Description
//
// Message carries the new user question. Messages optionally carries prior
// turns supplied by the client (merged with server-side session history).
// ContextDocuments are grounding texts assembled into the prompt under the
// configured caps. SessionID continues an existing conversation; when
// absent a fresh session is minted and its id echoed in the response.
//
// # Validation
//
// Validate checks fields in a fixed order — message, messages roles,
// temperature, max_output_tokens, context_documents count — and reports
// the first violation only, so identical invalid requests always produce
// the identical error kind.
type ChatRequest struct {
	Message          string            `json:"message"`
	SessionID        string            `json:"session_id,omitempty"`
	Messages         []Message         `json:"messages,omitempty"`
	ContextDocuments []string          `json:"context_documents,omitempty"`
	SystemPrompt     string            `json:"system_prompt,omitempty"`
	Model            string            `json:"model,omitempty"`
	Temperature      *float32          `json:"temperature,omitempty"`
	MaxOutputTokens  *int              `json:"max_output_tokens,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Validate normalizes and validates the request shape.
//
// # Description
//
// Trims the message, then applies the fixed-order checks described on the
// type. Range checks use the shared go-playground validator so the bounds
// read the same as struct tags elsewhere in the codebase.
//
// # Outputs
//
//   - *ValidationError: the first violation found, or nil
func (r *ChatRequest) Validate(limits ValidationLimits) *ValidationError {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return &ValidationError{
			Kind:   ValidationEmptyMessage,
			Field:  "message",
			Detail: "message must be non-empty after trimming",
		}
	}

	if len(r.Messages) > MaxMessagesPerRequest {
		return &ValidationError{
			Kind:   ValidationOutOfRangeParam,
			Field:  "messages",
			Detail: "too many prior messages",
		}
	}
	for i, m := range r.Messages {
		if !ValidRole(m.Role) {
			return &ValidationError{
				Kind:   ValidationInvalidRole,
				Field:  "messages",
				Detail: fmt.Sprintf("unknown role %q at index %d", m.Role, i),
			}
		}
	}

	if r.Temperature != nil {
		if err := chatValidate.Var(*r.Temperature, "gte=0,lte=2"); err != nil {
			return &ValidationError{
				Kind:   ValidationOutOfRangeParam,
				Field:  "temperature",
				Detail: "temperature must be within [0, 2]",
			}
		}
	}

	if r.MaxOutputTokens != nil {
		if err := chatValidate.Var(*r.MaxOutputTokens, "gt=0"); err != nil || *r.MaxOutputTokens > limits.MaxOutputTokens {
			return &ValidationError{
				Kind:   ValidationOutOfRangeParam,
				Field:  "max_output_tokens",
				Detail: "max_output_tokens must be a positive integer within the configured ceiling",
			}
		}
	}

	if len(r.ContextDocuments) > MaxRequestDocuments {
		return &ValidationError{
			Kind:   ValidationTooManyDocuments,
			Field:  "context_documents",
			Detail: "too many context documents in one request",
		}
	}

	return nil
}

// EnsureSessionID mints a fresh session id when the client did not supply
// one, and returns the id in effect.
func (r *ChatRequest) EnsureSessionID() string {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
	return r.SessionID
}

// =============================================================================
// Chat Response
// =============================================================================

// TokenUsage contains token consumption statistics.
//
// In dry-run mode the counters are derived deterministically from text
// length so the response schema stays stable for downstream consumers.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the body returned by POST /v1/chat.
type ChatResponse struct {
	ID                 string      `json:"id"`
	CreatedAt          time.Time   `json:"created_at"`
	SessionID          string      `json:"session_id"`
	Model              string      `json:"model"`
	Response           string      `json:"response"`
	UpstreamResponseID string      `json:"upstream_response_id,omitempty"`
	Usage              *TokenUsage `json:"usage,omitempty"`
}

// NewChatResponse creates a ChatResponse with a fresh unique id and a UTC
// timestamp.
func NewChatResponse(sessionID, model, text string) *ChatResponse {
	return &ChatResponse{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		SessionID: sessionID,
		Model:     model,
		Response:  text,
	}
}
