// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm executes model invocations for the helix service: a live
// OpenAI-backed provider, a deterministic dry-run provider, and the
// retrying invoker that wraps whichever is selected at startup.
package llm

import (
	"context"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

// CompletionRequest is the resolved input to one provider call: system
// prompt with grounding block already applied, full ordered history
// including the new user message, and resolved model parameters.
type CompletionRequest struct {
	SystemPrompt    string
	Messages        []datatypes.Message
	Model           string
	Temperature     float32
	MaxOutputTokens *int
	Metadata        map[string]string
}

// CompletionResult is a successful provider response.
type CompletionResult struct {
	Text       string
	ResponseID string
	Model      string
	Usage      *datatypes.TokenUsage
}

// Provider is a completion backend.
//
// Implementations must be safe for concurrent use. Failures are reported
// as *datatypes.UpstreamError so the invoker can distinguish transient
// kinds (retried) from permanent ones (surfaced immediately).
type Provider interface {
	// Complete performs one completion attempt.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
