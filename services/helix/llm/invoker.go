// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

// Invoker wraps a Provider with the per-request retry policy.
//
// # Description
//
// Transient failures (rate limits, timeouts, unreachable) are retried
// up to the configured attempt count with exponential backoff. Permanent
// failures (provider rejected the request) surface immediately without
// retry. The caller's context carries the single end-to-end deadline:
// once it expires the attempt sequence aborts with UpstreamTimeout, no
// matter how many attempts remain.
type Invoker struct {
	provider Provider
	attempts int
	backoff  time.Duration
}

// NewInvoker builds an Invoker. attempts includes the first call and is
// clamped to at least 1; backoff is the base delay doubled after each
// failed attempt.
func NewInvoker(provider Provider, attempts int, backoff time.Duration) *Invoker {
	if attempts < 1 {
		attempts = 1
	}
	return &Invoker{provider: provider, attempts: attempts, backoff: backoff}
}

// Provider returns the wrapped backend, for readiness reporting.
func (inv *Invoker) Provider() Provider { return inv.provider }

// Invoke executes the completion with retries.
//
// # Outputs
//
//   - *CompletionResult: on success
//   - error: a *datatypes.UpstreamError whose Attempts field reports how
//     many calls were actually made
func (inv *Invoker) Invoke(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	var lastErr *datatypes.UpstreamError

	for attempt := 1; attempt <= inv.attempts; attempt++ {
		result, err := inv.provider.Complete(ctx, req)
		if err == nil {
			return result, nil
		}

		var upErr *datatypes.UpstreamError
		if !errors.As(err, &upErr) {
			upErr = &datatypes.UpstreamError{Kind: datatypes.UpstreamUnreachable, Err: err}
		}
		upErr.Attempts = attempt
		lastErr = upErr

		if !upErr.Kind.Retryable() {
			return nil, upErr
		}
		if attempt == inv.attempts {
			break
		}

		// The whole-request deadline overrides any remaining attempts.
		if ctx.Err() != nil {
			return nil, &datatypes.UpstreamError{
				Kind:     datatypes.UpstreamTimeout,
				Attempts: attempt,
				Err:      ctx.Err(),
			}
		}

		delay := inv.backoff << (attempt - 1)
		slog.Warn("Retrying upstream call",
			"provider", inv.provider.Name(),
			"attempt", attempt,
			"kind", upErr.Kind,
			"backoff", delay,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &datatypes.UpstreamError{
				Kind:     datatypes.UpstreamTimeout,
				Attempts: attempt,
				Err:      ctx.Err(),
			}
		case <-timer.C:
		}
	}

	return nil, lastErr
}
