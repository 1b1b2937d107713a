// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transcript records completed chat exchanges.
//
// Appends are best-effort: the response path never waits on the sink and
// a sink failure never converts a successful response into an error. The
// handler fires appends on a detached goroutine and only counts
// failures for observability.
package transcript

import (
	"context"
	"time"
)

// Entry is one recorded conversation turn.
type Entry struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink persists conversation turns.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Append records one turn. Errors are reported for observability
	// only; callers must not fail the request on them.
	Append(ctx context.Context, sessionID, role, text string, timestamp time.Time) error

	// Close releases sink resources.
	Close() error
}

// NopSink discards every entry. Used when no transcript path is
// configured and in tests.
type NopSink struct{}

func (NopSink) Append(_ context.Context, _, _, _ string, _ time.Time) error { return nil }

func (NopSink) Close() error { return nil }

var _ Sink = NopSink{}
