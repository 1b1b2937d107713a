// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "fmt"

// =============================================================================
// Authentication Errors
// =============================================================================

// AuthErrorKind distinguishes request credential failures from server-side
// configuration failures.
type AuthErrorKind string

const (
	// AuthUnauthorized means the request credential is missing or invalid.
	AuthUnauthorized AuthErrorKind = "unauthorized"

	// AuthMisconfigured means the configured access mode cannot be
	// enforced because a server-side secret is absent.
	AuthMisconfigured AuthErrorKind = "misconfigured"
)

// AuthError reports an access-control failure.
type AuthError struct {
	Kind   AuthErrorKind
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("auth error: %s", e.Kind)
	}
	return fmt.Sprintf("auth error: %s: %s", e.Kind, e.Detail)
}

// NewAuthError builds an AuthError with a formatted detail message.
func NewAuthError(kind AuthErrorKind, format string, args ...any) *AuthError {
	return &AuthError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationErrorKind names the first request-shape violation found.
// Checks run in a fixed field order so the reported kind is deterministic.
type ValidationErrorKind string

const (
	ValidationEmptyMessage     ValidationErrorKind = "empty_message"
	ValidationInvalidRole      ValidationErrorKind = "invalid_role"
	ValidationOutOfRangeParam  ValidationErrorKind = "out_of_range_param"
	ValidationTooManyDocuments ValidationErrorKind = "too_many_documents"
)

// ValidationError reports the first malformed field of a request.
type ValidationError struct {
	Kind   ValidationErrorKind
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: field %q: %s", e.Kind, e.Field, e.Detail)
}

// =============================================================================
// Upstream Errors
// =============================================================================

// UpstreamErrorKind classifies completion-provider failures.
type UpstreamErrorKind string

const (
	// UpstreamTimeout means the end-to-end request budget was exhausted
	// before the provider answered.
	UpstreamTimeout UpstreamErrorKind = "timeout"

	// UpstreamRateLimited means the provider throttled the request.
	// Retried internally before ever being surfaced.
	UpstreamRateLimited UpstreamErrorKind = "rate_limited"

	// UpstreamRejected means the provider refused the request as
	// malformed. Never retried.
	UpstreamRejected UpstreamErrorKind = "rejected"

	// UpstreamUnreachable means the provider could not be contacted.
	UpstreamUnreachable UpstreamErrorKind = "unreachable"
)

// UpstreamError reports a provider-side failure after the retry policy
// has been exhausted.
type UpstreamError struct {
	Kind     UpstreamErrorKind
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream error: %s after %d attempt(s)", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("upstream error: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the kind is transient and worth another
// attempt within the request budget.
func (k UpstreamErrorKind) Retryable() bool {
	switch k {
	case UpstreamRateLimited, UpstreamUnreachable, UpstreamTimeout:
		return true
	default:
		return false
	}
}
