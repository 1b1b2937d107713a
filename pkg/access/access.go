// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package access provides the authentication modes gating the helix chat
// endpoint.
//
// Three modes exist: public (no credential), private (a single shared
// secret presented as a bearer token or X-API-Key header) and firebase
// (a verifiable, unexpired Firebase ID token). Each mode is an
// Authenticator implementation chosen once at startup; per-request code
// never inspects the mode again.
package access

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when a required credential is missing or
// invalid. Implementations wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMisconfigured is returned when an authenticator cannot be built
// because its server-side secret or credential source is absent.
var ErrMisconfigured = errors.New("access mode misconfigured")

// Mode names the authentication policy in effect.
type Mode string

const (
	ModePublic   Mode = "public"
	ModePrivate  Mode = "private"
	ModeFirebase Mode = "firebase"
)

// Context is the access decision attached to a request after a
// successful Validate. It is request-scoped and never persisted.
type Context struct {
	// Mode is the policy that admitted the request.
	Mode Mode

	// Principal is the verified identity, when the mode produces one.
	// Empty for public and private modes.
	Principal string
}

// Authenticator validates a request credential and returns the access
// context to attach to the request.
//
// Implementations must be safe for concurrent use by multiple
// goroutines and must not mutate shared state during Validate.
type Authenticator interface {
	// Validate checks the supplied token. The token is whatever the
	// transport extracted: a bearer token, an X-API-Key value, or empty
	// when the request carried no credential.
	//
	// Returns ErrUnauthorized (possibly wrapped) when the credential is
	// missing or invalid.
	Validate(ctx context.Context, token string) (*Context, error)
}

// =============================================================================
// Public Mode
// =============================================================================

// PublicAuthenticator admits every request. Used when the service is
// deployed behind an outer gateway or for local development.
type PublicAuthenticator struct{}

// Validate always succeeds; the token is ignored.
func (p PublicAuthenticator) Validate(_ context.Context, _ string) (*Context, error) {
	return &Context{Mode: ModePublic}, nil
}

// =============================================================================
// Private Mode
// =============================================================================

// SharedKeyAuthenticator admits requests presenting the configured shared
// secret. Comparison is constant-time.
type SharedKeyAuthenticator struct {
	key string
}

// NewSharedKeyAuthenticator builds a private-mode authenticator.
// An empty key is a startup configuration error, not a per-request one.
func NewSharedKeyAuthenticator(key string) (*SharedKeyAuthenticator, error) {
	if key == "" {
		return nil, ErrMisconfigured
	}
	return &SharedKeyAuthenticator{key: key}, nil
}

// Validate compares the presented token against the shared secret.
func (s *SharedKeyAuthenticator) Validate(_ context.Context, token string) (*Context, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.key)) != 1 {
		return nil, ErrUnauthorized
	}
	return &Context{Mode: ModePrivate}, nil
}

// Compile-time interface compliance checks.
var (
	_ Authenticator = PublicAuthenticator{}
	_ Authenticator = (*SharedKeyAuthenticator)(nil)
)
