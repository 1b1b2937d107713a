// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package access

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// firebaseJWKSURL serves the rotating public keys Firebase signs ID
// tokens with.
const firebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// FirebaseAuthenticator validates Firebase Auth ID tokens.
//
// # Description
//
// ID tokens are RS256 JWTs signed by Google's securetoken service. The
// authenticator fetches and caches the signing keys (JWKS), then checks
// signature, expiry, issuer and audience on every request. The verified
// subject claim becomes the request principal.
//
// # Thread Safety
//
// Safe for concurrent use. The JWKS cache handles refresh internally.
type FirebaseAuthenticator struct {
	projectID string
	issuer    string

	// cache fetches live keys; keys overrides it with a static set for
	// tests and air-gapped deployments.
	cache *jwk.Cache
	keys  jwk.Set
}

// NewFirebaseAuthenticator builds a firebase-mode authenticator for the
// given project.
//
// # Inputs
//
//   - ctx: governs the lifetime of the background JWKS refresher
//   - projectID: the Firebase project whose tokens are accepted; fixes
//     the expected issuer and audience
//
// # Outputs
//
//   - *FirebaseAuthenticator: ready for concurrent Validate calls
//   - error: ErrMisconfigured for an empty project id, or a JWKS
//     registration failure
func NewFirebaseAuthenticator(ctx context.Context, projectID string) (*FirebaseAuthenticator, error) {
	if projectID == "" {
		return nil, ErrMisconfigured
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(firebaseJWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register firebase JWKS: %w", err)
	}
	return &FirebaseAuthenticator{
		projectID: projectID,
		issuer:    "https://securetoken.google.com/" + projectID,
		cache:     cache,
	}, nil
}

// NewFirebaseAuthenticatorWithKeySet builds an authenticator that
// verifies against a fixed key set instead of the live JWKS endpoint.
// Used by tests to sign tokens with a local key.
func NewFirebaseAuthenticatorWithKeySet(projectID string, keys jwk.Set) (*FirebaseAuthenticator, error) {
	if projectID == "" {
		return nil, ErrMisconfigured
	}
	return &FirebaseAuthenticator{
		projectID: projectID,
		issuer:    "https://securetoken.google.com/" + projectID,
		keys:      keys,
	}, nil
}

// Validate verifies the ID token and returns the verified subject as the
// request principal.
func (f *FirebaseAuthenticator) Validate(ctx context.Context, token string) (*Context, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}

	keys, err := f.keySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch firebase signing keys: %w", err)
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(f.issuer),
		jwt.WithAudience(f.projectID),
	)
	if err != nil {
		// Covers bad signature, expiry, wrong issuer/audience.
		return nil, fmt.Errorf("invalid firebase token: %w", ErrUnauthorized)
	}

	sub := tok.Subject()
	if sub == "" {
		return nil, fmt.Errorf("firebase token missing subject: %w", ErrUnauthorized)
	}

	return &Context{Mode: ModeFirebase, Principal: sub}, nil
}

// keySet returns the static set when configured, the live cache otherwise.
func (f *FirebaseAuthenticator) keySet(ctx context.Context) (jwk.Set, error) {
	if f.keys != nil {
		return f.keys, nil
	}
	return f.cache.Get(ctx, firebaseJWKSURL)
}

var _ Authenticator = (*FirebaseAuthenticator)(nil)
