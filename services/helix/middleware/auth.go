// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the helix service.
//
// # Authentication Flow
//
// The auth middleware extracts a credential from the request — the
// Authorization bearer token or the X-API-Key header, either is
// accepted — validates it with the configured access.Authenticator,
// and stores the resulting access.Context in the Gin context for
// downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract credential (Bearer token or X-API-Key)
//	   │
//	   ├─► authenticator.Validate(ctx, token)
//	   │
//	   └─► Store access.Context
//	           │
//	           ▼
//	       Handler (retrieves via GetAccess)
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/helix/pkg/access"
	"github.com/AleutianAI/helix/services/helix/datatypes"
	"github.com/AleutianAI/helix/services/helix/observability"
)

// accessContextKey is the Gin context key for the access decision.
const accessContextKey = "helix_access_context"

// SetAccess stores the access decision in the Gin context.
func SetAccess(c *gin.Context, ac *access.Context) {
	c.Set(accessContextKey, ac)
}

// GetAccess retrieves the access decision, or nil when the request has
// not passed the auth middleware.
func GetAccess(c *gin.Context) *access.Context {
	if v, exists := c.Get(accessContextKey); exists {
		if ac, ok := v.(*access.Context); ok {
			return ac
		}
	}
	return nil
}

// AuthMiddleware creates a Gin middleware enforcing the configured
// access mode.
//
// # Description
//
// The credential is taken from "Authorization: Bearer <token>" or, when
// that is absent, from the X-API-Key header. Validation failures abort
// the request with a kind-tagged 401 body before any context assembly
// or session work happens.
func AuthMiddleware(authenticator access.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractCredential(c)

		ac, err := authenticator.Validate(c.Request.Context(), token)
		if err != nil {
			observability.Get().RequestsTotal.WithLabelValues(observability.StageRejectedAuth).Inc()
			ae := classifyAuthError(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": authErrorMessage(ae.Kind),
				"kind":  string(ae.Kind),
			})
			return
		}

		SetAccess(c, ac)
		c.Next()
	}
}

// classifyAuthError folds a Validate failure into a kind-tagged
// datatypes.AuthError. A bad or missing credential is "unauthorized";
// anything else (signing-key fetch, absent server-side secret) means
// the gate itself cannot run and is "misconfigured".
func classifyAuthError(err error) *datatypes.AuthError {
	var ae *datatypes.AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, access.ErrUnauthorized) {
		return datatypes.NewAuthError(datatypes.AuthUnauthorized, "%v", err)
	}
	return datatypes.NewAuthError(datatypes.AuthMisconfigured, "%v", err)
}

// authErrorMessage is the client-facing body text for each kind. The
// detail stays server-side; it may describe internal configuration.
func authErrorMessage(kind datatypes.AuthErrorKind) string {
	if kind == datatypes.AuthMisconfigured {
		return "authentication unavailable"
	}
	return "unauthorized"
}

// extractCredential returns the bearer token when present, the
// X-API-Key value otherwise, or empty string.
//
// The "Bearer" prefix is case-insensitive per RFC 7235.
func extractCredential(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}
