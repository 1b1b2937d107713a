// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/helix/pkg/access"
	"github.com/AleutianAI/helix/services/helix/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gatedRouter wires the auth middleware in front of a probe handler
// that reports the stored access context.
func gatedRouter(authenticator access.Authenticator) *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(authenticator))
	router.GET("/probe", func(c *gin.Context) {
		ac := GetAccess(c)
		if ac == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no access context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mode": string(ac.Mode), "principal": ac.Principal})
	})
	return router
}

// =============================================================================
// Auth Middleware Tests
// =============================================================================

func TestAuthMiddleware_PublicMode(t *testing.T) {
	router := gatedRouter(access.PublicAuthenticator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_PrivateMode(t *testing.T) {
	auth, err := access.NewSharedKeyAuthenticator("secret")
	require.NoError(t, err)
	router := gatedRouter(auth)

	t.Run("bearer token accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("x-api-key accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set("X-API-Key", "secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing credential rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unauthorized", body["kind"])
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed authorization header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Basic secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("case-insensitive bearer prefix", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// brokenAuthenticator simulates a gate that cannot run, e.g. a
// signing-key fetch failure or an absent server-side secret.
type brokenAuthenticator struct {
	err error
}

func (b brokenAuthenticator) Validate(_ context.Context, _ string) (*access.Context, error) {
	return nil, b.err
}

// A gate failure that is not a credential problem reports the
// misconfigured kind, not a blanket unauthorized.
func TestAuthMiddleware_MisconfiguredKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"bare sentinel", access.ErrMisconfigured},
		{"wrapped sentinel", fmt.Errorf("firebase project: %w", access.ErrMisconfigured)},
		{"credential source failure", errors.New("fetch firebase signing keys: connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gatedRouter(brokenAuthenticator{err: tc.err})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/probe", nil)
			req.Header.Set("Authorization", "Bearer anything")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(datatypes.AuthMisconfigured), body["kind"])
			assert.Equal(t, "authentication unavailable", body["error"])
		})
	}
}

// A credential failure keeps the unauthorized kind even when the
// authenticator wraps the sentinel.
func TestClassifyAuthError(t *testing.T) {
	ae := classifyAuthError(fmt.Errorf("invalid firebase token: %w", access.ErrUnauthorized))
	assert.Equal(t, datatypes.AuthUnauthorized, ae.Kind)

	ae = classifyAuthError(datatypes.NewAuthError(datatypes.AuthMisconfigured, "no key"))
	assert.Equal(t, datatypes.AuthMisconfigured, ae.Kind)
	assert.Equal(t, "no key", ae.Detail)
}

// =============================================================================
// Request ID Middleware Tests
// =============================================================================

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		router.ServeHTTP(w, req)

		echoed := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, echoed)
		assert.Equal(t, echoed, w.Body.String())
	})

	t.Run("echoes client-supplied id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/probe", nil)
		req.Header.Set(RequestIDHeader, "client-id-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, "client-id-1", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "client-id-1", w.Body.String())
	})
}
