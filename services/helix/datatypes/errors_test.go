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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamErrorKindRetryable(t *testing.T) {
	assert.True(t, UpstreamTimeout.Retryable())
	assert.True(t, UpstreamRateLimited.Retryable())
	assert.True(t, UpstreamUnreachable.Retryable())
	assert.False(t, UpstreamRejected.Retryable())
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UpstreamError{Kind: UpstreamUnreachable, Attempts: 3, Err: cause}

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("invoke: %w", err)
	var ue *UpstreamError
	require.True(t, errors.As(wrapped, &ue))
	assert.Equal(t, UpstreamUnreachable, ue.Kind)
	assert.Equal(t, 3, ue.Attempts)
}

func TestAuthErrorMessage(t *testing.T) {
	err := NewAuthError(AuthUnauthorized, "bad key for %s", "tenant-1")
	assert.Contains(t, err.Error(), "bad key for tenant-1")
	assert.Equal(t, AuthUnauthorized, err.Kind)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Kind: ValidationEmptyMessage, Field: "message", Detail: "empty"}
	assert.Contains(t, err.Error(), "message")
	assert.Contains(t, err.Error(), string(ValidationEmptyMessage))
}
