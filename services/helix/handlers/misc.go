// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/helix/services/helix/config"
	"github.com/AleutianAI/helix/services/helix/llm"
)

// HealthCheck reports process liveness. Always 200; no auth.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports serving posture: the access mode in effect, the
// resolved model, and whether a live provider credential is present
// (false means dry-run).
//
// Like liveness this is unauthenticated, so the body carries posture
// only, never secret material.
func Readiness(cfg *config.Config, invoker *llm.Invoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ready",
			"access_mode":     string(cfg.AccessMode),
			"model":           cfg.Model,
			"provider":        invoker.Provider().Name(),
			"live_credential": !cfg.DryRun,
		})
	}
}
