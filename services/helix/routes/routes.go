// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/helix/pkg/access"
	"github.com/AleutianAI/helix/services/helix/handlers"
	"github.com/AleutianAI/helix/services/helix/middleware"
)

// SetupRoutes registers all HTTP routes.
//
// Liveness, readiness and metrics stay outside the access gate; the
// /v1 group is gated by the configured authenticator.
func SetupRoutes(router *gin.Engine, authenticator access.Authenticator, deps handlers.ChatDeps) {
	router.GET("/healthz", handlers.HealthCheck)
	router.GET("/readyz", handlers.Readiness(deps.Config, deps.Invoker))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authenticator))
	{
		v1.POST("/chat", handlers.HandleChat(deps))
	}
}
