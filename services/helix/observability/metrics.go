// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the helix
// service.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "helix"

// =============================================================================
// Pipeline Stages
// =============================================================================

// Stage names for the per-request processing state machine. Used as
// metric and log labels.
const (
	StageReceived         = "received"
	StageAuthorized       = "authorized"
	StageValidated        = "validated"
	StageContextAssembled = "context_assembled"
	StageHistoryMerged    = "history_merged"
	StageInvoked          = "invoked"
	StageComposed         = "composed"
	StageLogged           = "logged"

	// Terminal failure stages.
	StageRejectedAuth       = "rejected_auth"
	StageRejectedValidation = "rejected_validation"
	StageUpstreamFailed     = "upstream_failed"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Metrics holds all Prometheus metrics for the chat pipeline.
//
// Initialize once at startup via Init(); handlers obtain the shared
// instance with Get().
type Metrics struct {
	// RequestsTotal counts chat requests by terminal stage.
	// Labels: stage (logged, rejected_auth, rejected_validation,
	// upstream_failed)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures end-to-end chat request latency.
	// Labels: status (success, error)
	RequestDurationSeconds *prometheus.HistogramVec

	// UpstreamAttemptsTotal counts provider call attempts.
	// Labels: provider (openai, dry-run), outcome (success, kind of
	// failure)
	UpstreamAttemptsTotal *prometheus.CounterVec

	// TokensTotal counts tokens by direction and model.
	// Labels: direction (prompt, completion), model
	TokensTotal *prometheus.CounterVec

	// TranscriptFailuresTotal counts best-effort sink append failures.
	TranscriptFailuresTotal prometheus.Counter

	// DocumentsTruncatedTotal counts context documents dropped or
	// length-capped by the grounding assembler.
	DocumentsTruncatedTotal prometheus.Counter

	// ActiveRequests gauges chat requests currently in flight.
	ActiveRequests prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// Init registers all metrics with the default registry. Safe to call
// more than once; only the first call registers.
func Init() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "chat_requests_total",
				Help:      "Chat requests by terminal pipeline stage.",
			}, []string{"stage"}),
			RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "chat_request_duration_seconds",
				Help:      "End-to-end chat request latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			UpstreamAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_attempts_total",
				Help:      "Completion provider call attempts by outcome.",
			}, []string{"provider", "outcome"}),
			TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tokens_total",
				Help:      "Token usage by direction and model.",
			}, []string{"direction", "model"}),
			TranscriptFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transcript_failures_total",
				Help:      "Transcript sink append failures (non-fatal).",
			}),
			DocumentsTruncatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "documents_truncated_total",
				Help:      "Context documents dropped or length-capped.",
			}),
			ActiveRequests: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_chat_requests",
				Help:      "Chat requests currently in flight.",
			}),
		}
	})
	return metricsInstance
}

// Get returns the shared metrics instance, initializing it on first use.
func Get() *Metrics {
	return Init()
}
