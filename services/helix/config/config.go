// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config resolves all helix service configuration once at startup.
//
// Configuration is read from environment variables, optionally layered on
// top of a YAML file named by HELIX_CONFIG_FILE. The resolved Config value
// is passed explicitly into every constructor; nothing in the service reads
// the environment after Load returns.
//
// # Live vs Dry-Run Resolution
//
// The decision to call the external completion provider is made exactly
// once, here. Dry-run mode is selected when HELIX_DRY_RUN is truthy or when
// no OPENAI_API_KEY is configured. Handlers and the model invoker only ever
// consult Config.DryRun.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccessMode is the authentication policy gating the chat endpoint.
type AccessMode string

const (
	// ModePublic requires no credential.
	ModePublic AccessMode = "public"

	// ModePrivate requires the shared API key as a bearer token or
	// X-API-Key header.
	ModePrivate AccessMode = "private"

	// ModeFirebase requires a verifiable, unexpired Firebase ID token.
	ModeFirebase AccessMode = "firebase"
)

// Defaults applied by Load when neither the environment nor the config
// file provides a value.
const (
	DefaultPort               = 8080
	DefaultModel              = "gpt-4o-mini"
	DefaultTemperature        = 0.2
	DefaultMaxContextDocs     = 10
	DefaultMaxDocChars        = 8000
	DefaultMaxOutputTokens    = 64000
	DefaultSessionMaxMessages = 50
	DefaultUpstreamAttempts   = 3
	DefaultUpstreamBackoff    = 500 * time.Millisecond
	DefaultRequestTimeout     = 60 * time.Second
)

// Config holds the resolved helix service configuration.
//
// # Description
//
// Config centralizes every tunable of the service: network settings,
// access control, model parameters, context-document caps, session bounds,
// retry policy and sink locations. A zero value is not usable; construct
// via Load (production) or build literals in tests.
//
// # Thread Safety
//
// Config is read-only after Load returns and safe to share across
// goroutines.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// AccessMode selects the authentication policy: public, private
	// or firebase.
	AccessMode AccessMode `yaml:"access_mode"`

	// APIKey is the shared secret required in private mode.
	APIKey string `yaml:"api_key"`

	// FirebaseProjectID is the project whose ID tokens are accepted in
	// firebase mode. Determines the expected issuer and audience.
	FirebaseProjectID string `yaml:"firebase_project_id"`

	// OpenAIAPIKey is the live-provider credential. Empty selects
	// dry-run mode.
	OpenAIAPIKey string `yaml:"-"`

	// OpenAIBaseURL overrides the provider endpoint (for proxies and
	// compatible servers). Empty uses the SDK default.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// Model is the default model identifier when the request omits one.
	Model string `yaml:"model"`

	// Temperature is the default sampling temperature when the request
	// omits one.
	Temperature float32 `yaml:"temperature"`

	// DryRun forces the deterministic local responder even when a
	// provider credential is configured.
	DryRun bool `yaml:"dry_run"`

	// MaxContextDocs caps how many context documents survive into the
	// grounding block. Excess documents are dropped whole and flagged.
	MaxContextDocs int `yaml:"max_context_docs"`

	// MaxDocChars caps the extracted length of a single document.
	MaxDocChars int `yaml:"max_doc_chars"`

	// MaxOutputTokens is the ceiling for the request max_output_tokens
	// parameter.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// SessionMaxMessages bounds per-session conversation history.
	SessionMaxMessages int `yaml:"session_max_messages"`

	// DocsDir is an optional directory of preloaded grounding documents.
	DocsDir string `yaml:"docs_dir"`

	// TranscriptPath is the Badger directory for the transcript sink.
	// Empty disables persistence (nop sink).
	TranscriptPath string `yaml:"transcript_path"`

	// UpstreamAttempts is the maximum number of provider call attempts
	// per request, including the first.
	UpstreamAttempts int `yaml:"upstream_attempts"`

	// UpstreamBackoff is the base delay for exponential retry backoff.
	UpstreamBackoff time.Duration `yaml:"upstream_backoff"`

	// RequestTimeout is the single end-to-end budget for a chat request,
	// covering all provider attempts.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// OTelEndpoint is the OTLP collector address. Empty disables the
	// exporter.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// GinMode sets the Gin framework mode (debug, release, test).
	GinMode string `yaml:"gin_mode"`
}

// Load builds a Config from the environment, layered over the optional
// YAML file named by HELIX_CONFIG_FILE.
//
// # Description
//
// Precedence is environment over file over defaults. Load also performs
// startup validation: an access mode that requires a server-side secret
// fails here, not per request. A missing OPENAI_API_KEY is not an error;
// it selects dry-run mode.
//
// # Outputs
//
//   - *Config: fully resolved configuration
//   - error: non-nil for an unreadable config file, an unknown access
//     mode, or a mode whose required credential is absent
func Load() (*Config, error) {
	cfg := &Config{
		Port:               DefaultPort,
		AccessMode:         ModePublic,
		Model:              DefaultModel,
		Temperature:        DefaultTemperature,
		MaxContextDocs:     DefaultMaxContextDocs,
		MaxDocChars:        DefaultMaxDocChars,
		MaxOutputTokens:    DefaultMaxOutputTokens,
		SessionMaxMessages: DefaultSessionMaxMessages,
		UpstreamAttempts:   DefaultUpstreamAttempts,
		UpstreamBackoff:    DefaultUpstreamBackoff,
		RequestTimeout:     DefaultRequestTimeout,
	}

	if path := os.Getenv("HELIX_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnvInt("HELIX_PORT", cfg.Port)
	cfg.AccessMode = AccessMode(strings.ToLower(getEnvString("HELIX_ACCESS_MODE", string(cfg.AccessMode))))
	cfg.APIKey = getEnvString("HELIX_API_KEY", cfg.APIKey)
	cfg.FirebaseProjectID = getEnvString("HELIX_FIREBASE_PROJECT_ID", cfg.FirebaseProjectID)
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.Model = getEnvString("HELIX_MODEL", cfg.Model)
	cfg.Temperature = getEnvFloat32("HELIX_TEMPERATURE", cfg.Temperature)
	cfg.DryRun = getEnvBool("HELIX_DRY_RUN", cfg.DryRun)
	cfg.MaxContextDocs = getEnvInt("HELIX_MAX_CONTEXT_DOCS", cfg.MaxContextDocs)
	cfg.MaxDocChars = getEnvInt("HELIX_MAX_DOC_CHARS", cfg.MaxDocChars)
	cfg.MaxOutputTokens = getEnvInt("HELIX_MAX_OUTPUT_TOKENS", cfg.MaxOutputTokens)
	cfg.SessionMaxMessages = getEnvInt("HELIX_SESSION_MAX_MESSAGES", cfg.SessionMaxMessages)
	cfg.DocsDir = getEnvString("HELIX_DOCS_DIR", cfg.DocsDir)
	cfg.TranscriptPath = getEnvString("HELIX_TRANSCRIPT_PATH", cfg.TranscriptPath)
	cfg.UpstreamAttempts = getEnvInt("HELIX_UPSTREAM_ATTEMPTS", cfg.UpstreamAttempts)
	cfg.UpstreamBackoff = getEnvDuration("HELIX_UPSTREAM_BACKOFF_MS", cfg.UpstreamBackoff)
	cfg.RequestTimeout = getEnvDuration("HELIX_REQUEST_TIMEOUT_MS", cfg.RequestTimeout)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.GinMode = getEnvString("GIN_MODE", cfg.GinMode)

	// The API key may arrive via container secret file instead of env.
	if cfg.OpenAIAPIKey == "" {
		if content, err := os.ReadFile("/run/secrets/openai_api_key"); err == nil {
			cfg.OpenAIAPIKey = strings.TrimSpace(string(content))
		}
	}

	if !cfg.DryRun && cfg.OpenAIAPIKey == "" {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks startup invariants: a recognized access mode, and the
// presence of whatever server-side credential that mode requires.
func (c *Config) Validate() error {
	switch c.AccessMode {
	case ModePublic:
	case ModePrivate:
		if c.APIKey == "" {
			return fmt.Errorf("access mode is private but HELIX_API_KEY is not set")
		}
	case ModeFirebase:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("access mode is firebase but HELIX_FIREBASE_PROJECT_ID is not set")
		}
	default:
		return fmt.Errorf("invalid HELIX_ACCESS_MODE: %q", c.AccessMode)
	}
	if c.UpstreamAttempts < 1 {
		return fmt.Errorf("HELIX_UPSTREAM_ATTEMPTS must be at least 1, got %d", c.UpstreamAttempts)
	}
	if c.MaxContextDocs < 1 {
		return fmt.Errorf("HELIX_MAX_CONTEXT_DOCS must be at least 1, got %d", c.MaxContextDocs)
	}
	if c.SessionMaxMessages < 2 {
		return fmt.Errorf("HELIX_SESSION_MAX_MESSAGES must be at least 2, got %d", c.SessionMaxMessages)
	}
	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat32 returns the environment variable as float32 or a default.
func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count from the environment.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
