// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

func dryRunRequest(message string) CompletionRequest {
	return CompletionRequest{
		SystemPrompt: "base instructions",
		Messages: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: message},
		},
		Model: "gpt-4o-mini",
	}
}

// =============================================================================
// Determinism Tests
// =============================================================================

// Identical requests must produce byte-identical text and usage.
func TestDryRunProvider_Deterministic(t *testing.T) {
	p := &DryRunProvider{}
	req := dryRunRequest("How do we fund a university-industry pilot?")

	first, err := p.Complete(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := p.Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.Usage, again.Usage)
	}
}

func TestDryRunProvider_UsageAlwaysPopulated(t *testing.T) {
	p := &DryRunProvider{}
	result, err := p.Complete(context.Background(), dryRunRequest("hello"))
	require.NoError(t, err)

	require.NotNil(t, result.Usage)
	assert.Positive(t, result.Usage.PromptTokens)
	assert.Positive(t, result.Usage.CompletionTokens)
	assert.Equal(t, result.Usage.PromptTokens+result.Usage.CompletionTokens, result.Usage.TotalTokens)
}

func TestDryRunProvider_EchoesLatestUserMessage(t *testing.T) {
	p := &DryRunProvider{}
	req := CompletionRequest{
		Messages: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: "first question"},
			{Role: datatypes.RoleAssistant, Content: "first answer"},
			{Role: datatypes.RoleUser, Content: "second question"},
		},
	}

	result, err := p.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "second question")
	assert.NotContains(t, result.Text, "first answer")
	assert.Contains(t, result.Text, dryRunDisclaimer)
}

func TestDryRunProvider_NoUserMessage(t *testing.T) {
	p := &DryRunProvider{}
	result, err := p.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "(no user message)")
}

// =============================================================================
// Intent Triage Tests
// =============================================================================

func TestTriageIntent(t *testing.T) {
	tests := []struct {
		message string
		intent  string
	}{
		{"Where can I find a grant for our consortium?", "funding"},
		{"We are preparing a go-to-market plan", "commercialization"},
		{"What regulation applies to drone pilots?", "policy"},
		{"Our lab built a new prototype", "research"},
		{"Drafting an MoU with the city", "partnership"},
		{"Tell me about the weather", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			assert.Equal(t, tt.intent, triageIntent(tt.message))
		})
	}
}

func TestClarifyingQuestions_CapAtFive(t *testing.T) {
	for _, intent := range []string{"funding", "commercialization", "policy", "research", "partnership", "general"} {
		qs := clarifyingQuestions(intent)
		assert.LessOrEqual(t, len(qs), 5, "intent %s", intent)
		assert.NotEmpty(t, qs)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(0))
	assert.Equal(t, 1, estimateTokens(1))
	assert.Equal(t, 1, estimateTokens(4))
	assert.Equal(t, 2, estimateTokens(5))
}
