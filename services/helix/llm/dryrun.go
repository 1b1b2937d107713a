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
	"fmt"
	"strings"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

// dryRunDisclaimer closes every stub response so downstream consumers
// can tell a local draft from a provider answer.
const dryRunDisclaimer = "_This is a locally generated draft (no external model was called)._"

// DryRunProvider produces a reproducible local response without any
// external call.
//
// # Description
//
// The response is a pure function of the request: the latest user
// message is triaged into an intent, and a structured Triple-Helix
// draft plus intent-specific clarifying questions is rendered around
// it. Identical requests yield byte-identical text and usage. Usage
// counters are derived from text length so the response schema stays
// populated in every mode.
type DryRunProvider struct{}

func (d *DryRunProvider) Name() string { return "dry-run" }

// Complete renders the deterministic stub. It never fails and performs
// zero external calls.
func (d *DryRunProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResult, error) {
	userText := latestUserMessage(req.Messages)
	intent := triageIntent(userText)

	var b strings.Builder
	b.WriteString("### Triple-Helix draft response\n\n")
	b.WriteString("**1) Problem framing**\n")
	fmt.Fprintf(&b, "- %s\n\n", strings.TrimSpace(userText))
	b.WriteString("**2) Stakeholder roles**\n")
	b.WriteString("- **University**: research baseline, talent pipeline, pilots in labs.\n")
	b.WriteString("- **Industry**: define use-cases, validate customers, operationalize pilots.\n")
	b.WriteString("- **Government**: enabling policy, co-funding, procurement pathways.\n\n")
	b.WriteString("**3) Actions**\n")
	b.WriteString("- **0-30 days**: agree problem statement; map stakeholders; pick 1 pilot; define KPIs.\n")
	b.WriteString("- **30-90 days**: run pilot; iterate; secure co-funding; prepare compliance plan.\n")
	b.WriteString("- **90+ days**: scale to 3-5 sites/clients; formalize partnerships; publish outcomes.\n\n")
	b.WriteString("**4) Risks + mitigations**\n")
	b.WriteString("- Misaligned incentives: shared governance + clear IP/data terms.\n")
	b.WriteString("- Pilot does not translate: parallel customer discovery + stage-gates.\n")
	b.WriteString("- Policy friction: early regulator engagement + sandbox approach.\n\n")
	b.WriteString("**5) Next questions**\n")
	for _, q := range clarifyingQuestions(intent) {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	b.WriteString("\n")
	b.WriteString(dryRunDisclaimer)

	text := b.String()
	promptChars := len(req.SystemPrompt)
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}
	usage := &datatypes.TokenUsage{
		PromptTokens:     estimateTokens(promptChars),
		CompletionTokens: estimateTokens(len(text)),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &CompletionResult{
		Text:  text,
		Model: req.Model,
		Usage: usage,
	}, nil
}

// latestUserMessage returns the content of the most recent user turn,
// or a fixed placeholder when none exists.
func latestUserMessage(messages []datatypes.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == datatypes.RoleUser {
			return messages[i].Content
		}
	}
	return "(no user message)"
}

// triageIntent buckets a message by keyword so the stub can ask
// relevant clarifying questions.
func triageIntent(message string) string {
	m := strings.ToLower(strings.TrimSpace(message))
	switch {
	case containsAny(m, "grant", "funding", "proposal", "call for", "rfp"):
		return "funding"
	case containsAny(m, "startup", "product", "go-to-market", "commercial", "pricing"):
		return "commercialization"
	case containsAny(m, "policy", "regulation", "law", "compliance", "public sector", "government"):
		return "policy"
	case containsAny(m, "research", "paper", "university", "lab", "prototype", "method"):
		return "research"
	case containsAny(m, "partnership", "mou", "consortium", "collaboration", "stakeholder"):
		return "partnership"
	default:
		return "general"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// clarifyingQuestions returns up to five questions: intent-specific
// first, common ones after.
func clarifyingQuestions(intent string) []string {
	common := []string{
		"What country/region are you operating in?",
		"What is the target sector (e.g., health, energy, agri, fintech)?",
		"What stage are you at (idea, prototype, pilot, scale)?",
		"Who are the key stakeholders you already have (academia/industry/government)?",
	}
	byIntent := map[string][]string{
		"funding": {
			"What is your rough budget range and timeline?",
			"Is the lead applicant a university, company, or public agency?",
		},
		"commercialization": {
			"Who is the buyer/user and what pain are you solving?",
			"Do you have IP to protect (patent, know-how, data)?",
		},
		"policy": {
			"What policy objective are you aiming for (growth, jobs, resilience, inclusion)?",
			"Are there specific regulations or standards you must meet?",
		},
		"research": {
			"What is the research question and what evidence would validate it?",
			"What datasets, equipment, or facilities do you need?",
		},
		"partnership": {
			"What value does each helix bring (knowledge, market access, legitimacy)?",
			"How will decisions be made (steering group, PI-led, joint venture)?",
		},
	}
	questions := append(byIntent[intent], common...)
	if len(questions) > 5 {
		questions = questions[:5]
	}
	return questions
}

// estimateTokens approximates a token count from character length.
// Four characters per token is the usual rough cut; the point here is
// determinism, not accuracy.
func estimateTokens(chars int) int {
	return (chars + 3) / 4
}

var _ Provider = (*DryRunProvider)(nil)
