// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grounding

// BaseSystemPrompt is the default system instruction when the request
// does not override it. Answers are anchored to the Triple Helix
// innovation domain and asked to cite sources.
const BaseSystemPrompt = `You are the Triple Helix Innovation Chatbot.

Constraints:
- All answers must be consistent with Triple Helix innovation research (university-industry-government interactions; innovation systems; knowledge/technology transfer).
- Provide citations for factual claims (papers, reports, or credible sources). Use inline citations like [Author, Year] or [Report Name, Year] and include a short "Sources" section when appropriate.
- If a claim is uncertain or not supported by the provided context, say so and ask clarifying questions.
- Prefer evidence-based, specific, and actionable answers.`

// BuildSystemPrompt resolves the system prompt for one request.
//
// The request override replaces the base instruction, but the grounding
// block is always appended so supplied documents cannot be silently
// discarded by a custom prompt.
func BuildSystemPrompt(override string, block Block) string {
	base := BaseSystemPrompt
	if override != "" {
		base = override
	}
	if block.Text == "" {
		return base
	}
	return base + "\n\nReference documents (use these when relevant):\n\n" + block.Text
}
