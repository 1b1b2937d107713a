// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grounding assembles context documents into the bounded
// grounding block injected into the model prompt.
//
// Assembly is pure and deterministic: identical inputs always yield an
// identical block, with no randomness or wall-clock dependency. Excess
// documents are dropped whole — never cut mid-content — and every
// dropped or length-capped document is flagged rather than silently
// discarded.
package grounding

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is one context document considered for the grounding block.
// Ephemeral: built per request and never stored.
type Document struct {
	// Source identifies where the text came from: "request[3]" for
	// request-supplied documents, a file name for preloaded ones.
	Source string

	// Text is the document content, possibly capped to the configured
	// per-document length.
	Text string

	// Truncated is true when the document was length-capped or dropped
	// from the block entirely because the document cap was exceeded.
	Truncated bool
}

// Limits carries the configured assembly caps.
type Limits struct {
	// MaxDocs caps how many whole documents enter the block.
	MaxDocs int

	// MaxDocChars caps the text length of a single document.
	MaxDocChars int
}

// Block is the assembled grounding block.
type Block struct {
	// Documents lists every considered document in priority order,
	// including dropped ones (flagged Truncated and excluded from Text).
	Documents []Document

	// Text is the concatenation of the surviving documents with
	// explicit boundary markers. Empty when no documents survive.
	Text string

	// Retained is the number of documents present in Text.
	Retained int
}

// Assemble merges request-supplied texts and preloaded documents into a
// grounding block under the configured caps.
//
// # Description
//
// Request-supplied documents take priority over preloaded ones, in the
// order given. When the count exceeds Limits.MaxDocs the lowest-priority
// (last) whole documents are dropped and flagged. Each surviving
// document longer than Limits.MaxDocChars is cut at the cap and flagged.
// Blank documents are skipped entirely.
func Assemble(supplied []string, preloaded []Document, limits Limits) Block {
	docs := make([]Document, 0, len(supplied)+len(preloaded))
	for i, text := range supplied {
		t := strings.TrimSpace(text)
		if t == "" {
			continue
		}
		docs = append(docs, Document{Source: fmt.Sprintf("request[%d]", i), Text: t})
	}
	for _, d := range preloaded {
		t := strings.TrimSpace(d.Text)
		if t == "" {
			continue
		}
		docs = append(docs, Document{Source: d.Source, Text: t, Truncated: d.Truncated})
	}

	var b strings.Builder
	retained := 0
	for i := range docs {
		if retained >= limits.MaxDocs {
			// Dropped whole: flagged, text left out of the block.
			docs[i].Truncated = true
			continue
		}
		if limits.MaxDocChars > 0 && len(docs[i].Text) > limits.MaxDocChars {
			docs[i].Text = capText(docs[i].Text, limits.MaxDocChars)
			docs[i].Truncated = true
		}
		retained++
		fmt.Fprintf(&b, "--- Context Document %d (%s) ---\n%s\n--- End Context Document %d ---\n\n",
			retained, docs[i].Source, docs[i].Text, retained)
	}

	return Block{
		Documents: docs,
		Text:      strings.TrimSuffix(b.String(), "\n"),
		Retained:  retained,
	}
}

// capText cuts s to at most max bytes, backing the cut up to a rune
// boundary so the result is always valid UTF-8.
func capText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
