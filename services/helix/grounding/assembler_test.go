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

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MaxDocs: 10, MaxDocChars: 8000}

// =============================================================================
// Assembly Tests
// =============================================================================

func TestAssemble_EmptyInput(t *testing.T) {
	block := Assemble(nil, nil, testLimits)
	assert.Empty(t, block.Documents)
	assert.Empty(t, block.Text)
	assert.Zero(t, block.Retained)
}

func TestAssemble_BoundaryMarkers(t *testing.T) {
	block := Assemble([]string{"alpha text", "beta text"}, nil, testLimits)

	require.Equal(t, 2, block.Retained)
	assert.Contains(t, block.Text, "--- Context Document 1 (request[0]) ---")
	assert.Contains(t, block.Text, "alpha text")
	assert.Contains(t, block.Text, "--- Context Document 2 (request[1]) ---")
	assert.Contains(t, block.Text, "beta text")
	assert.Contains(t, block.Text, "--- End Context Document 2 ---")
}

// Supplying more documents than the cap keeps the first cap-many whole
// documents and flags the rest; nothing is half-included.
func TestAssemble_DocCountCap(t *testing.T) {
	docs := make([]string, 15)
	for i := range docs {
		docs[i] = fmt.Sprintf("document body %d", i)
	}

	block := Assemble(docs, nil, testLimits)

	assert.Equal(t, 10, block.Retained)
	require.Len(t, block.Documents, 15)

	flagged := 0
	for i, d := range block.Documents {
		if i < 10 {
			assert.False(t, d.Truncated, "doc %d should survive intact", i)
			assert.Contains(t, block.Text, d.Text)
		} else {
			assert.True(t, d.Truncated, "doc %d should be flagged", i)
			assert.NotContains(t, block.Text, d.Text)
			flagged++
		}
	}
	assert.Equal(t, 5, flagged)
}

func TestAssemble_PerDocCharCap(t *testing.T) {
	long := strings.Repeat("x", 9000)
	block := Assemble([]string{long}, nil, testLimits)

	require.Equal(t, 1, block.Retained)
	require.Len(t, block.Documents, 1)
	assert.True(t, block.Documents[0].Truncated)
	assert.Len(t, block.Documents[0].Text, 8000)
}

// A cap landing inside a multi-byte rune backs up to the previous
// boundary instead of leaving an invalid trailing sequence.
func TestAssemble_TruncationKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("é", 10) // 2 bytes per rune
	block := Assemble([]string{long}, nil, Limits{MaxDocs: 10, MaxDocChars: 5})

	require.Len(t, block.Documents, 1)
	doc := block.Documents[0]
	assert.True(t, doc.Truncated)
	assert.True(t, utf8.ValidString(doc.Text))
	assert.Equal(t, strings.Repeat("é", 2), doc.Text)
	assert.True(t, utf8.ValidString(block.Text))
}

func TestCapText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"ascii under cap", "short", 10, "short"},
		{"ascii at cap", "exact", 5, "exact"},
		{"ascii over cap", "toolong", 4, "tool"},
		{"cut inside rune", "日本語", 4, "日"},
		{"cut on boundary", "日本語", 6, "日本"},
		{"all multibyte dropped", "日", 2, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := capText(tc.in, tc.max)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestAssemble_RequestDocsBeforePreloaded(t *testing.T) {
	preloaded := []Document{
		{Source: "library/a.md", Text: "library doc a"},
		{Source: "library/b.md", Text: "library doc b"},
	}
	block := Assemble([]string{"request doc"}, preloaded, Limits{MaxDocs: 2, MaxDocChars: 8000})

	assert.Equal(t, 2, block.Retained)
	assert.Contains(t, block.Text, "request doc")
	assert.Contains(t, block.Text, "library doc a")
	// Lowest priority preloaded doc dropped whole.
	assert.NotContains(t, block.Text, "library doc b")
	assert.True(t, block.Documents[2].Truncated)
}

func TestAssemble_SkipsBlankDocuments(t *testing.T) {
	block := Assemble([]string{"", "  \n\t ", "real content"}, nil, testLimits)
	require.Len(t, block.Documents, 1)
	assert.Equal(t, 1, block.Retained)
	assert.Contains(t, block.Text, "real content")
}

// The same inputs must always produce the same block, byte for byte.
func TestAssemble_Deterministic(t *testing.T) {
	docs := []string{"one", "two", "three"}
	preloaded := []Document{{Source: "lib/x.txt", Text: "four"}}

	first := Assemble(docs, preloaded, testLimits)
	for i := 0; i < 5; i++ {
		again := Assemble(docs, preloaded, testLimits)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.Retained, again.Retained)
	}
}

// =============================================================================
// System Prompt Tests
// =============================================================================

func TestBuildSystemPrompt_DefaultBase(t *testing.T) {
	block := Assemble([]string{"grounding fact"}, nil, testLimits)
	prompt := BuildSystemPrompt("", block)

	assert.Contains(t, prompt, BaseSystemPrompt)
	assert.Contains(t, prompt, "grounding fact")
}

func TestBuildSystemPrompt_OverrideKeepsGrounding(t *testing.T) {
	block := Assemble([]string{"grounding fact"}, nil, testLimits)
	prompt := BuildSystemPrompt("You are a terse assistant.", block)

	assert.Contains(t, prompt, "You are a terse assistant.")
	assert.NotContains(t, prompt, BaseSystemPrompt)
	// The grounding block survives an override.
	assert.Contains(t, prompt, "grounding fact")
}

func TestBuildSystemPrompt_NoDocuments(t *testing.T) {
	prompt := BuildSystemPrompt("", Block{})
	assert.Equal(t, BaseSystemPrompt, prompt)
}
