// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

func user(text string) datatypes.Message {
	return datatypes.Message{Role: datatypes.RoleUser, Content: text}
}

func assistant(text string) datatypes.Message {
	return datatypes.Message{Role: datatypes.RoleAssistant, Content: text}
}

// =============================================================================
// Basic Semantics Tests
// =============================================================================

func TestStore_RenderEmptySession(t *testing.T) {
	s := NewStore(10)
	assert.Empty(t, s.Render("unknown"))
	assert.Zero(t, s.Len("unknown"))
}

func TestStore_AppendAndRender(t *testing.T) {
	s := NewStore(10)
	s.Append("sess", user("q1"), assistant("a1"))
	s.Append("sess", user("q2"), assistant("a2"))

	got := s.Render("sess")
	require.Len(t, got, 4)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a2", got[3].Content)
}

func TestStore_RenderReturnsCopy(t *testing.T) {
	s := NewStore(10)
	s.Append("sess", user("original"))

	got := s.Render("sess")
	got[0].Content = "mutated"

	assert.Equal(t, "original", s.Render("sess")[0].Content)
}

func TestStore_SessionsAreIndependent(t *testing.T) {
	s := NewStore(10)
	s.Append("a", user("for a"))
	s.Append("b", user("for b"))

	assert.Equal(t, 1, s.Len("a"))
	assert.Equal(t, 1, s.Len("b"))
	assert.Equal(t, "for a", s.Render("a")[0].Content)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(10)
	s.Append("sess", user("q"))
	s.Delete("sess")
	assert.Zero(t, s.Len("sess"))
}

// =============================================================================
// Trimming Invariant Tests
// =============================================================================

func TestStore_BoundNeverExceeded(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 20; i++ {
		s.Append("sess", user(fmt.Sprintf("q%d", i)))
		assert.LessOrEqual(t, s.Len("sess"), 4)
	}
}

func TestStore_EvictsOldestFirst(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Append("sess", user(fmt.Sprintf("q%d", i)))
	}

	got := s.Render("sess")
	require.Len(t, got, 3)
	assert.Equal(t, "q2", got[0].Content)
	assert.Equal(t, "q4", got[2].Content)
}

func TestStore_LeadingSystemMessagePinned(t *testing.T) {
	s := NewStore(3)
	s.Append("sess", datatypes.Message{Role: datatypes.RoleSystem, Content: "instructions"})
	for i := 0; i < 6; i++ {
		s.Append("sess", user(fmt.Sprintf("q%d", i)))
	}

	got := s.Render("sess")
	require.Len(t, got, 3)
	assert.Equal(t, datatypes.RoleSystem, got[0].Role)
	assert.Equal(t, "instructions", got[0].Content)
	// Tail keeps the newest turns.
	assert.Equal(t, "q4", got[1].Content)
	assert.Equal(t, "q5", got[2].Content)
}

func TestStore_JustAppendedAlwaysPresent(t *testing.T) {
	s := NewStore(2)
	s.Append("sess", datatypes.Message{Role: datatypes.RoleSystem, Content: "sys"})
	s.Append("sess", user("old1"), user("old2"))

	s.Append("sess", user("newest"))

	got := s.Render("sess")
	require.Len(t, got, 2)
	assert.Equal(t, datatypes.RoleSystem, got[0].Role)
	assert.Equal(t, "newest", got[1].Content)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", g%2)
			for i := 0; i < 100; i++ {
				s.Append(id, user(fmt.Sprintf("g%d-m%d", g, i)))
				_ = s.Render(id)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len("sess-0"))
	assert.Equal(t, 50, s.Len("sess-1"))
}
