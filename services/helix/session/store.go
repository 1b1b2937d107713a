// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session maintains the bounded, ordered conversation history
// kept per session id.
//
// # Concurrency Contract
//
// Mutations for the same session id are serialized through a per-session
// mutex: at most one writer is in flight per id. Distinct session ids are
// independent and proceed concurrently with no ordering relationship.
//
// # Trimming Invariants
//
// After any Append the history length never exceeds the configured
// maximum, a leading system message (if one exists) is never evicted,
// and the just-appended messages are always present. Eviction is
// oldest-first among non-system messages.
package session

import (
	"sync"

	"github.com/AleutianAI/helix/services/helix/datatypes"
)

// Store is the in-memory keyed session store.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Store struct {
	maxMessages int

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry holds one session's history behind its own writer lock.
type entry struct {
	mu       sync.Mutex
	messages []datatypes.Message
}

// NewStore creates a Store bounding every session to maxMessages entries.
func NewStore(maxMessages int) *Store {
	return &Store{
		maxMessages: maxMessages,
		sessions:    make(map[string]*entry),
	}
}

// get returns the entry for id, creating it on first use.
func (s *Store) get(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	return e
}

// Render returns the session history in chronological order.
//
// The returned slice is a copy; callers may extend it freely when
// building the message sequence fed to the model invoker.
func (s *Store) Render(id string) []datatypes.Message {
	e := s.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]datatypes.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Append commits msgs to the session and re-applies the bound.
//
// # Description
//
// Append is the single commit point for a request: callers compute the
// new history speculatively and call Append only after authentication,
// validation and model invocation have all succeeded. A failed request
// therefore performs exactly zero store writes.
func (s *Store) Append(id string, msgs ...datatypes.Message) {
	if len(msgs) == 0 {
		return
	}
	e := s.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = trim(append(e.messages, msgs...), s.maxMessages)
}

// Len returns the current history length for id.
func (s *Store) Len(id string) int {
	e := s.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.messages)
}

// Delete removes a session entirely.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// trim evicts the oldest non-system messages until the bound holds.
//
// A leading system message is pinned; everything else is FIFO. The
// newest messages are always at the tail and survive any trim with
// max >= 2.
func trim(msgs []datatypes.Message, max int) []datatypes.Message {
	if len(msgs) <= max {
		return msgs
	}
	if msgs[0].Role == datatypes.RoleSystem {
		overflow := len(msgs) - max
		rest := msgs[1+overflow:]
		out := make([]datatypes.Message, 0, max)
		out = append(out, msgs[0])
		return append(out, rest...)
	}
	return msgs[len(msgs)-max:]
}
