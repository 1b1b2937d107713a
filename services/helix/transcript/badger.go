// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerSink persists transcript entries in an embedded BadgerDB.
//
// # Description
//
// Entries are keyed transcript/<session>/<sequence> with a process-wide
// monotonic sequence, so a prefix scan over one session returns its
// turns in append order. Values are JSON-encoded Entry records.
//
// # Thread Safety
//
// Safe for concurrent use; Badger transactions handle write isolation
// and the sequence counter is atomic.
type BadgerSink struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewBadgerSink opens (or creates) the transcript database at path.
// Pass inMemory for tests to avoid disk I/O.
func NewBadgerSink(path string, inMemory bool) (*BadgerSink, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	return &BadgerSink{db: db}, nil
}

// Append records one turn.
func (s *BadgerSink) Append(_ context.Context, sessionID, role, text string, timestamp time.Time) error {
	entry := Entry{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Timestamp: timestamp.UTC(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode transcript entry: %w", err)
	}
	key := fmt.Appendf(nil, "transcript/%s/%020d", sessionID, s.seq.Add(1))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// Session returns all recorded turns for one session in append order.
func (s *BadgerSink) Session(sessionID string) ([]Entry, error) {
	prefix := fmt.Appendf(nil, "transcript/%s/", sessionID)
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read session transcript: %w", err)
	}
	return entries, nil
}

// Close flushes and closes the database.
func (s *BadgerSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*BadgerSink)(nil)
