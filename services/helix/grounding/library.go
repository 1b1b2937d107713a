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
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// loadableExtensions are the plain-text formats the loader extracts.
// Binary formats (PDF etc.) are extracted by an external collaborator
// and land here as .txt.
var loadableExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// LoadDir reads at most maxDocs documents from dir, each capped to
// maxChars characters.
//
// # Description
//
// Files are visited in lexical order so the result is deterministic. A
// failure reading one file is logged and skipped; it does not abort the
// batch. A missing directory yields an empty slice and no error, so a
// service without preloaded documents starts cleanly.
func LoadDir(dir string, maxDocs, maxChars int) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !loadableExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, maxDocs)
	for _, name := range names {
		if len(docs) >= maxDocs {
			break
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("Skipping unreadable context document", "file", name, "error", err)
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		doc := Document{Source: name, Text: text}
		if maxChars > 0 && len(doc.Text) > maxChars {
			doc.Text = capText(doc.Text, maxChars)
			doc.Truncated = true
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Library holds the preloaded grounding documents and keeps them fresh
// when the backing directory changes.
//
// # Thread Safety
//
// Documents returns a shared snapshot slice; callers must not mutate it.
// Reload and the watcher goroutine serialize through an internal mutex.
type Library struct {
	dir      string
	maxDocs  int
	maxChars int

	mu      sync.RWMutex
	docs    []Document
	watcher *fsnotify.Watcher
}

// NewLibrary loads dir once and starts watching it for changes.
//
// An empty dir produces an inert library that always returns no
// documents. Watch failures degrade to the initial snapshot with a
// warning; they are not fatal.
func NewLibrary(dir string, maxDocs, maxChars int) (*Library, error) {
	l := &Library{dir: dir, maxDocs: maxDocs, maxChars: maxChars}
	if dir == "" {
		return l, nil
	}

	if err := l.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Document watcher unavailable, preloaded documents are static", "error", err)
		return l, nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("Cannot watch document directory", "dir", dir, "error", err)
		_ = watcher.Close()
		return l, nil
	}
	l.watcher = watcher
	go l.watch()
	return l, nil
}

// Documents returns the current snapshot of preloaded documents.
func (l *Library) Documents() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.docs
}

// Reload re-reads the backing directory into a fresh snapshot.
func (l *Library) Reload() error {
	docs, err := LoadDir(l.dir, l.maxDocs, l.maxChars)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()
	slog.Info("Loaded context documents", "dir", l.dir, "count", len(docs))
	return nil
}

// Close stops the directory watcher.
func (l *Library) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// watch reloads on any write/create/remove event in the directory.
func (l *Library) watch() {
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := l.Reload(); err != nil {
					slog.Warn("Failed to reload context documents", "error", err)
				}
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Document watcher error", "error", err)
		}
	}
}
