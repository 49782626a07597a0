package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrInvalidDocument reports a project file that exists but cannot be decoded.
var ErrInvalidDocument = errors.New("invalid project document")

// Store loads the project document.
type Store interface {
	Load(ctx context.Context) (Document, error)
}

// FileStore reads the project document from a JSON file and caches it
// while the file's modification time and size are unchanged.
type FileStore struct {
	path string

	mu     sync.RWMutex
	cached *cachedDocument
}

type cachedDocument struct {
	modTime time.Time
	size    int64
	doc     Document
}

// NewFileStore creates a store over the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the cached document while the file is unchanged, and
// rereads it otherwise. Read failures are not cached.
func (s *FileStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("read project file: %w", err)
	}

	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.doc, nil
	}

	doc, err := readDocument(s.path)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	s.cached = &cachedDocument{modTime: info.ModTime(), size: info.Size(), doc: doc}
	s.mu.Unlock()
	return doc, nil
}

// Invalidate drops the cached document so the next Load rereads the file
// even when its modification time and size look unchanged.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read project file: %w", err)
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	doc.normalize()
	return doc, nil
}
