// Package store persists extension artifacts keyed by extension identifier.
// Artifact bytes are opaque to the store and to the manager.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jllopis/launcher/pkg/errors"
)

// ArtifactStore is a key/blob store keyed by extension identifier.
type ArtifactStore interface {
	// Put stores data under id, overwriting any previous copy.
	Put(ctx context.Context, id string, data []byte) error
	// Get returns the artifact or a CodeNotFound error.
	Get(ctx context.Context, id string) ([]byte, error)
	// Keys enumerates stored identifiers in sorted order.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes the artifact. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// Artifact is an extension package handed to the manager for install.
// Name is the original file name; the identifier is derived from it.
type Artifact struct {
	Name string
	Data []byte
}

// ReadArtifact loads an artifact from disk.
func ReadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, errors.New(errors.CodeStorage, fmt.Sprintf("read artifact %s", path), err)
	}
	return Artifact{Name: filepath.Base(path), Data: data}, nil
}

// MemoryStore keeps artifacts in memory.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put implements ArtifactStore.
func (s *MemoryStore) Put(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), data...)
	return nil
}

// Get implements ArtifactStore.
func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return append([]byte(nil), data...), nil
}

// Keys implements ArtifactStore.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements ArtifactStore.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

func notFound(id string) error {
	return errors.New(errors.CodeNotFound, fmt.Sprintf("artifact %s not found", id), nil).
		WithContext("extension_id", id)
}

var _ ArtifactStore = (*MemoryStore)(nil)
