package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lerrors "github.com/jllopis/launcher/pkg/errors"
)

// DefaultSuffix is appended to identifiers to form artifact file names.
const DefaultSuffix = ".ext"

// DirStore keeps one file per artifact in a directory: <dir>/<id><suffix>.
type DirStore struct {
	dir    string
	suffix string
}

// NewDirStore creates the directory if needed.
func NewDirStore(dir, suffix string) (*DirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, lerrors.New(lerrors.CodeInvalidInput, "extension directory is required", nil)
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, lerrors.New(lerrors.CodeStorage, "create extension directory", err)
	}
	return &DirStore{dir: dir, suffix: suffix}, nil
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", lerrors.New(lerrors.CodeInvalidInput, fmt.Sprintf("invalid artifact id %q", id), nil)
	}
	return filepath.Join(s.dir, id+s.suffix), nil
}

// Put writes through a temp file and renames it into place.
func (s *DirStore) Put(_ context.Context, id string, data []byte) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return lerrors.New(lerrors.CodeStorage, "create temp artifact", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return lerrors.New(lerrors.CodeStorage, "write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return lerrors.New(lerrors.CodeStorage, "close artifact", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return lerrors.New(lerrors.CodeStorage, "install artifact", err)
	}
	return nil
}

// Get implements ArtifactStore.
func (s *DirStore) Get(_ context.Context, id string) ([]byte, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, lerrors.New(lerrors.CodeStorage, "read artifact", err)
	}
	return data, nil
}

// Keys lists regular files carrying the suffix.
func (s *DirStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, lerrors.New(lerrors.CodeStorage, "list extension directory", err)
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, s.suffix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements ArtifactStore.
func (s *DirStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return lerrors.New(lerrors.CodeStorage, "delete artifact", err)
	}
	return nil
}

var _ ArtifactStore = (*DirStore)(nil)
