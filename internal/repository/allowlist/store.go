// Package allowlist persists the authorization allow-lists as YAML.
package allowlist

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/repository/filestore"
)

// Store reads and rewrites the allow-list file.
type Store struct {
	file *filestore.File
}

// New creates a Store backed by path.
func New(path string) *Store {
	return &Store{file: filestore.New(path)}
}

// Load returns the stored lists. found is false when the file does not exist yet.
func (s *Store) Load(_ context.Context) (lists auth.AllowLists, found bool, err error) {
	data, ok, err := s.file.Read()
	if err != nil || !ok {
		return auth.AllowLists{}, false, err
	}
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return auth.AllowLists{}, false, fmt.Errorf("decode allow-list file %s: %w", s.file.Path(), err)
	}
	return lists, true, nil
}

// Save rewrites the file with lists.
func (s *Store) Save(_ context.Context, lists auth.AllowLists) error {
	data, err := yaml.Marshal(lists)
	if err != nil {
		return fmt.Errorf("encode allow-lists: %w", err)
	}
	if err := s.file.Write(data); err != nil {
		return fmt.Errorf("save allow-lists: %w", err)
	}
	return nil
}
