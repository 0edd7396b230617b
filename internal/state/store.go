package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrStateCorrupted is returned when the state file is not a JSON object
// with a project id.
var ErrStateCorrupted = errors.New("state file corrupted")

// DefaultFile is the state file used when none is configured.
const DefaultFile = ".specula_state.json"

// FileStore persists one ProjectState as an indented JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for path, falling back to DefaultFile.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

// Path returns the state file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the state file. A missing file yields a fresh project.
func (f *FileStore) Load() (*ProjectState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return New("project-" + uuid.NewString()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var s ProjectState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}
	return &s, nil
}

// Save writes s atomically through a temporary file.
func (f *FileStore) Save(s *ProjectState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state: %w", err)
	}
	return nil
}
