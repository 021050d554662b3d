package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is the per-artifact metadata sidecar, written as
// <artifactName>.json next to the payload.
type Record struct {
	Database      string    `json:"database"`
	CreatedAt     time.Time `json:"createdAt"`
	Size          int64     `json:"size"`
	OriginBackend string    `json:"originBackend,omitempty"`
	OriginTarget  string    `json:"originTarget,omitempty"`
}

// Store reads and writes metadata sidecars keyed by artifact name.
type Store struct {
	dir string
}

// NewStore creates a sidecar store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) sidecarPath(artifactName string) string {
	return filepath.Join(s.dir, artifactName+SidecarExt)
}

// Write persists the record for an artifact.
func (s *Store) Write(artifactName string, rec Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure metadata directory %q: %w", s.dir, err)
	}
	path := s.sidecarPath(artifactName)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sidecar %q: %w", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&rec); err != nil {
		return fmt.Errorf("encode sidecar %q: %w", path, err)
	}
	return nil
}

// Read loads the record for an artifact. A missing sidecar yields
// (nil, nil): absence is not an error, consumers fall back to defaults. A
// sidecar that exists but cannot be parsed yields an error so callers can
// decide whether to tolerate it.
func (s *Store) Read(artifactName string) (*Record, error) {
	path := s.sidecarPath(artifactName)
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open sidecar %q: %w", path, err)
	}
	defer file.Close()

	var rec Record
	if err := json.NewDecoder(file).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode sidecar %q: %w", path, err)
	}
	return &rec, nil
}

// Remove deletes the sidecar. Removing an absent sidecar succeeds.
func (s *Store) Remove(artifactName string) error {
	err := os.Remove(s.sidecarPath(artifactName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove sidecar for %q: %w", artifactName, err)
	}
	return nil
}
