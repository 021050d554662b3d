// Package catalog keeps the artifact inventory: payload files under one
// directory, each paired with a JSON metadata sidecar.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kebairia/backhaul/internal/logger"
)

// ErrNotFound indicates an artifact whose payload does not exist.
var ErrNotFound = errors.New("artifact not found")

// ErrEmptyArtifact indicates a zero-byte or unreadable payload. Such an
// artifact must never be offered for restore.
var ErrEmptyArtifact = errors.New("artifact payload is empty")

// ErrBadName rejects artifact names that are not plain file names.
var ErrBadName = errors.New("invalid artifact name")

// Catalog lists, validates, and deletes artifacts by composing directory
// enumeration with the metadata store.
type Catalog struct {
	dir             string
	store           *Store
	defaultDatabase string
	log             logger.Logger
}

// New creates a catalog over dir. defaultDatabase is substituted when an
// artifact has no readable sidecar.
func New(dir, defaultDatabase string) *Catalog {
	return &Catalog{
		dir:             dir,
		store:           NewStore(dir),
		defaultDatabase: defaultDatabase,
		log:             logger.Global(),
	}
}

// Dir returns the catalog's artifact directory.
func (c *Catalog) Dir() string { return c.dir }

// Store exposes the underlying metadata store.
func (c *Catalog) Store() *Store { return c.store }

// Path returns the payload path for an artifact name.
func (c *Catalog) Path(name string) string {
	return filepath.Join(c.dir, name)
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, "\x00") {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// List enumerates all artifacts, newest first. A missing or corrupt sidecar
// degrades that one entry to defaults instead of failing the whole listing.
func (c *Catalog) List() ([]Artifact, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact directory %q: %w", c.dir, err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !isArtifactName(entry.Name()) {
			continue
		}
		art, err := c.Get(entry.Name())
		if err != nil {
			c.log.Warn("skipping unreadable artifact",
				"artifact", entry.Name(),
				"error", err.Error(),
			)
			continue
		}
		artifacts = append(artifacts, art)
	}

	// The timestamp component sorts lexically in creation order.
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name > artifacts[j].Name
	})
	return artifacts, nil
}

// Get assembles one artifact from its payload and sidecar.
func (c *Catalog) Get(name string) (Artifact, error) {
	if err := checkName(name); err != nil {
		return Artifact{}, err
	}
	path := c.Path(name)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("stat %q: %w", path, err)
	}

	art := Artifact{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		Database:  c.defaultDatabase,
		CreatedAt: info.ModTime(),
	}

	rec, err := c.store.Read(name)
	if err != nil {
		// Corrupt sidecar: treated as no metadata for this artifact.
		c.log.Warn("unreadable metadata sidecar, using defaults",
			"artifact", name,
			"error", err.Error(),
		)
	} else if rec != nil {
		art.Database = rec.Database
		art.CreatedAt = rec.CreatedAt
		art.OriginBackend = rec.OriginBackend
		art.OriginTarget = rec.OriginTarget
		art.HasMetadata = true
	}
	return art, nil
}

// Validate confirms the payload exists and is non-empty before it may be
// offered for restore.
func (c *Catalog) Validate(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	info, err := os.Stat(c.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("stat %q: %w", name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyArtifact, name)
	}
	return nil
}

// Delete removes payload and sidecar. Deleting an artifact that is already
// gone succeeds: the second call is a no-op, not an error.
func (c *Catalog) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(c.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove payload %q: %w", name, err)
	}
	return c.store.Remove(name)
}
