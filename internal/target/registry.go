package target

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
)

// Registry holds registered targets and their in-memory secrets. Non-secret
// fields persist to a YAML state file across invocations; secrets live only
// for the lifetime of the process that registered them.
//
// Reads are frequent (every operation), writes happen only at registration,
// so a single RWMutex is enough.
type Registry struct {
	mu        sync.RWMutex
	targets   map[string]*Target
	secrets   map[string]Secret
	current   *Target
	statePath string
}

// NewRegistry creates a registry backed by the given state file. An empty
// path disables persistence.
func NewRegistry(statePath string) *Registry {
	return &Registry{
		targets:   make(map[string]*Target),
		secrets:   make(map[string]Secret),
		statePath: statePath,
	}
}

// stateEntry is the persisted shape of one target. The locator stays a loose
// map in the file and is decoded into the backend-specific struct on load.
type stateEntry struct {
	Name    string         `yaml:"name"`
	Backend string         `yaml:"backend"`
	Engine  string         `yaml:"engine,omitempty"`
	Locator map[string]any `yaml:"locator"`
	DB      DBConn         `yaml:"db,omitempty"`
}

type stateFile struct {
	Targets []stateEntry `yaml:"targets"`
}

// Load reads the state file if it exists. A missing file is a fresh start,
// not an error.
func (r *Registry) Load() error {
	if r.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(r.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file %q: %w", r.statePath, err)
	}

	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse state file %q: %w", r.statePath, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range state.Targets {
		t, err := entry.target()
		if err != nil {
			return err
		}
		r.targets[t.Name] = t
	}
	return nil
}

func (e stateEntry) target() (*Target, error) {
	kind, err := backend.ParseKind(e.Backend)
	if err != nil {
		return nil, fmt.Errorf("state entry %q: %w", e.Name, err)
	}
	t := &Target{
		Name:    e.Name,
		Backend: kind,
		Engine:  command.Engine(e.Engine),
		DB:      e.DB,
	}

	var dst any
	switch kind {
	case backend.KindLocalContainer:
		t.Container = &ContainerLocator{}
		dst = t.Container
	case backend.KindRemoteShell:
		t.Shell = &ShellLocator{}
		dst = t.Shell
	case backend.KindOrchestratedPod:
		t.Pod = &PodLocator{}
		dst = t.Pod
	}
	if err := mapstructure.Decode(e.Locator, dst); err != nil {
		return nil, fmt.Errorf("state entry %q: decode locator: %w", e.Name, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func entryFor(t *Target) stateEntry {
	entry := stateEntry{
		Name:    t.Name,
		Backend: string(t.Backend),
		Engine:  string(t.Engine),
		DB:      t.DB,
		Locator: map[string]any{},
	}
	switch t.Backend {
	case backend.KindLocalContainer:
		entry.Locator["container"] = t.Container.Container
	case backend.KindRemoteShell:
		entry.Locator["host"] = t.Shell.Host
		if t.Shell.Port != "" {
			entry.Locator["port"] = t.Shell.Port
		}
		entry.Locator["user"] = t.Shell.User
		if t.Shell.KeyFile != "" {
			entry.Locator["key_file"] = t.Shell.KeyFile
		}
	case backend.KindOrchestratedPod:
		entry.Locator["namespace"] = t.Pod.Namespace
		entry.Locator["pod"] = t.Pod.Pod
		if t.Pod.Container != "" {
			entry.Locator["container"] = t.Pod.Container
		}
		if t.Pod.Kubeconfig != "" {
			entry.Locator["kubeconfig"] = t.Pod.Kubeconfig
		}
	}
	return entry
}

// save persists all registered targets. Callers hold r.mu.
func (r *Registry) save() error {
	if r.statePath == "" {
		return nil
	}
	state := stateFile{}
	for _, t := range r.targets {
		state.Targets = append(state.Targets, entryFor(t))
	}
	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(r.statePath, data, 0o600); err != nil {
		return fmt.Errorf("write state file %q: %w", r.statePath, err)
	}
	return nil
}

// Add registers a target along with its secret material.
func (r *Registry) Add(t *Target, sec Secret) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name] = t
	r.secrets[t.Name] = sec
	return r.save()
}

// Remove deletes a target and drops its secret.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(r.targets, name)
	delete(r.secrets, name)
	if r.current != nil && r.current.Name == name {
		r.current = nil
	}
	return r.save()
}

// Get looks a target up by name.
func (r *Registry) Get(name string) (*Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return t, nil
}

// List returns all registered targets.
func (r *Registry) List() []*Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	return out
}

// CacheSecret stores credential material for a target without touching the
// persisted state. Used for secrets supplied per invocation.
func (r *Registry) CacheSecret(name string, sec Secret) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[name] = sec
}

// Secret returns the in-memory credential for a target. A target registered
// by a previous process has an empty secret.
func (r *Registry) Secret(name string) Secret {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secrets[name]
}

// SetCurrent caches the last resolved local-container target.
func (r *Registry) SetCurrent(t *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = t
}

// Current returns the last resolved local-container target, or nil.
func (r *Registry) Current() *Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
