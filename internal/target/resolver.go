package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
)

// engineImages maps an engine onto the case-insensitive substrings its
// official images and conventional container names carry.
var engineImages = map[command.Engine][]string{
	command.EnginePostgres: {"postgres"},
	command.EngineMySQL:    {"mysql", "mariadb"},
}

// Resolver selects the concrete target an operation runs against. Remote and
// pod targets are explicit registry lookups; local containers are discovered
// through the container daemon.
type Resolver struct {
	Registry *Registry
	Lister   backend.ContainerLister
	// DefaultContainer is preferred when discovery finds several candidates
	// and none was requested explicitly.
	DefaultContainer string
	// Engine narrows the image heuristic during discovery.
	Engine command.Engine
}

// Resolve picks a target for the given backend. For remote-shell and
// orchestrated-pod the locator is a registered target name and must exist.
// For local-container the locator is an optional container name; discovery
// failures split into ErrNotFound (nothing matched) and
// backend.ErrUnavailable (the daemon itself is unreachable).
func (rv *Resolver) Resolve(ctx context.Context, kind backend.Kind, locator string) (*Target, error) {
	switch kind {
	case backend.KindRemoteShell, backend.KindOrchestratedPod:
		t, err := rv.Registry.Get(locator)
		if err != nil {
			return nil, err
		}
		if t.Backend != kind {
			return nil, fmt.Errorf("%w: %q is registered for backend %q", ErrNotFound, locator, t.Backend)
		}
		return t, nil
	case backend.KindLocalContainer:
		t, found, err := rv.DetectContainer(ctx, locator)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: no running %s container detected", ErrNotFound, rv.engine())
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrNotFound, kind)
}

// DetectContainer discovers a database container. Selection priority:
// the explicitly requested name if it is among the candidates, then the
// configured default, then the first running candidate, then the first
// candidate in any state. found=false is a valid outcome, distinct from the
// daemon being unreachable.
func (rv *Resolver) DetectContainer(ctx context.Context, preferred string) (t *Target, found bool, err error) {
	containers, err := rv.Lister.ListContainers(ctx)
	if err != nil {
		return nil, false, err
	}

	var candidates []backend.ContainerInfo
	for _, c := range containers {
		if rv.matches(c) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	pick := rv.pick(candidates, preferred)
	t = &Target{
		Name:      pick.Name,
		Backend:   backend.KindLocalContainer,
		Engine:    rv.engine(),
		Container: &ContainerLocator{Container: pick.Name},
	}
	// Only local-container resolutions are cached as "current"; remote and
	// pod targets stay explicit.
	rv.Registry.SetCurrent(t)
	return t, true, nil
}

func (rv *Resolver) pick(candidates []backend.ContainerInfo, preferred string) backend.ContainerInfo {
	if preferred != "" {
		for _, c := range candidates {
			if c.Name == preferred || strings.HasPrefix(c.ID, preferred) {
				return c
			}
		}
	}
	if rv.DefaultContainer != "" {
		for _, c := range candidates {
			if c.Name == rv.DefaultContainer {
				return c
			}
		}
	}
	for _, c := range candidates {
		if c.Running() {
			return c
		}
	}
	return candidates[0]
}

func (rv *Resolver) matches(c backend.ContainerInfo) bool {
	for _, needle := range engineImages[rv.engine()] {
		if strings.Contains(strings.ToLower(c.Image), needle) ||
			strings.Contains(strings.ToLower(c.Name), needle) {
			return true
		}
	}
	return false
}

func (rv *Resolver) engine() command.Engine {
	if rv.Engine == "" {
		return command.EnginePostgres
	}
	return rv.Engine
}
