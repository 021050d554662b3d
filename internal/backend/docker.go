package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/kebairia/backhaul/internal/command"
)

// Docker executes commands inside a local container by spawning the
// container runtime's exec subcommand with stdio pipes attached.
type Docker struct {
	Container string
}

var _ Executor = (*Docker)(nil)

func (d *Docker) Kind() Kind       { return KindLocalContainer }
func (d *Docker) Describe() string { return "container " + d.Container }

func (d *Docker) Start(ctx context.Context, cmd command.Command) (Session, error) {
	return startProcess(ctx, "docker", d.execArgv(cmd))
}

// execArgv renders the runtime CLI invocation. Environment entries travel as
// -e flags so they never appear in the in-container argv.
func (d *Docker) execArgv(cmd command.Command) []string {
	argv := []string{"exec", "-i"}
	for _, k := range sortedKeys(cmd.Env) {
		argv = append(argv, "-e", k+"="+cmd.Env[k])
	}
	argv = append(argv, d.Container)
	return append(argv, cmd.Argv...)
}

// ContainerInfo is the slice of container state the resolver cares about.
type ContainerInfo struct {
	ID    string
	Name  string
	Image string
	State string
}

// Running reports whether the container is currently up.
func (c ContainerInfo) Running() bool {
	return strings.EqualFold(c.State, "running")
}

// ContainerLister enumerates candidate containers. The production
// implementation talks to the container daemon; tests supply their own.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
}

// DockerRuntime wraps the container daemon API for discovery. Command
// execution stays on the CLI exec path above; the API is used only where the
// CLI output would need parsing.
type DockerRuntime struct {
	client *client.Client
}

var _ ContainerLister = (*DockerRuntime)(nil)

// NewDockerRuntime connects to the container daemon using the standard
// environment (DOCKER_HOST etc.).
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: create docker client: %v", ErrUnavailable, err)
	}
	return &DockerRuntime{client: cli}, nil
}

// ListContainers returns every container in any state. A daemon that cannot
// be reached yields ErrUnavailable, never an empty list.
func (r *DockerRuntime) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", ErrUnavailable, err)
	}

	out := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, ContainerInfo{
			ID:    c.ID,
			Name:  name,
			Image: c.Image,
			State: c.State,
		})
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
