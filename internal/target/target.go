package target

import (
	"errors"
	"fmt"
	"os"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
)

// ErrNotFound indicates an unknown target identifier, or local-container
// discovery that matched nothing. Distinct from backend.ErrUnavailable.
var ErrNotFound = errors.New("target not found")

// ContainerLocator addresses a database process in a local container.
type ContainerLocator struct {
	Container string `mapstructure:"container" yaml:"container"`
}

// ShellLocator addresses a database process on a remote host. KeyFile is a
// path reference to key material on disk, not the material itself, so it may
// persist with the locator.
type ShellLocator struct {
	Host    string `mapstructure:"host"     yaml:"host"`
	Port    string `mapstructure:"port"     yaml:"port,omitempty"`
	User    string `mapstructure:"user"     yaml:"user"`
	KeyFile string `mapstructure:"key_file" yaml:"key_file,omitempty"`
}

// PodLocator addresses a database process inside an orchestrated pod.
type PodLocator struct {
	Namespace  string `mapstructure:"namespace"  yaml:"namespace"`
	Pod        string `mapstructure:"pod"        yaml:"pod"`
	Container  string `mapstructure:"container"  yaml:"container,omitempty"`
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig,omitempty"`
}

// DBConn holds the non-secret database connection settings for a target.
// Host and Port stay empty when the tool runs next to the server.
type DBConn struct {
	User string `mapstructure:"user" yaml:"user,omitempty"`
	Host string `mapstructure:"host" yaml:"host,omitempty"`
	Port string `mapstructure:"port" yaml:"port,omitempty"`
}

// Secret is the in-memory credential material for one target. It is written
// once at registration and never persisted verbatim.
type Secret struct {
	DBPassword  string
	SSHPassword string
	SSHKey      []byte
}

// Target identifies where a database process runs. Exactly one locator is
// populated, determined by Backend.
type Target struct {
	Name    string
	Backend backend.Kind
	Engine  command.Engine

	Container *ContainerLocator
	Shell     *ShellLocator
	Pod       *PodLocator

	DB DBConn
}

// Validate checks the backend/locator pairing invariant.
func (t *Target) Validate() error {
	switch t.Backend {
	case backend.KindLocalContainer:
		if t.Container == nil || t.Shell != nil || t.Pod != nil {
			return fmt.Errorf("target %q: local-container requires exactly a container locator", t.Name)
		}
	case backend.KindRemoteShell:
		if t.Shell == nil || t.Container != nil || t.Pod != nil {
			return fmt.Errorf("target %q: remote-shell requires exactly a host locator", t.Name)
		}
	case backend.KindOrchestratedPod:
		if t.Pod == nil || t.Container != nil || t.Shell != nil {
			return fmt.Errorf("target %q: orchestrated-pod requires exactly a pod locator", t.Name)
		}
	default:
		return fmt.Errorf("target %q: unknown backend %q", t.Name, t.Backend)
	}
	return nil
}

// Executor builds the backend transport for this target, injecting the
// secret material it needs to open the channel.
func (t *Target) Executor(sec Secret) (backend.Executor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Backend {
	case backend.KindLocalContainer:
		return &backend.Docker{Container: t.Container.Container}, nil
	case backend.KindRemoteShell:
		key := sec.SSHKey
		// A target registered by a previous process carries no in-memory key
		// material; the persisted key-file reference fills the gap.
		if len(key) == 0 && t.Shell.KeyFile != "" {
			data, err := os.ReadFile(t.Shell.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("target %q: read key file: %w", t.Name, err)
			}
			key = data
		}
		return &backend.SSH{
			Host:     t.Shell.Host,
			Port:     t.Shell.Port,
			User:     t.Shell.User,
			Password: sec.SSHPassword,
			Key:      key,
		}, nil
	case backend.KindOrchestratedPod:
		return &backend.Kubectl{
			Namespace:  t.Pod.Namespace,
			Pod:        t.Pod.Pod,
			Container:  t.Pod.Container,
			Kubeconfig: t.Pod.Kubeconfig,
		}, nil
	}
	return nil, fmt.Errorf("target %q: unknown backend %q", t.Name, t.Backend)
}

// Conn assembles the database connection the command builder needs, pairing
// the persisted settings with the in-memory database password.
func (t *Target) Conn(sec Secret) command.Conn {
	return command.Conn{
		Host:     t.DB.Host,
		Port:     t.DB.Port,
		Username: t.DB.User,
		Password: sec.DBPassword,
	}
}
