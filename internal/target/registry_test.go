package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
)

func shellTarget(name string) *Target {
	return &Target{
		Name:    name,
		Backend: backend.KindRemoteShell,
		Engine:  command.EnginePostgres,
		Shell:   &ShellLocator{Host: "db.example.com", Port: "2222", User: "deploy"},
		DB:      DBConn{User: "admin", Host: "localhost", Port: "5432"},
	}
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry("")
	require.NoError(t, r.Add(shellTarget("prod"), Secret{DBPassword: "pw"}))

	got, err := r.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", got.Shell.Host)
	assert.Equal(t, "pw", r.Secret("prod").DBPassword)

	require.NoError(t, r.Remove("prod"))
	_, err = r.Get("prod")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, r.Secret("prod").DBPassword)

	assert.ErrorIs(t, r.Remove("prod"), ErrNotFound)
}

func TestRegistry_AddRejectsInvalidTarget(t *testing.T) {
	r := NewRegistry("")
	err := r.Add(&Target{
		Name:    "broken",
		Backend: backend.KindRemoteShell,
		// remote-shell with no host locator
	}, Secret{})
	assert.Error(t, err)
}

func TestRegistry_PersistsAcrossProcesses(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "targets.yaml")

	first := NewRegistry(statePath)
	require.NoError(t, first.Add(shellTarget("prod"), Secret{DBPassword: "pw"}))
	require.NoError(t, first.Add(&Target{
		Name:    "cluster",
		Backend: backend.KindOrchestratedPod,
		Pod:     &PodLocator{Namespace: "data", Pod: "pg-0", Container: "postgres"},
	}, Secret{}))

	second := NewRegistry(statePath)
	require.NoError(t, second.Load())

	prod, err := second.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, backend.KindRemoteShell, prod.Backend)
	assert.Equal(t, "db.example.com", prod.Shell.Host)
	assert.Equal(t, "2222", prod.Shell.Port)
	assert.Equal(t, "admin", prod.DB.User)

	cluster, err := second.Get("cluster")
	require.NoError(t, err)
	assert.Equal(t, "data", cluster.Pod.Namespace)
	assert.Equal(t, "pg-0", cluster.Pod.Pod)

	// Secrets never cross the process boundary.
	assert.Empty(t, second.Secret("prod").DBPassword)
}

func TestRegistry_StateFileHoldsNoSecrets(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "targets.yaml")
	r := NewRegistry(statePath)
	require.NoError(t, r.Add(shellTarget("prod"), Secret{
		DBPassword:  "db-secret",
		SSHPassword: "ssh-secret",
		SSHKey:      []byte("key-material"),
	}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "db-secret")
	assert.NotContains(t, string(data), "ssh-secret")
	assert.NotContains(t, string(data), "key-material")
}

func TestRegistry_LoadedShellTargetKeepsKeyFileReference(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("key-material"), 0o600))

	statePath := filepath.Join(dir, "targets.yaml")
	first := NewRegistry(statePath)
	tgt := shellTarget("prod")
	tgt.Shell.KeyFile = keyPath
	require.NoError(t, first.Add(tgt, Secret{SSHKey: []byte("key-material")}))

	// A fresh process has no in-memory secret, only the persisted locator.
	second := NewRegistry(statePath)
	require.NoError(t, second.Load())
	loaded, err := second.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, keyPath, loaded.Shell.KeyFile)

	ex, err := loaded.Executor(second.Secret("prod"))
	require.NoError(t, err)
	ssh, ok := ex.(*backend.SSH)
	require.True(t, ok)
	assert.Equal(t, []byte("key-material"), ssh.Key)
}

func TestTarget_ExecutorMissingKeyFile(t *testing.T) {
	tgt := shellTarget("prod")
	tgt.Shell.KeyFile = filepath.Join(t.TempDir(), "absent")

	_, err := tgt.Executor(Secret{})
	assert.Error(t, err)
}

func TestTarget_ExecutorSecretKeyWinsOverKeyFile(t *testing.T) {
	tgt := shellTarget("prod")
	tgt.Shell.KeyFile = filepath.Join(t.TempDir(), "absent")

	ex, err := tgt.Executor(Secret{SSHKey: []byte("in-memory")})
	require.NoError(t, err)
	ssh, ok := ex.(*backend.SSH)
	require.True(t, ok)
	assert.Equal(t, []byte("in-memory"), ssh.Key)
}

func TestRegistry_LoadMissingStateFile(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, r.Load())
	assert.Empty(t, r.List())
}

func TestRegistry_CacheSecretDoesNotPersist(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "targets.yaml")
	r := NewRegistry(statePath)
	require.NoError(t, r.Add(shellTarget("prod"), Secret{}))

	r.CacheSecret("prod", Secret{DBPassword: "per-invocation"})
	assert.Equal(t, "per-invocation", r.Secret("prod").DBPassword)

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "per-invocation")
}

func TestTarget_Validate(t *testing.T) {
	valid := shellTarget("ok")
	assert.NoError(t, valid.Validate())

	twoLocators := shellTarget("bad")
	twoLocators.Container = &ContainerLocator{Container: "pg"}
	assert.Error(t, twoLocators.Validate())

	assert.Error(t, (&Target{Name: "none", Backend: backend.Kind("weird")}).Validate())
}

func TestTarget_Executor(t *testing.T) {
	sec := Secret{DBPassword: "pw", SSHPassword: "ssh-pw"}

	ex, err := shellTarget("prod").Executor(sec)
	require.NoError(t, err)
	ssh, ok := ex.(*backend.SSH)
	require.True(t, ok)
	assert.Equal(t, "db.example.com", ssh.Host)
	assert.Equal(t, "ssh-pw", ssh.Password)

	local := &Target{
		Name:      "pg",
		Backend:   backend.KindLocalContainer,
		Container: &ContainerLocator{Container: "pg-main"},
	}
	ex, err = local.Executor(Secret{})
	require.NoError(t, err)
	docker, ok := ex.(*backend.Docker)
	require.True(t, ok)
	assert.Equal(t, "pg-main", docker.Container)
}

func TestTarget_Conn(t *testing.T) {
	conn := shellTarget("prod").Conn(Secret{DBPassword: "pw"})
	assert.Equal(t, command.Conn{
		Host:     "localhost",
		Port:     "5432",
		Username: "admin",
		Password: "pw",
	}, conn)
}
