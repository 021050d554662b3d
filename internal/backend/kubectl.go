package backend

import (
	"context"

	"github.com/kebairia/backhaul/internal/command"
)

// Kubectl executes commands inside a pod by spawning the cluster CLI's exec
// subcommand. The cluster API is never spoken directly; kubeconfig handling,
// auth plugins, and transport upgrades stay the CLI's problem.
type Kubectl struct {
	Namespace string
	Pod       string
	Container string
	// Kubeconfig overrides the CLI's default config resolution when set.
	Kubeconfig string
}

var _ Executor = (*Kubectl)(nil)

func (k *Kubectl) Kind() Kind { return KindOrchestratedPod }

func (k *Kubectl) Describe() string {
	return "pod " + k.Namespace + "/" + k.Pod
}

func (k *Kubectl) Start(ctx context.Context, cmd command.Command) (Session, error) {
	return startProcess(ctx, "kubectl", k.execArgv(cmd))
}

func (k *Kubectl) execArgv(cmd command.Command) []string {
	argv := []string{"exec", "-i", "-n", k.Namespace}
	if k.Kubeconfig != "" {
		argv = append([]string{"--kubeconfig", k.Kubeconfig}, argv...)
	}
	argv = append(argv, k.Pod)
	if k.Container != "" {
		argv = append(argv, "-c", k.Container)
	}
	argv = append(argv, "--")

	// kubectl exec has no environment flag of its own, so the credential is
	// injected through env(1) inside the pod.
	if len(cmd.Env) > 0 {
		argv = append(argv, "env")
		for _, key := range sortedKeys(cmd.Env) {
			argv = append(argv, key+"="+cmd.Env[key])
		}
	}
	return append(argv, cmd.Argv...)
}
