package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
	"github.com/kebairia/backhaul/internal/target"
	"github.com/kebairia/backhaul/internal/vault"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Register and inspect dump/restore targets",
}

var addServerFlags struct {
	Name        string
	Host        string
	Port        string
	User        string
	Password    string
	KeyFile     string
	Engine      string
	DBUser      string
	DBHost      string
	DBPort      string
	DBPassword  string
	DBVaultPath string
}

var addServerCmd = &cobra.Command{
	Use:   "add-server",
	Short: "Register a remote host reached over SSH",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, err := newOperator()
		if err != nil {
			return err
		}

		sec := target.Secret{
			SSHPassword: addServerFlags.Password,
			DBPassword:  addServerFlags.DBPassword,
		}
		if addServerFlags.KeyFile != "" {
			key, err := os.ReadFile(addServerFlags.KeyFile)
			if err != nil {
				return fmt.Errorf("read key file: %w", err)
			}
			sec.SSHKey = key
		}
		if addServerFlags.DBVaultPath != "" {
			password, err := vaultPassword(cmd.Context(), addServerFlags.DBVaultPath)
			if err != nil {
				return err
			}
			sec.DBPassword = password
		}

		t := &target.Target{
			Name:    addServerFlags.Name,
			Backend: backend.KindRemoteShell,
			Engine:  command.Engine(addServerFlags.Engine),
			Shell: &target.ShellLocator{
				Host:    addServerFlags.Host,
				Port:    addServerFlags.Port,
				User:    addServerFlags.User,
				KeyFile: addServerFlags.KeyFile,
			},
			DB: target.DBConn{
				User: addServerFlags.DBUser,
				Host: addServerFlags.DBHost,
				Port: addServerFlags.DBPort,
			},
		}
		if err := registry.Add(t, sec); err != nil {
			return err
		}
		fmt.Printf("%s target %s (%s)\n", color.GreenString("registered"), t.Name, t.Shell.Host)
		return nil
	},
}

var addPodFlags struct {
	Name       string
	Namespace  string
	Pod        string
	Container  string
	Kubeconfig string
	Engine     string
	DBUser     string
	DBPassword string
}

var addPodCmd = &cobra.Command{
	Use:   "add-pod",
	Short: "Register a pod inside an orchestrated cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, err := newOperator()
		if err != nil {
			return err
		}

		t := &target.Target{
			Name:    addPodFlags.Name,
			Backend: backend.KindOrchestratedPod,
			Engine:  command.Engine(addPodFlags.Engine),
			Pod: &target.PodLocator{
				Namespace:  addPodFlags.Namespace,
				Pod:        addPodFlags.Pod,
				Container:  addPodFlags.Container,
				Kubeconfig: addPodFlags.Kubeconfig,
			},
			DB: target.DBConn{User: addPodFlags.DBUser},
		}
		sec := target.Secret{DBPassword: addPodFlags.DBPassword}
		if err := registry.Add(t, sec); err != nil {
			return err
		}
		fmt.Printf("%s target %s (%s/%s)\n",
			color.GreenString("registered"), t.Name, t.Pod.Namespace, t.Pod.Pod)
		return nil
	},
}

var detectContainerName string

var detectContainerCmd = &cobra.Command{
	Use:   "detect-container",
	Short: "Discover a local database container",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, err := newOperator()
		if err != nil {
			return err
		}

		runtime, err := backend.NewDockerRuntime()
		if err != nil {
			return err
		}
		resolver := &target.Resolver{
			Registry:         registry,
			Lister:           runtime,
			DefaultContainer: cfg.Targets.DefaultContainer,
			Engine:           command.Engine(cfg.Backup.Engine),
		}

		t, found, err := resolver.DetectContainer(cmd.Context(), detectContainerName)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("no database container found")
			return nil
		}
		fmt.Printf("%s container %s\n", color.GreenString("detected"), t.Container.Container)
		return nil
	},
}

var removeTargetCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered target and drop its credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, err := newOperator()
		if err != nil {
			return err
		}
		if err := registry.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s target %s\n", color.GreenString("removed"), args[0])
		return nil
	},
}

var listTargetsCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, registry, err := newOperator()
		if err != nil {
			return err
		}
		targets := registry.List()
		if len(targets) == 0 {
			fmt.Println("no registered targets")
			return nil
		}
		for _, t := range targets {
			locator := ""
			switch t.Backend {
			case backend.KindLocalContainer:
				locator = t.Container.Container
			case backend.KindRemoteShell:
				locator = t.Shell.User + "@" + t.Shell.Host
			case backend.KindOrchestratedPod:
				locator = t.Pod.Namespace + "/" + t.Pod.Pod
			}
			fmt.Printf("%s  %s  %s\n", t.Name, t.Backend, locator)
		}
		return nil
	},
}

// vaultPassword resolves a database password reference through Vault using
// the configured address and approle.
func vaultPassword(ctx context.Context, path string) (string, error) {
	client, err := vault.NewClient(ctx,
		vault.WithAddress(cfg.Vault.Address),
		vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
	)
	if err != nil {
		return "", err
	}
	mount := cfg.Vault.Mount
	if mount == "" {
		mount = "secret"
	}
	return client.DatabasePassword(ctx, mount, path)
}

func init() {
	addServerCmd.Flags().StringVar(&addServerFlags.Name, "name", "", "target name")
	addServerCmd.Flags().StringVar(&addServerFlags.Host, "host", "", "ssh host")
	addServerCmd.Flags().StringVar(&addServerFlags.Port, "port", "22", "ssh port")
	addServerCmd.Flags().StringVar(&addServerFlags.User, "user", "", "ssh user")
	addServerCmd.Flags().StringVar(&addServerFlags.Password, "password", "", "ssh password")
	addServerCmd.Flags().StringVar(&addServerFlags.KeyFile, "key-file", "", "ssh private key file (the path is persisted with the target, never the key)")
	addServerCmd.Flags().StringVar(&addServerFlags.Engine, "engine", "", "database engine (defaults to backup.engine)")
	addServerCmd.Flags().StringVar(&addServerFlags.DBUser, "db-user", "", "database user")
	addServerCmd.Flags().StringVar(&addServerFlags.DBHost, "db-host", "", "database host as seen from the server")
	addServerCmd.Flags().StringVar(&addServerFlags.DBPort, "db-port", "", "database port as seen from the server")
	addServerCmd.Flags().StringVar(&addServerFlags.DBPassword, "db-password", "", "database password")
	addServerCmd.Flags().StringVar(&addServerFlags.DBVaultPath, "db-password-vault-path", "", "Vault KV path holding the database password")
	_ = addServerCmd.MarkFlagRequired("name")
	_ = addServerCmd.MarkFlagRequired("host")
	_ = addServerCmd.MarkFlagRequired("user")

	addPodCmd.Flags().StringVar(&addPodFlags.Name, "name", "", "target name")
	addPodCmd.Flags().StringVar(&addPodFlags.Namespace, "namespace", "default", "pod namespace")
	addPodCmd.Flags().StringVar(&addPodFlags.Pod, "pod", "", "pod name")
	addPodCmd.Flags().StringVar(&addPodFlags.Container, "container", "", "container within the pod")
	addPodCmd.Flags().StringVar(&addPodFlags.Kubeconfig, "kubeconfig", "", "kubeconfig path for the cluster CLI")
	addPodCmd.Flags().StringVar(&addPodFlags.Engine, "engine", "", "database engine (defaults to backup.engine)")
	addPodCmd.Flags().StringVar(&addPodFlags.DBUser, "db-user", "", "database user")
	addPodCmd.Flags().StringVar(&addPodFlags.DBPassword, "db-password", "", "database password")
	_ = addPodCmd.MarkFlagRequired("name")
	_ = addPodCmd.MarkFlagRequired("pod")

	detectContainerCmd.Flags().
		StringVar(&detectContainerName, "container", "", "preferred container name")

	targetsCmd.AddCommand(addServerCmd)
	targetsCmd.AddCommand(addPodCmd)
	targetsCmd.AddCommand(detectContainerCmd)
	targetsCmd.AddCommand(removeTargetCmd)
	targetsCmd.AddCommand(listTargetsCmd)
	rootCmd.AddCommand(targetsCmd)
}
