package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/command"
	"github.com/kebairia/backhaul/internal/config"
	"github.com/kebairia/backhaul/internal/logger"
	"github.com/kebairia/backhaul/internal/operations"
	"github.com/kebairia/backhaul/internal/target"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "backhaul",
		Short: "Move database dump/restore streams between backends and storage",
		Long: `backhaul dumps and restores databases running behind one of three
backends: a local container, a remote host over SSH, or a pod in a
cluster. Artifacts land as files with JSON metadata sidecars.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env next to the binary may carry VAULT_ADDR and friends.
			_ = godotenv.Load()

			if _, err := logger.Init(); err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}

			if _, err := os.Stat(ConfigFile); errors.Is(err, os.ErrNotExist) {
				cfg = config.Defaults()
				return nil
			}
			return cfg.Load(ConfigFile)
		},
	}
)

// Execute runs the root command.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./backhaul.yaml", "path to YAML config file")
}

// newOperator builds the shared service layer for a command invocation.
func newOperator() (*operations.Operator, *target.Registry, error) {
	registry := target.NewRegistry(cfg.Targets.StateFile)
	if err := registry.Load(); err != nil {
		return nil, nil, err
	}
	return operations.NewOperator(cfg, registry), registry, nil
}

// targetFlags is the common "which target" flag set shared by dump, restore,
// databases, and probe. Credentials given here live only for this invocation.
type targetFlags struct {
	Target      string
	Container   string
	DBPassword  string
	SSHPassword string
	SSHKeyFile  string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Target, "target", "t", "", "registered target name")
	cmd.Flags().StringVar(&f.Container, "container", "", "local container name (skips registry lookup)")
	cmd.Flags().StringVar(&f.DBPassword, "db-password", "", "database password for this invocation")
	cmd.Flags().StringVar(&f.SSHPassword, "ssh-password", "", "ssh password for this invocation (remote-shell targets)")
	cmd.Flags().StringVar(&f.SSHKeyFile, "ssh-key-file", "", "ssh private key file for this invocation (remote-shell targets)")
}

// resolve picks the concrete target: a registered name when --target is
// given, otherwise local-container discovery.
func (f *targetFlags) resolve(ctx context.Context, registry *target.Registry) (*target.Target, error) {
	var t *target.Target
	var err error

	if f.Target != "" {
		t, err = registry.Get(f.Target)
		if err != nil {
			return nil, err
		}
	} else {
		runtime, rerr := backend.NewDockerRuntime()
		if rerr != nil {
			return nil, rerr
		}
		resolver := &target.Resolver{
			Registry:         registry,
			Lister:           runtime,
			DefaultContainer: cfg.Targets.DefaultContainer,
			Engine:           command.Engine(cfg.Backup.Engine),
		}
		t, err = resolver.Resolve(ctx, backend.KindLocalContainer, f.Container)
		if err != nil {
			return nil, err
		}
	}

	if f.DBPassword != "" || f.SSHPassword != "" || f.SSHKeyFile != "" {
		sec := registry.Secret(t.Name)
		if f.DBPassword != "" {
			sec.DBPassword = f.DBPassword
		}
		if f.SSHPassword != "" {
			sec.SSHPassword = f.SSHPassword
		}
		if f.SSHKeyFile != "" {
			key, err := os.ReadFile(f.SSHKeyFile)
			if err != nil {
				return nil, fmt.Errorf("read key file: %w", err)
			}
			sec.SSHKey = key
		}
		registry.CacheSecret(t.Name, sec)
	}
	return t, nil
}
