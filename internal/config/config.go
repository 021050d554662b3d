package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Backup  BackupConfig  `mapstructure:"backup"  yaml:"backup"`
	Targets TargetsConfig `mapstructure:"targets" yaml:"targets"`
	Probe   ProbeConfig   `mapstructure:"probe"   yaml:"probe"`
	Vault   VaultConfig   `mapstructure:"vault"   yaml:"vault"`
}

// BackupConfig contains global artifact options.
type BackupConfig struct {
	// Directory is where artifact payloads and their sidecars live.
	Directory string `mapstructure:"directory" yaml:"directory"`
	// DefaultDatabase is substituted when a dump names no database, and
	// when a restore finds no sidecar for its artifact.
	DefaultDatabase string `mapstructure:"default_database" yaml:"default_database"`
	// Engine selects the command set: "postgres" or "mysql".
	Engine   string `mapstructure:"engine"   yaml:"engine"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
	// MaxAgeDays is the default retention threshold for cleanup.
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// TargetsConfig controls target registration and local-container discovery.
type TargetsConfig struct {
	// StateFile persists registered targets (never their credentials).
	StateFile string `mapstructure:"state_file" yaml:"state_file"`
	// DefaultContainer is preferred by the local-container resolver when
	// no container is named explicitly.
	DefaultContainer string `mapstructure:"default_container" yaml:"default_container"`
}

// ProbeConfig bounds the readiness probe loop.
type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// VaultConfig holds connection settings for HashiCorp Vault, used only to
// resolve credential references at target registration time.
type VaultConfig struct {
	Address   string `mapstructure:"address"    yaml:"address"`
	Mount     string `mapstructure:"mount"      yaml:"mount"`
	RoleID    string `mapstructure:"role_id"    yaml:"role_id,omitempty"`
	RoleName  string `mapstructure:"role_name"  yaml:"role_name,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper and
// unmarshals it into the Config struct. Environment variables prefixed with
// BACKHAUL_ override file values.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("backhaul")
	// Nested keys map to env as BACKHAUL_BACKUP_DIRECTORY and the like.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backup.directory", "./backups")
	v.SetDefault("backup.default_database", "postgres")
	v.SetDefault("backup.engine", "postgres")
	v.SetDefault("backup.max_age_days", 30)
	v.SetDefault("targets.state_file", "./targets.yaml")
	v.SetDefault("probe.interval", time.Second)
	v.SetDefault("probe.timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return nil
}

// Defaults returns a Config populated with the same defaults Load applies,
// for callers that run without a config file.
func Defaults() Config {
	return Config{
		Backup: BackupConfig{
			Directory:       "./backups",
			DefaultDatabase: "postgres",
			Engine:          "postgres",
			MaxAgeDays:      30,
		},
		Targets: TargetsConfig{
			StateFile: "./targets.yaml",
		},
		Probe: ProbeConfig{
			Interval: time.Second,
			Timeout:  30 * time.Second,
		},
	}
}
