package command

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Engine selects which native tool set the builder renders.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// ErrInvalidName indicates a database name that failed validation. Nothing
// carrying an invalid name ever reaches command construction.
var ErrInvalidName = errors.New("invalid database name")

// ErrUnknownEngine indicates an engine the builder has no command set for.
var ErrUnknownEngine = errors.New("unknown database engine")

// nameRE accepts a leading letter/digit/underscore followed by
// letters/digits/underscores/hyphens.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// ValidateName checks a logical database name against the naming pattern.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Command is a fully rendered invocation: an argument vector plus the
// environment it needs. Credentials travel only in Env, never in Argv.
type Command struct {
	Argv []string
	Env  map[string]string
}

// Conn describes how the database tool reaches its server. Host and Port are
// empty when the tool runs next to the server (inside the container or pod).
type Conn struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Builder renders backend-agnostic operations into engine-native commands.
// It performs no I/O and is safe for concurrent use.
type Builder struct {
	Engine          Engine
	DefaultDatabase string
}

// Dump renders the engine's dump command writing a portable archive to
// stdout. An empty database falls back to the configured default.
func (b Builder) Dump(conn Conn, database string) (Command, error) {
	database, err := b.ResolveDatabase(database)
	if err != nil {
		return Command{}, err
	}

	switch b.Engine {
	case EnginePostgres:
		argv := append([]string{"pg_dump"}, conn.pgFlags()...)
		argv = append(argv, "-d", database, "-Fc")
		return Command{Argv: argv, Env: conn.pgEnv()}, nil
	case EngineMySQL:
		argv := append([]string{"mysqldump"}, conn.mysqlFlags()...)
		argv = append(argv,
			"--single-transaction",
			"--quick",
			"--lock-tables=false",
			database,
		)
		return Command{Argv: argv, Env: conn.mysqlEnv()}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownEngine, b.Engine)
}

// Restore renders the inverse command reading the archive from stdin.
// Conflicting objects are dropped first and ownership mismatches between
// environments are ignored.
func (b Builder) Restore(conn Conn, database string) (Command, error) {
	database, err := b.ResolveDatabase(database)
	if err != nil {
		return Command{}, err
	}

	switch b.Engine {
	case EnginePostgres:
		argv := append([]string{"pg_restore"}, conn.pgFlags()...)
		argv = append(argv,
			"-d", database,
			"--clean", "--if-exists",
			"--no-owner", "--no-acl",
		)
		return Command{Argv: argv, Env: conn.pgEnv()}, nil
	case EngineMySQL:
		argv := append([]string{"mysql"}, conn.mysqlFlags()...)
		argv = append(argv, database)
		return Command{Argv: argv, Env: conn.mysqlEnv()}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownEngine, b.Engine)
}

// ListDatabases renders a query for all non-template logical databases,
// one name per stdout line.
func (b Builder) ListDatabases(conn Conn) (Command, error) {
	switch b.Engine {
	case EnginePostgres:
		argv := append([]string{"psql"}, conn.pgFlags()...)
		argv = append(argv,
			"-t", "-A",
			"-c", "SELECT datname FROM pg_database WHERE datistemplate = false;",
		)
		return Command{Argv: argv, Env: conn.pgEnv()}, nil
	case EngineMySQL:
		argv := append([]string{"mysql"}, conn.mysqlFlags()...)
		argv = append(argv, "-N", "-e", "SHOW DATABASES;")
		return Command{Argv: argv, Env: conn.mysqlEnv()}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownEngine, b.Engine)
}

// Probe renders the engine's readiness check. Exit status zero means the
// server is accepting connections.
func (b Builder) Probe(conn Conn) (Command, error) {
	switch b.Engine {
	case EnginePostgres:
		argv := append([]string{"pg_isready"}, conn.pgFlags()...)
		return Command{Argv: argv, Env: conn.pgEnv()}, nil
	case EngineMySQL:
		argv := append([]string{"mysqladmin"}, conn.mysqlFlags()...)
		argv = append(argv, "ping")
		return Command{Argv: argv, Env: conn.mysqlEnv()}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownEngine, b.Engine)
}

// ResolveDatabase applies the default-database fallback and validates the
// result. Every operation that names a database goes through here before
// any command string exists.
func (b Builder) ResolveDatabase(database string) (string, error) {
	if database == "" {
		database = b.DefaultDatabase
	}
	if err := ValidateName(database); err != nil {
		return "", err
	}
	return database, nil
}

func (c Conn) pgFlags() []string {
	var flags []string
	if c.Host != "" {
		flags = append(flags, "-h", c.Host)
	}
	if c.Port != "" {
		flags = append(flags, "-p", c.Port)
	}
	if c.Username != "" {
		flags = append(flags, "-U", c.Username)
	}
	return flags
}

func (c Conn) pgEnv() map[string]string {
	if c.Password == "" {
		return nil
	}
	return map[string]string{"PGPASSWORD": c.Password}
}

func (c Conn) mysqlFlags() []string {
	var flags []string
	if c.Host != "" {
		flags = append(flags, "-h", c.Host)
	}
	if c.Port != "" {
		flags = append(flags, "-P", c.Port)
	}
	if c.Username != "" {
		flags = append(flags, "-u", c.Username)
	}
	return flags
}

func (c Conn) mysqlEnv() map[string]string {
	if c.Password == "" {
		return nil
	}
	return map[string]string{"MYSQL_PWD": c.Password}
}

// Shell renders the command as a single string for transports that accept
// one opaque command line (the remote-shell backend). Environment entries
// become assignment prefixes so the credential never appears as an argument.
func (c Command) Shell() string {
	var parts []string

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quoteArg(c.Env[k]))
	}

	for _, arg := range c.Argv {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

var plainArgRE = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// quoteArg single-quotes anything the shell could interpret. Embedded single
// quotes are closed, escaped, and reopened.
func quoteArg(arg string) string {
	if plainArgRE.MatchString(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
