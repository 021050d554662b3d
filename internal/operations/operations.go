// Package operations is the service layer: it resolves targets, renders
// commands, runs them through a backend, and keeps the artifact catalog
// consistent.
//
// Operations against different targets may run concurrently without limit.
// The package deliberately does not detect or serialize concurrent dumps or
// restores hitting the same target and database; callers own that ordering.
package operations

import (
	"errors"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/catalog"
	"github.com/kebairia/backhaul/internal/command"
	"github.com/kebairia/backhaul/internal/config"
	"github.com/kebairia/backhaul/internal/logger"
	"github.com/kebairia/backhaul/internal/target"
)

// ErrProbeTimeout indicates the readiness probe exhausted its budget. The
// target may come up later; retry the whole operation, not the probe.
var ErrProbeTimeout = errors.New("readiness probe timed out")

// Operator carries the shared collaborators of all operations.
type Operator struct {
	cfg      config.Config
	registry *target.Registry
	catalog  *catalog.Catalog
	log      logger.Logger

	// executorFor builds the transport for a target. Tests substitute an
	// in-memory implementation here.
	executorFor func(t *target.Target, sec target.Secret) (backend.Executor, error)
}

// NewOperator wires an operator from configuration and a target registry.
func NewOperator(cfg config.Config, registry *target.Registry) *Operator {
	return &Operator{
		cfg:      cfg,
		registry: registry,
		catalog:  catalog.New(cfg.Backup.Directory, cfg.Backup.DefaultDatabase),
		log:      logger.Global(),
		executorFor: func(t *target.Target, sec target.Secret) (backend.Executor, error) {
			return t.Executor(sec)
		},
	}
}

// Catalog exposes the artifact catalog for list/delete surfaces.
func (op *Operator) Catalog() *catalog.Catalog { return op.catalog }

// Registry exposes the target registry.
func (op *Operator) Registry() *target.Registry { return op.registry }

// builderFor picks the command set for a target, falling back to the
// configured default engine.
func (op *Operator) builderFor(t *target.Target) command.Builder {
	engine := t.Engine
	if engine == "" {
		engine = command.Engine(op.cfg.Backup.Engine)
	}
	return command.Builder{
		Engine:          engine,
		DefaultDatabase: op.cfg.Backup.DefaultDatabase,
	}
}
