package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/backhaul/internal/pipeline"
	"github.com/kebairia/backhaul/internal/target"
)

// RestoreResult reports where a restore landed and whether the restore tool
// exited non-zero while the stream itself completed.
type RestoreResult struct {
	Database string
	Warnings bool
}

// Restore streams an artifact's payload into the engine's restore tool on
// the target. The database defaults to the artifact's recorded one; an
// artifact with no readable sidecar falls back to the configured default.
//
// A non-zero exit from the restore tool is downgraded to a warning as long
// as the channel opened and the stream completed: under --clean --if-exists
// the tool routinely reports benign object-already-absent noise, and a hard
// failure here would make cross-environment restores unreliable.
func (op *Operator) Restore(ctx context.Context, t *target.Target, artifactName, database string) (RestoreResult, error) {
	opID := uuid.NewString()[:8]

	art, err := op.catalog.Get(artifactName)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := op.catalog.Validate(artifactName); err != nil {
		return RestoreResult{}, err
	}

	if database == "" {
		database = art.Database
	}

	builder := op.builderFor(t)
	database, err = builder.ResolveDatabase(database)
	if err != nil {
		return RestoreResult{}, err
	}

	sec := op.registry.Secret(t.Name)
	cmd, err := builder.Restore(t.Conn(sec), database)
	if err != nil {
		return RestoreResult{}, err
	}
	ex, err := op.executorFor(t, sec)
	if err != nil {
		return RestoreResult{}, err
	}

	op.log.Info("restore started",
		"op", opID,
		"artifact", artifactName,
		"database", database,
		"backend", string(t.Backend),
		"target", t.Name,
	)

	start := time.Now()
	res, err := pipeline.RestoreFromFile(ctx, ex, cmd, art.Path)
	if err != nil {
		// The channel itself failed; that stays fatal.
		return RestoreResult{}, fmt.Errorf("restore %q on %s: %w", artifactName, ex.Describe(), err)
	}

	result := RestoreResult{Database: database}
	if res.ExitCode != 0 {
		result.Warnings = true
		op.log.Warn("restore completed with warnings",
			"op", opID,
			"artifact", artifactName,
			"database", database,
			"exit_code", res.ExitCode,
			"stderr", res.Stderr,
		)
		return result, nil
	}

	op.log.Info("restore completed",
		"op", opID,
		"artifact", artifactName,
		"database", database,
		"duration", time.Since(start).String(),
	)
	return result, nil
}
