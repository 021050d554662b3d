package operations

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/backhaul/internal/catalog"
	"github.com/kebairia/backhaul/internal/pipeline"
	"github.com/kebairia/backhaul/internal/target"
)

// Dump runs the engine's dump tool on the target and streams the archive
// into a new artifact. Payload and metadata sidecar land as a pair, or
// neither does: every failure path removes whatever partial payload exists.
func (op *Operator) Dump(ctx context.Context, t *target.Target, database string) (catalog.Artifact, error) {
	opID := uuid.NewString()[:8]
	builder := op.builderFor(t)

	database, err := builder.ResolveDatabase(database)
	if err != nil {
		return catalog.Artifact{}, err
	}

	sec := op.registry.Secret(t.Name)
	cmd, err := builder.Dump(t.Conn(sec), database)
	if err != nil {
		return catalog.Artifact{}, err
	}
	ex, err := op.executorFor(t, sec)
	if err != nil {
		return catalog.Artifact{}, err
	}

	if err := os.MkdirAll(op.cfg.Backup.Directory, 0o755); err != nil {
		return catalog.Artifact{}, fmt.Errorf("ensure backup directory: %w", err)
	}

	createdAt := time.Now()
	name := catalog.Name(database, createdAt, op.cfg.Backup.Compress)
	path := op.catalog.Path(name)

	op.log.Info("dump started",
		"op", opID,
		"database", database,
		"backend", string(t.Backend),
		"target", t.Name,
		"artifact", name,
	)

	start := time.Now()
	_, res, err := pipeline.DumpToFile(ctx, ex, cmd, path, op.cfg.Backup.Compress)
	if err != nil {
		return catalog.Artifact{}, fmt.Errorf("dump %q on %s: %w", database, ex.Describe(), err)
	}
	// A non-zero dump exit is fatal; the pipeline already discarded the
	// partial payload.
	if err := res.Err(); err != nil {
		return catalog.Artifact{}, fmt.Errorf("dump %q on %s: %w", database, ex.Describe(), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return catalog.Artifact{}, fmt.Errorf("stat artifact %q: %w", name, err)
	}

	rec := catalog.Record{
		Database:      database,
		CreatedAt:     createdAt,
		Size:          info.Size(),
		OriginBackend: string(t.Backend),
		OriginTarget:  t.Name,
	}
	if err := op.catalog.Store().Write(name, rec); err != nil {
		// Payload without sidecar breaks the pairing invariant for a fresh
		// dump; clean up rather than leave a half-made artifact.
		_ = op.catalog.Delete(name)
		return catalog.Artifact{}, fmt.Errorf("write metadata for %q: %w", name, err)
	}

	op.log.Info("dump completed",
		"op", opID,
		"database", database,
		"artifact", name,
		"size", info.Size(),
		"duration", time.Since(start).String(),
	)

	return catalog.Artifact{
		Name:          name,
		Path:          path,
		Size:          info.Size(),
		Database:      database,
		CreatedAt:     createdAt,
		OriginBackend: string(t.Backend),
		OriginTarget:  t.Name,
		HasMetadata:   true,
	}, nil
}

// DumpMany dumps several databases of one target in parallel and returns
// the first error, if any. Artifacts for databases that succeeded are kept.
func (op *Operator) DumpMany(ctx context.Context, t *target.Target, databases []string) ([]catalog.Artifact, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		arts []catalog.Artifact
		errs = make(chan error, len(databases))
	)

	for _, database := range databases {
		wg.Add(1)
		go func(database string) {
			defer wg.Done()
			art, err := op.Dump(ctx, t, database)
			if err != nil {
				op.log.Error("dump failed",
					"database", database,
					"target", t.Name,
					"error", err.Error(),
				)
				errs <- err
				return
			}
			mu.Lock()
			arts = append(arts, art)
			mu.Unlock()
		}(database)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		return arts, err
	}
	return arts, nil
}
