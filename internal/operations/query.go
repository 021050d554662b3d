package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kebairia/backhaul/internal/backend"
	"github.com/kebairia/backhaul/internal/target"
)

// ListDatabases queries the target for its non-template logical databases.
func (op *Operator) ListDatabases(ctx context.Context, t *target.Target) ([]string, error) {
	builder := op.builderFor(t)
	sec := op.registry.Secret(t.Name)

	cmd, err := builder.ListDatabases(t.Conn(sec))
	if err != nil {
		return nil, err
	}
	ex, err := op.executorFor(t, sec)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	res, err := backend.Run(ctx, ex, cmd, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("list databases on %s: %w", ex.Describe(), err)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("list databases on %s: %w", ex.Describe(), err)
	}

	var databases []string
	for _, line := range strings.Split(out.String(), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			databases = append(databases, name)
		}
	}
	return databases, nil
}

// ProbeReady polls the target until its database accepts connections or the
// timeout elapses. The poll interval comes from configuration (one second by
// default); a backend that is unavailable outright fails immediately rather
// than burning the whole budget.
func (op *Operator) ProbeReady(ctx context.Context, t *target.Target, timeout time.Duration) error {
	builder := op.builderFor(t)
	sec := op.registry.Secret(t.Name)

	cmd, err := builder.Probe(t.Conn(sec))
	if err != nil {
		return err
	}
	ex, err := op.executorFor(t, sec)
	if err != nil {
		return err
	}

	interval := op.cfg.Probe.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		res, err := backend.Run(ctx, ex, cmd, nil, nil)
		if err != nil {
			if errors.Is(err, backend.ErrUnavailable) {
				return fmt.Errorf("probe %s: %w", ex.Describe(), err)
			}
			// Transient channel failures count as "not ready yet".
			op.log.Debug("probe attempt errored",
				"target", t.Name,
				"attempt", attempt,
				"error", err.Error(),
			)
		} else if res.ExitCode == 0 {
			op.log.Info("target ready",
				"target", t.Name,
				"backend", string(t.Backend),
				"attempts", attempt,
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", ErrProbeTimeout, ex.Describe(), timeout)
		case <-ticker.C:
		}
	}
}
