package catalog

import (
	"fmt"
	"time"
)

// SweepResult reports what a retention pass removed.
type SweepResult struct {
	Deleted []string
}

// Count returns the number of deleted artifacts.
func (r SweepResult) Count() int { return len(r.Deleted) }

// Sweep deletes every artifact strictly older than maxAgeDays, measured
// against the sidecar's creation time with the file modification time as
// fallback (Get already applies that fallback). Each deletion goes through
// the same path as a manual delete; a single artifact's failure is logged
// and skipped, never aborting the sweep.
func (c *Catalog) Sweep(maxAgeDays int, now time.Time) (SweepResult, error) {
	if maxAgeDays <= 0 {
		return SweepResult{}, fmt.Errorf("retention age must be positive, got %d", maxAgeDays)
	}

	artifacts, err := c.List()
	if err != nil {
		return SweepResult{}, err
	}

	cutoff := now.Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	var result SweepResult
	for _, art := range artifacts {
		if !art.CreatedAt.Before(cutoff) {
			continue
		}
		if err := c.Delete(art.Name); err != nil {
			c.log.Warn("retention delete failed, skipping",
				"artifact", art.Name,
				"error", err.Error(),
			)
			continue
		}
		c.log.Info("retention deleted artifact",
			"artifact", art.Name,
			"database", art.Database,
			"age_days", int(now.Sub(art.CreatedAt).Hours()/24),
		)
		result.Deleted = append(result.Deleted, art.Name)
	}
	return result, nil
}
