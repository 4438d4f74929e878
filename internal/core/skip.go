package core

import "github.com/tanuj-rai/matrixci/internal/config"

// FilterSkipped prunes specs whose category is on the run's skip list.
// The skip list only applies on lightened runs; a full run keeps every
// spec no matter what the list says. Pruned specs come back as skipped
// results so the aggregation invariant (one record per expanded spec)
// still holds.
func FilterSkipped(cfg config.RunConfig, specs []JobSpec) (kept []JobSpec, skipped []JobResult) {
	for _, spec := range specs {
		if cfg.Skips(spec.Category) {
			skipped = append(skipped, JobResult{
				JobName:  spec.Name(),
				Category: spec.Category,
				Status:   StatusSkipped,
				Cause:    "skip-list",
			})
			continue
		}
		kept = append(kept, spec)
	}
	return kept, skipped
}
