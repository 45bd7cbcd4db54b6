package tracking

import (
	"context"

	"runmatrix/internal/query"
)

// Run identifies one recorded execution
type Run struct {
	// ID is the service-side run name used to address the run
	ID string
	// Name is the display name shown to users and matched by run filters
	Name             string
	Entity           string
	Project          string
	Group            string
	JobType          string
	Tags             []string
	HistoryLineCount int
	// LastStep is the highest logged step, -1 when the run has no history
	LastStep int64
}

// Snapshot is one history row. Only keys the row carried are present;
// non-numeric values are dropped.
type Snapshot struct {
	Step   int64
	Values map[string]float64
}

// Service is the subset of the tracking service the exporter needs
type Service interface {
	// ListRuns returns the runs of entity/project matching filter, in the
	// order the service returns them.
	ListRuns(ctx context.Context, entity, project string, filter query.Filter) ([]Run, error)
	// History returns the run's snapshots ordered by step. samples <= 0
	// scans the full history; otherwise the service samples up to samples
	// rows for every key.
	History(ctx context.Context, run Run, keys []string, samples int) ([]Snapshot, error)
}
