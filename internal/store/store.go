// Package store persists scored records between runs. The pipeline treats
// it as an injected dependency so resumability stays a set-difference over
// ids instead of streaming file mutation.
package store

import (
	"github.com/spigell/jobsieve/internal/jobs"
)

// Store is the durable record of scored jobs across runs.
type Store interface {
	// LoadExisting returns the records already present in the output,
	// keyed by job id. A missing output is an empty result, not an error.
	LoadExisting() (map[string]*jobs.ScoredRecord, error)
	// Append stages records for persistence. A record whose id already
	// exists replaces the previous row; ids never duplicate.
	Append(recs ...*jobs.ScoredRecord) error
	// Flush writes staged records to durable storage.
	Flush() error
}
