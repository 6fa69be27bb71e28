// Package filtering narrows the job feed before any scoring happens.
// Filters run sequentially and only drop records; they never reorder the
// feed.
package filtering

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobsieve/internal/jobs"
)

// Filter represents a single filtering step applied to the feed.
type Filter interface {
	Name() string
	IsEnabled() bool

	Apply(feed *jobs.Feed) (*jobs.Feed, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run executes the supplied filters sequentially, returning the narrowed
// feed.
func Run(logger *zap.Logger, steps []Filter, feed *jobs.Feed) (*jobs.Feed, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			if logger != nil {
				logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(feed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if logger != nil {
			logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		feed = next
	}

	return feed, nil
}
