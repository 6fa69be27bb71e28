package filtering

import (
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobsieve/internal/jobs"
)

var timeNow = time.Now

type traceBackFilter struct {
	days   int
	logger *zap.Logger
}

// NewTraceBack creates a filter that drops records scraped before the
// trace-back window. Zero days disables the filter.
func NewTraceBack(days int, logger *zap.Logger) Filter {
	return &traceBackFilter{days: days, logger: logger}
}

func (f *traceBackFilter) Name() string { return "trace_back" }

func (f *traceBackFilter) IsEnabled() bool { return f.days > 0 }

func (f *traceBackFilter) Apply(feed *jobs.Feed) (*jobs.Feed, Step, error) {
	initial := feed.Len()
	nowTime := timeNow()
	cutoff := nowTime.AddDate(0, 0, -f.days)

	kept := make([]*jobs.Record, 0, initial)
	unparsed := 0

	for _, record := range feed.Items {
		scrapedAt, ok := jobs.ParseScrapedAt(record.ScrapedAt, nowTime)
		if !ok {
			unparsed++
			continue
		}
		if !scrapedAt.Before(cutoff) {
			kept = append(kept, record)
		}
	}

	// A feed with no parsable timestamps at all means the collection stage
	// did not record them; dropping everything would be worse than not
	// filtering.
	if unparsed == initial && initial > 0 {
		if f.logger != nil {
			f.logger.Warn("trace-back window set but no record has a parsable timestamp, skipping filter",
				zap.Int("days", f.days),
			)
		}
		return feed, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	if f.logger != nil && unparsed > 0 {
		f.logger.Warn("dropping records without parsable timestamps",
			zap.Int("count", unparsed),
		)
	}

	return &jobs.Feed{Items: kept}, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}
