package filtering

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobsieve/internal/jobs"
)

type companiesFilter struct {
	excluded map[string]bool
	logger   *zap.Logger
}

// NewExcludedCompanies creates a filter that drops postings from companies
// the user never wants scored. Saves model calls on known non-starters.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Filter {
	excluded := make(map[string]bool, len(companies))
	for _, c := range companies {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			excluded[c] = true
		}
	}
	return &companiesFilter{excluded: excluded, logger: logger}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) IsEnabled() bool { return len(f.excluded) > 0 }

func (f *companiesFilter) Apply(feed *jobs.Feed) (*jobs.Feed, Step, error) {
	initial := feed.Len()
	kept := make([]*jobs.Record, 0, initial)
	dropped := make([]string, 0)

	for _, record := range feed.Items {
		if f.excluded[strings.ToLower(strings.TrimSpace(record.Company))] {
			dropped = append(dropped, record.ID)
			continue
		}
		kept = append(kept, record)
	}

	if f.logger != nil && len(dropped) > 0 {
		f.logger.Info("excluding postings from configured companies",
			zap.Strings("excluded_records", dropped),
			zap.Int("records_left", len(kept)),
		)
	}

	return &jobs.Feed{Items: kept}, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}
