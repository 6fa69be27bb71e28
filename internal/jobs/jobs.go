package jobs

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Axis is one of the two independent scoring dimensions.
type Axis string

const (
	AxisQualification Axis = "qualification"
	AxisPreference    Axis = "preference"
)

// Status describes how much of a record was scored.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	// StatusSkipped marks records rejected by input validation. They get a
	// row in the output table so every feed id appears exactly once.
	StatusSkipped Status = "skipped"
)

const CauseInputError = "input_error"

// Record is one scraped job posting. Immutable once produced by the
// collection stage.
type Record struct {
	ID          string `mapstructure:"jobID" json:"id"`
	Title       string `mapstructure:"title" json:"title"`
	Company     string `mapstructure:"company" json:"company"`
	Location    string `mapstructure:"location" json:"location,omitempty"`
	URL         string `mapstructure:"job_url" json:"url,omitempty"`
	Description string `mapstructure:"job_description" json:"-"`
	ScrapedAt   string `mapstructure:"scraped_at" json:"scraped_at,omitempty"`
}

// Validate reports whether the record carries enough data to be scored.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record has no id")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("record %s has no job description", r.ID)
	}
	return nil
}

// DeriveID returns a stable identifier for a record missing an explicit one,
// preferring the posting URL and falling back to title plus company.
func DeriveID(r *Record) string {
	key := strings.TrimSpace(r.URL)
	if key == "" {
		key = strings.TrimSpace(r.Title) + "|" + strings.TrimSpace(r.Company)
	}
	if key == "" || key == "|" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:8])
}

// AxisOutcome is the result of scoring one record on one axis. Either a
// score or a failure, never both.
type AxisOutcome struct {
	Scored      bool
	Score       int
	Explanation string
	// Raw keeps the unparsed model output for audit.
	Raw           string
	FailureKind   string
	FailureReason string
}

// ScoredRecord is a record enriched with both axis outcomes and a status.
// This is the unit the aggregator persists.
type ScoredRecord struct {
	Record        Record
	Qualification AxisOutcome
	Preference    AxisOutcome
	Status        Status
	Cause         string
	ScoredAt      time.Time
}

// NeedsScoring reports whether a prior run left this record in a state that
// a new run should redo. Complete and partial results are kept unless the
// caller forces a full reprocess.
func (s *ScoredRecord) NeedsScoring() bool {
	return s.Status == StatusFailed || s.Status == StatusSkipped
}

// Resolve sets the record status from its axis outcomes.
func (s *ScoredRecord) Resolve() {
	switch {
	case s.Qualification.Scored && s.Preference.Scored:
		s.Status = StatusComplete
		s.Cause = ""
	case s.Qualification.Scored || s.Preference.Scored:
		s.Status = StatusPartial
		s.Cause = firstFailure(s.Qualification, s.Preference)
	default:
		s.Status = StatusFailed
		s.Cause = firstFailure(s.Qualification, s.Preference)
	}
}

// FinalScore combines both axes into a single number scaled back into the
// score range, mirroring the qualify*preference product of the collection
// stage. Meaningful only for complete records.
func (s *ScoredRecord) FinalScore(maxScore int) (int, bool) {
	if s.Status != StatusComplete || maxScore <= 0 {
		return 0, false
	}
	return s.Qualification.Score * s.Preference.Score / maxScore, true
}

func firstFailure(outcomes ...AxisOutcome) string {
	for _, o := range outcomes {
		if !o.Scored && o.FailureKind != "" {
			return o.FailureKind
		}
	}
	return ""
}

// Feed is an ordered batch of records read from the collection stage.
type Feed struct {
	Items []*Record
}

func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Items)
}

// IDs returns the record identifiers in feed order.
func (f *Feed) IDs() []string {
	ids := make([]string, 0, f.Len())
	for _, r := range f.Items {
		ids = append(ids, r.ID)
	}
	return ids
}
