package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobsieve/internal/jobs"
)

var columns = []string{
	"id",
	"title",
	"company",
	"location",
	"url",
	"qualification_score",
	"qualification_explanation",
	"preference_score",
	"preference_explanation",
	"final_score",
	"status",
	"failure_cause",
	"scored_at",
}

// CSVStore keeps the scored table in an appendable CSV file. New ids are
// appended; replacing a previously failed id triggers an atomic rewrite of
// the whole file on the next Flush so no id ever appears twice.
type CSVStore struct {
	path     string
	scoreMax int
	logger   *zap.Logger

	mu      sync.Mutex
	rows    []*jobs.ScoredRecord
	index   map[string]int
	pending []*jobs.ScoredRecord
	rewrite bool
	loaded  bool
}

// NewCSV creates a CSV-backed store at path. scoreMax is needed to derive
// the final-score column.
func NewCSV(path string, scoreMax int, logger *zap.Logger) *CSVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVStore{
		path:     path,
		scoreMax: scoreMax,
		logger:   logger,
		index:    make(map[string]int),
	}
}

func (s *CSVStore) LoadExisting() (map[string]*jobs.ScoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	existing := make(map[string]*jobs.ScoredRecord, len(s.rows))
	for id, i := range s.index {
		existing[id] = s.rows[i]
	}
	return existing, nil
}

func (s *CSVStore) Append(recs ...*jobs.ScoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	for _, rec := range recs {
		if rec == nil || strings.TrimSpace(rec.Record.ID) == "" {
			return fmt.Errorf("cannot store record without an id")
		}
		if i, ok := s.index[rec.Record.ID]; ok {
			s.rows[i] = rec
			s.rewrite = true
			continue
		}
		s.index[rec.Record.ID] = len(s.rows)
		s.rows = append(s.rows, rec)
		s.pending = append(s.pending, rec)
	}

	return nil
}

func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rewrite {
		if err := s.rewriteAll(); err != nil {
			return err
		}
		s.rewrite = false
		s.pending = nil
		return nil
	}

	if len(s.pending) == 0 {
		return nil
	}

	if err := s.appendPending(); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

func (s *CSVStore) load() error {
	if s.loaded {
		return nil
	}
	s.loaded = true

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	header := records[0]
	for _, row := range records[1:] {
		rec := fromRow(header, row)
		if rec == nil || rec.Record.ID == "" {
			s.logger.Warn("skipping output row without id")
			continue
		}
		if _, ok := s.index[rec.Record.ID]; ok {
			s.logger.Warn("duplicate id in existing output, keeping first", zap.String("id", rec.Record.ID))
			continue
		}
		s.index[rec.Record.ID] = len(s.rows)
		s.rows = append(s.rows, rec)
	}

	return nil
}

func (s *CSVStore) appendPending() error {
	createHeader := false
	if info, err := os.Stat(s.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		createHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if createHeader {
		if err := w.Write(columns); err != nil {
			return err
		}
	}
	for _, rec := range s.pending {
		if err := w.Write(s.toRow(rec)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append output rows: %w", err)
	}

	return f.Sync()
}

// rewriteAll writes the merged table to a temp file and renames it over
// the output, so an interrupted flush never truncates prior results.
func (s *CSVStore) rewriteAll() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".jobsieve_out_*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		tmp.Close()
		return err
	}
	for _, rec := range s.rows {
		if err := w.Write(s.toRow(rec)); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write output rows: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func (s *CSVStore) toRow(rec *jobs.ScoredRecord) []string {
	final := ""
	if v, ok := rec.FinalScore(s.scoreMax); ok {
		final = strconv.Itoa(v)
	}

	scoredAt := ""
	if !rec.ScoredAt.IsZero() {
		scoredAt = rec.ScoredAt.UTC().Format(time.RFC3339)
	}

	return []string{
		rec.Record.ID,
		rec.Record.Title,
		rec.Record.Company,
		rec.Record.Location,
		rec.Record.URL,
		axisScore(rec.Qualification),
		axisExplanation(rec.Qualification),
		axisScore(rec.Preference),
		axisExplanation(rec.Preference),
		final,
		string(rec.Status),
		rec.Cause,
		scoredAt,
	}
}

func axisScore(o jobs.AxisOutcome) string {
	if !o.Scored {
		return ""
	}
	return strconv.Itoa(o.Score)
}

func axisExplanation(o jobs.AxisOutcome) string {
	if o.Scored {
		return o.Explanation
	}
	return o.FailureReason
}

func fromRow(header, row []string) *jobs.ScoredRecord {
	m := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			m[col] = row[i]
		}
	}

	rec := &jobs.ScoredRecord{
		Record: jobs.Record{
			ID:       strings.TrimSpace(m["id"]),
			Title:    m["title"],
			Company:  m["company"],
			Location: m["location"],
			URL:      m["url"],
		},
		Qualification: axisFromRow(m, "qualification"),
		Preference:    axisFromRow(m, "preference"),
		Status:        jobs.Status(m["status"]),
		Cause:         m["failure_cause"],
	}

	if t, err := time.Parse(time.RFC3339, m["scored_at"]); err == nil {
		rec.ScoredAt = t
	}

	return rec
}

func axisFromRow(m map[string]string, axis string) jobs.AxisOutcome {
	raw := strings.TrimSpace(m[axis+"_score"])
	if raw == "" {
		return jobs.AxisOutcome{FailureReason: m[axis+"_explanation"]}
	}

	score, err := strconv.Atoi(raw)
	if err != nil {
		return jobs.AxisOutcome{FailureReason: m[axis+"_explanation"]}
	}

	return jobs.AxisOutcome{
		Scored:      true,
		Score:       score,
		Explanation: m[axis+"_explanation"],
	}
}
