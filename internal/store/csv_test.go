package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/jobsieve/internal/jobs"
)

func completeRecord(id string, q, p int) *jobs.ScoredRecord {
	return &jobs.ScoredRecord{
		Record: jobs.Record{
			ID:      id,
			Title:   "Platform Engineer",
			Company: "Acme",
			URL:     "https://jobs.example/" + id,
		},
		Qualification: jobs.AxisOutcome{Scored: true, Score: q, Explanation: "fits the stack"},
		Preference:    jobs.AxisOutcome{Scored: true, Score: p, Explanation: "remote friendly"},
		Status:        jobs.StatusComplete,
		ScoredAt:      time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
}

func failedRecord(id string) *jobs.ScoredRecord {
	return &jobs.ScoredRecord{
		Record:        jobs.Record{ID: id, Title: "SRE", Company: "Acme"},
		Qualification: jobs.AxisOutcome{FailureReason: "transient: timeout"},
		Preference:    jobs.AxisOutcome{FailureReason: "transient: timeout"},
		Status:        jobs.StatusFailed,
		Cause:         "transient",
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return rows
}

func TestAppendAndFlushWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")
	s := NewCSV(path, 100, nil)

	if err := s.Append(completeRecord("a1", 80, 50)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.Append(completeRecord("b2", 90, 90)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "id" {
		t.Fatalf("expected header row first, got %v", rows[0])
	}
	if rows[1][0] != "a1" || rows[2][0] != "b2" {
		t.Fatalf("unexpected row order: %v / %v", rows[1], rows[2])
	}
	// qualification 80, preference 50, final 80*50/100.
	if rows[1][9] != "40" {
		t.Fatalf("expected final score 40, got %q", rows[1][9])
	}
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")
	s := NewCSV(path, 100, nil)

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("flush with nothing to write should not create the file")
	}
}

func TestLoadExistingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")

	first := NewCSV(path, 100, nil)
	if err := first.Append(completeRecord("a1", 80, 50), failedRecord("f1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	second := NewCSV(path, 100, nil)
	existing, err := second.LoadExisting()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("expected 2 existing records, got %d", len(existing))
	}

	done := existing["a1"]
	if done == nil || done.Status != jobs.StatusComplete {
		t.Fatalf("unexpected complete record: %+v", done)
	}
	if done.NeedsScoring() {
		t.Fatal("complete record should not need scoring")
	}
	if !done.Qualification.Scored || done.Qualification.Score != 80 {
		t.Fatalf("qualification lost in round trip: %+v", done.Qualification)
	}

	failed := existing["f1"]
	if failed == nil || failed.Status != jobs.StatusFailed {
		t.Fatalf("unexpected failed record: %+v", failed)
	}
	if !failed.NeedsScoring() {
		t.Fatal("failed record should need scoring")
	}
	if failed.Qualification.Scored {
		t.Fatal("failed axis must load as unscored")
	}
}

func TestReplacingFailedRecordRewritesWithoutDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")

	first := NewCSV(path, 100, nil)
	if err := first.Append(completeRecord("a1", 80, 50), failedRecord("f1"), completeRecord("z9", 70, 70)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	second := NewCSV(path, 100, nil)
	if _, err := second.LoadExisting(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := second.Append(completeRecord("f1", 60, 90)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := second.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}

	seen := map[string]int{}
	for _, row := range rows[1:] {
		seen[row[0]]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %s appears %d times", id, n)
		}
	}

	// f1 keeps its original position and now carries scores.
	if rows[2][0] != "f1" {
		t.Fatalf("expected f1 to stay in place, got %v", rows[2])
	}
	if rows[2][5] != "60" || rows[2][10] != string(jobs.StatusComplete) {
		t.Fatalf("replacement not persisted: %v", rows[2])
	}
}

func TestAppendRejectsRecordWithoutID(t *testing.T) {
	s := NewCSV(filepath.Join(t.TempDir(), "scored.csv"), 100, nil)
	if err := s.Append(&jobs.ScoredRecord{}); err == nil {
		t.Fatal("expected an error for a record without an id")
	}
}

func TestLoadSkipsRowsWithoutID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")
	raw := "id,title,status\n" +
		",No ID,complete\n" +
		"ok1,Kept,complete\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	s := NewCSV(path, 100, nil)
	existing, err := s.LoadExisting()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(existing) != 1 {
		t.Fatalf("expected 1 record, got %d", len(existing))
	}
	if existing["ok1"] == nil {
		t.Fatal("expected ok1 to survive the load")
	}
}
