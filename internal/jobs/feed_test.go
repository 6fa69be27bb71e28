package jobs

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseFeed(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`jobID,title,company,location,job_url,job_description,scraped_at`,
		`j1,ML Engineer,Acme,Remote,https://example.com/1,"Build models, ship them",2026-08-20`,
		`j2,Data Scientist,Globex,NYC,https://example.com/2,Analyze data,2026-08-21`,
	}, "\n")

	feed, err := parseFeed(strings.NewReader(input), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", feed.Len())
	}

	first := feed.Items[0]
	if first.ID != "j1" || first.Title != "ML Engineer" || first.Company != "Acme" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Description != "Build models, ship them" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if first.ScrapedAt != "2026-08-20" {
		t.Fatalf("unexpected scraped_at: %q", first.ScrapedAt)
	}
}

func TestParseFeedSkipsNULLines(t *testing.T) {
	t.Parallel()

	input := "jobID,title,company,job_description\n" +
		"j1,Engineer,Acme,desc one\n" +
		"j2,Bro\x00ken,Evil,desc two\n" +
		"j3,Engineer,Initech,desc three\n"

	feed, err := parseFeed(strings.NewReader(input), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.Len() != 2 {
		t.Fatalf("expected NUL line to be dropped, got %d records", feed.Len())
	}
	if feed.Items[0].ID != "j1" || feed.Items[1].ID != "j3" {
		t.Fatalf("unexpected ids: %v", feed.IDs())
	}
}

func TestParseFeedDerivesMissingIDs(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`jobID,title,company,job_url,job_description`,
		`,Engineer,Acme,https://example.com/jobs/42,desc`,
	}, "\n")

	feed, err := parseFeed(strings.NewReader(input), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", feed.Len())
	}
	if feed.Items[0].ID == "" {
		t.Fatal("expected id to be derived from the posting url")
	}
}

func TestParseFeedKeepsRecordWithMissingColumns(t *testing.T) {
	t.Parallel()

	// A row without a description survives parsing; validation downstream
	// decides its fate so the run can account for it.
	input := strings.Join([]string{
		`jobID,title,company,job_description`,
		`j1,Engineer,Acme,`,
	}, "\n")

	feed, err := parseFeed(strings.NewReader(input), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", feed.Len())
	}
	if err := feed.Items[0].Validate(); err == nil {
		t.Fatal("expected validation to reject the record")
	}
}
