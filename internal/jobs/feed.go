package jobs

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ReadFeed loads job records from a CSV file produced by the collection
// stage. Required columns are jobID, title, company and job_description;
// extra columns are ignored. Lines containing NUL bytes (a known artifact
// of interrupted scraping runs) are skipped with a warning instead of
// failing the whole feed.
func ReadFeed(path string, logger *zap.Logger) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	return parseFeed(f, logger)
}

func parseFeed(r io.Reader, logger *zap.Logger) (*Feed, error) {
	cleaned, skipped, err := stripNULLines(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if skipped > 0 && logger != nil {
		logger.Warn("skipping feed lines with NUL bytes", zap.Int("count", skipped))
	}

	reader := csv.NewReader(strings.NewReader(cleaned))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	feed := &Feed{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if logger != nil {
				logger.Warn("skipping malformed feed row", zap.Int("line", line), zap.Error(err))
			}
			continue
		}

		record, err := decodeRow(header, row)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping undecodable feed row", zap.Int("line", line), zap.Error(err))
			}
			continue
		}

		if strings.TrimSpace(record.ID) == "" {
			record.ID = DeriveID(record)
		}

		feed.Items = append(feed.Items, record)
	}

	return feed, nil
}

// decodeRow maps a CSV row onto a Record via its column names.
func decodeRow(header, row []string) (*Record, error) {
	m := make(map[string]string, len(header))
	for i, col := range header {
		if col == "" || i >= len(row) {
			continue
		}
		m[col] = row[i]
	}

	var record Record
	cfg := &mapstructure.DecoderConfig{
		Result:  &record,
		TagName: "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(m); err != nil {
		return nil, err
	}

	return &record, nil
}

func stripNULLines(r io.Reader) (string, int, error) {
	var b strings.Builder
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.ContainsRune(line, '\x00') {
			skipped++
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String(), skipped, scanner.Err()
}

// DumpToTmpFile writes the feed to a temporary JSON file and returns its name.
func (f *Feed) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobsieve_workset_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return "", err
	}
	return file.Name(), nil
}
