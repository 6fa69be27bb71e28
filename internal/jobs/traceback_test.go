package jobs

import (
	"testing"
	"time"
)

func TestParseScrapedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{
			name:  "iso date",
			input: "2026-08-20",
			want:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "iso datetime",
			input: "2026-08-20 09:30:00",
			want:  time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "slash date",
			input: "2026/08/20",
			want:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "month name",
			input: "Aug 20, 2026",
			want:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "today",
			input: "today",
			want:  time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "yesterday",
			input: "Yesterday",
			want:  time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "relative days",
			input: "3 days ago",
			want:  now.Add(-3 * 24 * time.Hour),
			ok:    true,
		},
		{
			name:  "relative hours",
			input: "5 hours ago",
			want:  now.Add(-5 * time.Hour),
			ok:    true,
		},
		{
			name:  "shorthand weeks",
			input: "2w",
			want:  now.AddDate(0, 0, -14),
			ok:    true,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
		{
			name:  "garbage",
			input: "soonish",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseScrapedAt(tt.input, now)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
