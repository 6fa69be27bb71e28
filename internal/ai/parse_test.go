package ai

import (
	"errors"
	"testing"
)

func TestParseScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		raw             string
		wantScore       int
		wantExplanation string
	}{
		{
			name:            "plain json",
			raw:             `{"score": 82, "explanation": "strong match"}`,
			wantScore:       82,
			wantExplanation: "strong match",
		},
		{
			name:            "fenced json",
			raw:             "```json\n{\"score\": 40, \"explanation\": \"gaps\"}\n```",
			wantScore:       40,
			wantExplanation: "gaps",
		},
		{
			name:            "json buried in chatter",
			raw:             "Sure! Here is my assessment:\n{\"score\": 55, \"explanation\": \"ok\"}\nHope that helps.",
			wantScore:       55,
			wantExplanation: "ok",
		},
		{
			name:      "score as string",
			raw:       `{"score": "73", "explanation": "fine"}`,
			wantScore: 73, wantExplanation: "fine",
		},
		{
			name:      "score above range is clamped",
			raw:       `{"score": 180, "explanation": "overeager"}`,
			wantScore: 100, wantExplanation: "overeager",
		},
		{
			name:      "score below range is clamped",
			raw:       `{"score": -5, "explanation": "harsh"}`,
			wantScore: 0, wantExplanation: "harsh",
		},
		{
			name:            "explanation bullets",
			raw:             `{"score": 60, "explanation": ["matches go", "missing kubernetes"]}`,
			wantScore:       60,
			wantExplanation: "- matches go\n- missing kubernetes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := ParseScore(tt.raw, 0, 100)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Score != tt.wantScore {
				t.Fatalf("expected score %d, got %d", tt.wantScore, resp.Score)
			}
			if resp.Explanation != tt.wantExplanation {
				t.Fatalf("expected explanation %q, got %q", tt.wantExplanation, resp.Explanation)
			}
			if resp.Raw != tt.raw {
				t.Fatal("expected raw model output to be retained")
			}
		})
	}
}

func TestParseScoreMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no json", raw: "I cannot answer that."},
		{name: "missing score", raw: `{"explanation": "nice role"}`},
		{name: "non numeric score", raw: `{"score": "high", "explanation": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseScore(tt.raw, 0, 100)
			if err == nil {
				t.Fatal("expected error")
			}
			if Classify(err) != FailureMalformed {
				t.Fatalf("expected malformed classification, got %s", Classify(err))
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if got := Classify(Fatal(errors.New("bad key"))); got != FailureFatal {
		t.Fatalf("expected fatal, got %s", got)
	}
	if got := Classify(Transient(errors.New("reset"))); got != FailureTransient {
		t.Fatalf("expected transient, got %s", got)
	}
	if got := Classify(errors.New("mystery")); got != FailureTransient {
		t.Fatalf("expected unclassified errors to count as transient, got %s", got)
	}

	wrapped := Malformed(errors.New("garbage"))
	var classified *ClassifiedError
	if !errors.As(wrapped, &classified) {
		t.Fatal("expected ClassifiedError to unwrap")
	}
	if classified.Kind != FailureMalformed {
		t.Fatalf("unexpected kind: %s", classified.Kind)
	}
}
