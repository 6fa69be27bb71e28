package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/jobsieve/internal/jobs"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	resume := writeFile(t, "resume.md", "Go engineer, ten years.\n")
	prefs := writeFile(t, "preferences.txt", "  Remote only.  \n")

	p, err := Load(resume, prefs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Resume != "Go engineer, ten years." {
		t.Fatalf("unexpected resume text: %q", p.Resume)
	}
	if p.Preferences != "Remote only." {
		t.Fatalf("expected trimmed preferences, got %q", p.Preferences)
	}
}

func TestLoadErrors(t *testing.T) {
	valid := writeFile(t, "resume.txt", "content")

	tests := []struct {
		name        string
		resume      string
		preferences string
	}{
		{name: "missing resume path", resume: "", preferences: valid},
		{name: "missing preferences path", resume: valid, preferences: ""},
		{name: "nonexistent file", resume: filepath.Join(t.TempDir(), "nope.txt"), preferences: valid},
		{name: "binary format rejected", resume: writeFile(t, "resume.pdf", "%PDF"), preferences: valid},
		{name: "empty file", resume: writeFile(t, "resume.txt", "  \n "), preferences: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.resume, tt.preferences); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestTextFor(t *testing.T) {
	p := &Profile{Resume: "resume half", Preferences: "preference half"}

	if got := p.TextFor(jobs.AxisQualification); got != "resume half" {
		t.Fatalf("qualification axis got %q", got)
	}
	if got := p.TextFor(jobs.AxisPreference); got != "preference half" {
		t.Fatalf("preference axis got %q", got)
	}
}
