// Package profile loads the resume and preference texts used to ground
// the two scoring axes.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/jobsieve/internal/jobs"
)

// Profile holds the qualification and preference texts for one run.
// Immutable for the run's duration.
type Profile struct {
	Resume      string
	Preferences string
}

// Load reads both profile halves from plain-text files.
func Load(resumePath, preferencesPath string) (*Profile, error) {
	resume, err := readText("resume", resumePath)
	if err != nil {
		return nil, err
	}

	preferences, err := readText("preferences", preferencesPath)
	if err != nil {
		return nil, err
	}

	return &Profile{Resume: resume, Preferences: preferences}, nil
}

// TextFor returns the profile half relevant to the given axis.
func (p *Profile) TextFor(axis jobs.Axis) string {
	if axis == jobs.AxisPreference {
		return p.Preferences
	}
	return p.Resume
}

func readText(name, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%s file is not configured", name)
	}

	// Only plain text keeps prompt assembly deterministic; document
	// formats would need an extraction step.
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".txt" && ext != ".md" && ext != "" {
		return "", fmt.Errorf("%s file %q must be plain text", name, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s file: %w", name, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s file %q is empty", name, path)
	}

	return text, nil
}
