// Package prompt assembles the per-axis scoring prompts. Pure and
// stateless: the same record and profile always produce the same prompt.
package prompt

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/jobsieve/internal/jobs"
)

//go:embed qualification.md
var qualificationTemplate string

//go:embed preference.md
var preferenceTemplate string

const (
	defaultMaxChars = 24000

	// truncationMarker separates the head and tail slices of a compacted
	// description.
	truncationMarker = "\n...\n"
)

// Builder renders axis templates for one record plus the matching half of
// the resume profile.
type Builder struct {
	templates map[jobs.Axis]string
	maxChars  int
	scoreMin  int
	scoreMax  int
}

// Config customizes the builder. Empty template strings fall back to the
// embedded defaults.
type Config struct {
	QualificationTemplate string
	PreferenceTemplate    string
	// MaxChars bounds the length of the finished prompt in runes.
	MaxChars int
	ScoreMin int
	ScoreMax int
}

// NewBuilder validates the configuration and returns a Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	qual := cfg.QualificationTemplate
	if strings.TrimSpace(qual) == "" {
		qual = qualificationTemplate
	}
	pref := cfg.PreferenceTemplate
	if strings.TrimSpace(pref) == "" {
		pref = preferenceTemplate
	}

	for _, tpl := range []string{qual, pref} {
		if !strings.Contains(tpl, "{{DESCRIPTION}}") || !strings.Contains(tpl, "{{PROFILE}}") {
			return nil, fmt.Errorf("prompt template must contain {{DESCRIPTION}} and {{PROFILE}} placeholders")
		}
	}

	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	return &Builder{
		templates: map[jobs.Axis]string{
			jobs.AxisQualification: qual,
			jobs.AxisPreference:    pref,
		},
		maxChars: maxChars,
		scoreMin: cfg.ScoreMin,
		scoreMax: cfg.ScoreMax,
	}, nil
}

// Build renders the prompt for one axis. The job description is compacted
// deterministically when the finished prompt would exceed the budget; the
// profile text is never cut.
func (b *Builder) Build(axis jobs.Axis, record *jobs.Record, profileText string) (string, error) {
	tpl, ok := b.templates[axis]
	if !ok {
		return "", fmt.Errorf("unknown axis: %s", axis)
	}
	if err := record.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(profileText) == "" {
		return "", fmt.Errorf("profile text for axis %s is empty", axis)
	}

	prompt := b.render(tpl, record, record.Description, profileText)

	if overrun := len([]rune(prompt)) - b.maxChars; overrun > 0 {
		budget := len([]rune(record.Description)) - overrun - len(truncationMarker)
		if budget < 0 {
			budget = 0
		}
		prompt = b.render(tpl, record, compact(record.Description, budget), profileText)
	}

	return prompt, nil
}

func (b *Builder) render(tpl string, record *jobs.Record, description, profileText string) string {
	replacer := strings.NewReplacer(
		"{{TITLE}}", strings.TrimSpace(record.Title),
		"{{COMPANY}}", strings.TrimSpace(record.Company),
		"{{LOCATION}}", strings.TrimSpace(record.Location),
		"{{DESCRIPTION}}", description,
		"{{PROFILE}}", strings.TrimSpace(profileText),
		"{{SCORE_MIN}}", strconv.Itoa(b.scoreMin),
		"{{SCORE_MAX}}", strconv.Itoa(b.scoreMax),
	)
	return replacer.Replace(tpl)
}

// compact keeps the head and tail of an oversized description, biased 70/30
// towards the head where postings state their requirements.
func compact(text string, maxChars int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxChars {
		return string(runes)
	}
	if maxChars <= 0 {
		return ""
	}

	head := maxChars * 7 / 10
	tail := maxChars - head
	return string(runes[:head]) + truncationMarker + string(runes[len(runes)-tail:])
}
