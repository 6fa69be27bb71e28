// Package gemini implements the model client against the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jobsieve/internal/ai"
	"github.com/spigell/jobsieve/internal/utils"
)

const (
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 * time.Second

	defaultMaxLogLength = 200
)

// contentGenerator is the slice of the genai SDK the client uses, kept as
// an interface so tests can stand in for the network.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config carries the Gemini-specific settings for the client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// ScoreMin and ScoreMax bound the parsed numeric score.
	ScoreMin     int
	ScoreMax     int
	MaxLogLength int
}

// Client sends one scoring prompt per call and parses the structured
// answer. Retrying is the dispatcher's job, not the client's.
type Client struct {
	models    contentGenerator
	model     string
	timeout   time.Duration
	scoreMin  int
	scoreMax  int
	maxLogLen int
	logger    *zap.Logger
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ai.Fatal(errors.New("gemini api key is required"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, ai.Fatal(fmt.Errorf("create genai client: %w", err))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		models:    client.Models,
		model:     model,
		timeout:   timeout,
		scoreMin:  cfg.ScoreMin,
		scoreMax:  cfg.ScoreMax,
		maxLogLen: maxLogLen,
		logger:    logger,
	}, nil
}

// Score sends the prompt to Gemini under the per-call deadline and parses
// the structured response. Errors carry a failure classification.
func (c *Client) Score(ctx context.Context, prompt string) (*ai.ScoreResponse, error) {
	if c == nil || c.models == nil {
		return nil, ai.Fatal(errors.New("gemini client is not initialized"))
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ai.Fatal(errors.New("prompt must not be empty"))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	resp, err := c.models.GenerateContent(callCtx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, classify(err)
	}

	raw := collectText(resp)
	if raw == "" {
		return nil, ai.Malformed(errors.New("gemini api returned empty response"))
	}

	c.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return ai.ParseScore(raw, c.scoreMin, c.scoreMax)
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// classify maps SDK and transport errors onto the retry taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.Transient(fmt.Errorf("gemini call timed out: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return ai.Transient(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return ai.Fatal(fmt.Errorf("gemini auth rejected: %w", err))
		case apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound:
			return ai.Fatal(fmt.Errorf("gemini rejected request: %w", err))
		case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusTooManyRequests:
			return ai.Transient(err)
		case apiErr.Code >= 500:
			return ai.Transient(err)
		}
	}

	// Connection resets and other transport failures land here.
	return ai.Transient(fmt.Errorf("gemini call failed: %w", err))
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
