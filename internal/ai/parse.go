package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseScore extracts a score and explanation from raw model output. The
// expected format is a JSON object {"score": n, "explanation": "..."},
// possibly fenced in markdown. Anything else yields a malformed-response
// error so the dispatcher can retry with its lower ceiling. The score is
// clamped into [minScore, maxScore].
func ParseScore(raw string, minScore, maxScore int) (*ScoreResponse, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, Malformed(fmt.Errorf("empty model response"))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		// A model that chats around the JSON still counts if a single
		// object can be dug out of the text.
		block := jsonBlockRe.FindString(cleaned)
		if block == "" {
			return nil, Malformed(fmt.Errorf("no JSON object in model response"))
		}
		if err := json.Unmarshal([]byte(block), &data); err != nil {
			return nil, Malformed(fmt.Errorf("parse model response: %w", err))
		}
	}

	scoreVal, ok := data["score"]
	if !ok {
		return nil, Malformed(fmt.Errorf("model response has no score field"))
	}

	score := coerceFloat(scoreVal)
	if math.IsNaN(score) {
		return nil, Malformed(fmt.Errorf("model response score is not numeric: %v", scoreVal))
	}

	return &ScoreResponse{
		Score:       clamp(int(math.Round(score)), minScore, maxScore),
		Explanation: coerceString(data["explanation"]),
		Raw:         raw,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		// Some models answer with explanation bullets instead of a single
		// string. Join them the way the report expects.
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				parts = append(parts, "- "+s)
			}
		}
		return strings.Join(parts, "\n")
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
