package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/feedscope/feedscope/pkg/domain"
)

// ParseVerdict extracts a classification verdict from raw model output. The
// model response is untrusted free text that only usually contains valid JSON,
// so every field is normalized independently: a response with a good category
// but a garbled priority keyword still keeps the category signal.
//
// The returned verdict is always valid. The error reports why the raw text
// could not be parsed (for logging); when it is non-nil the verdict is the
// default one.
func ParseVerdict(raw string) (domain.Verdict, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return domain.DefaultVerdict(), fmt.Errorf("no json object found in response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return domain.DefaultVerdict(), fmt.Errorf("parse response json: %w", err)
	}

	v := domain.Verdict{
		SentimentScore: normalizeScore(fields["sentiment_score"]),
		SentimentLabel: NormalizeSentiment(stringField(fields, "sentiment_label")),
		Category:       NormalizeCategory(stringField(fields, "category")),
		Priority:       NormalizePriority(stringField(fields, "priority")),
	}
	return v, nil
}

// extractJSON strips code-fence markup and returns the first balanced-looking
// {...} span, greedy to the last closing brace.
func extractJSON(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || start >= end {
		return ""
	}
	return cleaned[start : end+1]
}

// stringField returns the raw field decoded as a string, or its raw text for
// non-string values (models sometimes emit bare keywords or numbers)
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// normalizeScore coerces the raw value to a number and clamps it to [-1, 1],
// defaulting to 0 for absent or non-numeric values
func normalizeScore(raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		// tolerate numbers emitted as strings
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		score = parsed
	}

	if score < -1 {
		return -1
	}
	if score > 1 {
		return 1
	}
	return score
}

// NormalizeSentiment maps a free-form label to one of the known sentiments.
// Matching is by prefix family ("pos", "neg"); everything else is neutral.
func NormalizeSentiment(label string) domain.Sentiment {
	normalized := strings.ToLower(label)
	switch {
	case strings.Contains(normalized, "pos"):
		return domain.SentimentPositive
	case strings.Contains(normalized, "neg"):
		return domain.SentimentNegative
	}
	return domain.SentimentNeutral
}

// NormalizeCategory maps a free-form category to the closed enumeration,
// tolerating spaces instead of underscores ("feature request" matches
// feature_request). Unmatched values resolve to "other".
func NormalizeCategory(category string) domain.Category {
	normalized := strings.ToLower(category)
	for _, valid := range domain.Categories() {
		spaced := strings.ReplaceAll(string(valid), "_", " ")
		if strings.Contains(normalized, string(valid)) || strings.Contains(normalized, spaced) {
			return valid
		}
	}
	return domain.CategoryOther
}

// NormalizePriority maps a free-form priority keyword to the closed set.
// Anything that is not recognizably critical, high or low is medium.
func NormalizePriority(priority string) domain.Priority {
	normalized := strings.ToLower(priority)
	switch {
	case strings.Contains(normalized, "crit"):
		return domain.PriorityCritical
	case strings.Contains(normalized, "high"):
		return domain.PriorityHigh
	case strings.Contains(normalized, "low"):
		return domain.PriorityLow
	}
	return domain.PriorityMedium
}
