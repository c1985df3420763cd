package domain

import (
	"strings"
	"time"
)

// Sentiment is the tone label derived from feedback text
type Sentiment string

// sentiment labels
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether the sentiment is one of the known labels
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Category is the kind of feedback, a closed set
type Category string

// feedback categories
const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryUXIssue        Category = "ux_issue"
	CategoryPerformance    Category = "performance"
	CategoryDocumentation  Category = "documentation"
	CategoryPricing        Category = "pricing"
	CategoryPraise         Category = "praise"
	CategoryOther          Category = "other"
)

// Categories lists all known categories in a stable order
func Categories() []Category {
	return []Category{
		CategoryBug, CategoryFeatureRequest, CategoryUXIssue, CategoryPerformance,
		CategoryDocumentation, CategoryPricing, CategoryPraise, CategoryOther,
	}
}

// Valid reports whether the category is one of the known values
func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// Priority is the urgency assigned to a feedback item
type Priority string

// priorities, lowest to highest
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether the priority is one of the known values
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the lifecycle state of a feedback item. Status is independent of
// classification: an item can be manually classified and marked processed
// without the classifier ever running.
type Status string

// lifecycle states
const (
	StatusUnprocessed   Status = "unprocessed"
	StatusProcessed     Status = "processed"
	StatusReviewing     Status = "reviewing"
	StatusPlanned       Status = "planned"
	StatusInDevelopment Status = "in_development"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// ParseStatus maps a raw string to a Status, accepting the legacy "new"
// alias for unprocessed. Returns false for unknown values.
func ParseStatus(s string) (Status, bool) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusUnprocessed, StatusProcessed, StatusReviewing, StatusPlanned,
		StatusInDevelopment, StatusResolved, StatusClosed:
		return v, true
	case "new":
		return StatusUnprocessed, true
	}
	return "", false
}

// Verdict is the structured result of classifying one feedback item
type Verdict struct {
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel Sentiment `json:"sentiment_label"`
	Category       Category  `json:"category"`
	Priority       Priority  `json:"priority"`
}

// DefaultVerdict is the safe fallback used when classification fails or the
// model response cannot be parsed. It is a valid terminal answer, not a
// pending state.
func DefaultVerdict() Verdict {
	return Verdict{
		SentimentScore: 0,
		SentimentLabel: SentimentNeutral,
		Category:       CategoryOther,
		Priority:       PriorityMedium,
	}
}

// Feedback represents a single feedback item, the system of record entity.
// Classification fields are nil until the item is processed; the invariant is
// that all four of them and ProcessedAt are either all set or all nil.
type Feedback struct {
	ID          int64
	ProductID   int64
	SourceID    int64
	ExternalID  string
	Title       string
	Content     string
	AuthorName  string
	AuthorEmail string
	URL         string
	RawData     string

	SentimentScore *float64
	SentimentLabel *Sentiment
	Category       *Category
	Priority       *Priority

	Status      Status
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Classified reports whether the item carries a full classification
func (f *Feedback) Classified() bool {
	return f.SentimentScore != nil && f.SentimentLabel != nil && f.Category != nil && f.Priority != nil
}

// Verdict returns the stored classification, or the default verdict when the
// item has not been classified yet.
func (f *Feedback) Verdict() Verdict {
	if !f.Classified() {
		return DefaultVerdict()
	}
	return Verdict{
		SentimentScore: *f.SentimentScore,
		SentimentLabel: *f.SentimentLabel,
		Category:       *f.Category,
		Priority:       *f.Priority,
	}
}

// Snippet returns the first n runes of the content, used as denormalized
// vector metadata.
func (f *Feedback) Snippet(n int) string {
	runes := []rune(f.Content)
	if len(runes) <= n {
		return f.Content
	}
	return string(runes[:n])
}
