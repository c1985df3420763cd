package server

import (
	"time"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/search"
)

// feedbackJSON is the wire representation of a feedback item. Classification
// fields are omitted while the item is unprocessed.
type feedbackJSON struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	SourceID   int64  `json:"source_id"`
	ExternalID string `json:"external_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	AuthorName string `json:"author_name,omitempty"`
	URL        string `json:"url,omitempty"`

	SentimentScore *float64          `json:"sentiment_score,omitempty"`
	SentimentLabel *domain.Sentiment `json:"sentiment_label,omitempty"`
	Category       *domain.Category  `json:"category,omitempty"`
	Priority       *domain.Priority  `json:"priority,omitempty"`

	Status      domain.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

func toFeedbackJSON(fb *domain.Feedback) feedbackJSON {
	return feedbackJSON{
		ID:             fb.ID,
		ProductID:      fb.ProductID,
		SourceID:       fb.SourceID,
		ExternalID:     fb.ExternalID,
		Title:          fb.Title,
		Content:        fb.Content,
		AuthorName:     fb.AuthorName,
		URL:            fb.URL,
		SentimentScore: fb.SentimentScore,
		SentimentLabel: fb.SentimentLabel,
		Category:       fb.Category,
		Priority:       fb.Priority,
		Status:         fb.Status,
		CreatedAt:      fb.CreatedAt,
		ProcessedAt:    fb.ProcessedAt,
	}
}

func toFeedbackListJSON(items []*domain.Feedback) []feedbackJSON {
	out := make([]feedbackJSON, len(items))
	for i, fb := range items {
		out[i] = toFeedbackJSON(fb)
	}
	return out
}

// searchResultJSON is one semantic search hit
type searchResultJSON struct {
	Feedback feedbackJSON `json:"feedback"`
	Score    float64      `json:"score"`
}

func toSearchResultsJSON(results []search.Result) []searchResultJSON {
	out := make([]searchResultJSON, len(results))
	for i, res := range results {
		out[i] = searchResultJSON{Feedback: toFeedbackJSON(res.Feedback), Score: res.Score}
	}
	return out
}

// productJSON is the wire representation of a product
type productJSON struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProductJSON(p *domain.Product) productJSON {
	return productJSON{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt}
}

// sourceJSON is the wire representation of a source, token excluded
type sourceJSON struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func toSourceJSON(s *domain.Source) sourceJSON {
	return sourceJSON{ID: s.ID, ProductID: s.ProductID, Type: s.Type, Name: s.Name,
		Enabled: s.Enabled, CreatedAt: s.CreatedAt}
}

// jobJSON is the wire representation of a pipeline job. Stage outputs stay
// internal; callers only see progress and errors.
type jobJSON struct {
	ID         string       `json:"id"`
	FeedbackID int64        `json:"feedback_id"`
	Stage      domain.Stage `json:"stage"`
	Attempts   int          `json:"attempts,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func toJobJSON(j *domain.Job) jobJSON {
	return jobJSON{ID: j.ID, FeedbackID: j.FeedbackID, Stage: j.Stage, Attempts: j.Attempts,
		Error: j.Error, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt}
}
