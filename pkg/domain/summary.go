package domain

// SentimentBreakdown holds per-label counts over a set of feedback items
type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// ProductSummary is the executive rollup over a product's recent feedback.
// Counts, critical issues and recent items are always computed locally; the
// free-text summary and themes come from the generative model and degrade to
// a fixed fallback when the call fails.
type ProductSummary struct {
	ProductID      int64              `json:"product_id"`
	Summary        string             `json:"summary"`
	Themes         []string           `json:"themes"`
	CriticalIssues []string           `json:"critical_issues"`
	RecentItems    []string           `json:"recent_items"`
	Sentiment      SentimentBreakdown `json:"sentiment_breakdown"`
	TotalCount     int                `json:"total_count"`
}
