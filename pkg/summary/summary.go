package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
)

// recentBudget caps how many recent items the rollup scans, itemBudget caps
// how many of them feed the generative prompt, and lineBudget caps each
// item's contribution in characters
const (
	recentBudget = 100
	itemBudget   = 20
	lineBudget   = 200
)

// FeedbackStore is the record-store surface the aggregator reads from
type FeedbackStore interface {
	GetRecentClassified(ctx context.Context, productID int64, limit int) ([]*domain.Feedback, error)
	GetStats(ctx context.Context, productID int64) (*repository.Stats, error)
}

// Summarizer produces the generative part of the rollup. Best effort by
// contract: it never returns an error, only a fallback summary.
type Summarizer interface {
	Summarize(ctx context.Context, items []string) (summary string, themes []string)
}

// Aggregator builds executive summaries over a product's recent feedback.
// The numeric parts (sentiment counts, critical issues, totals) are computed
// locally and are always exact; only the free-text summary and themes depend
// on the model.
type Aggregator struct {
	feedback   FeedbackStore
	summarizer Summarizer
}

// NewAggregator creates a summary aggregator
func NewAggregator(feedback FeedbackStore, summarizer Summarizer) *Aggregator {
	return &Aggregator{feedback: feedback, summarizer: summarizer}
}

// Summarize builds the rollup for one product
func (a *Aggregator) Summarize(ctx context.Context, productID int64) (*domain.ProductSummary, error) {
	recent, err := a.feedback.GetRecentClassified(ctx, productID, recentBudget)
	if err != nil {
		return nil, fmt.Errorf("get recent feedback: %w", err)
	}

	stats, err := a.feedback.GetStats(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get feedback stats: %w", err)
	}

	result := &domain.ProductSummary{
		ProductID:  productID,
		TotalCount: stats.Total,
	}

	lines := make([]string, 0, len(recent))
	var critical, high []string
	for _, fb := range recent {
		if fb.SentimentLabel != nil {
			switch *fb.SentimentLabel {
			case domain.SentimentPositive:
				result.Sentiment.Positive++
			case domain.SentimentNegative:
				result.Sentiment.Negative++
			case domain.SentimentNeutral:
				result.Sentiment.Neutral++
			}
		}

		line := itemLine(fb)
		if len(lines) < itemBudget {
			lines = append(lines, line)
			result.RecentItems = append(result.RecentItems, line)
		}

		if fb.Priority != nil {
			switch *fb.Priority {
			case domain.PriorityCritical:
				critical = append(critical, line)
			case domain.PriorityHigh:
				high = append(high, line)
			}
		}
	}
	result.CriticalIssues = append(critical, high...)

	if len(lines) == 0 {
		result.Summary = "No classified feedback yet."
		return result, nil
	}

	// generative part is best effort, counts above stay correct either way
	result.Summary, result.Themes = a.summarizer.Summarize(ctx, lines)
	return result, nil
}

// itemLine renders one feedback item as a compact single line for the model
// prompt and the rollup listing
func itemLine(fb *domain.Feedback) string {
	category := domain.CategoryOther
	if fb.Category != nil {
		category = *fb.Category
	}

	text := fb.Title
	if text == "" {
		text = fb.Content
	}
	text = strings.Join(strings.Fields(text), " ") // collapse newlines
	line := fmt.Sprintf("[%s] %s", category, text)

	runes := []rune(line)
	if len(runes) > lineBudget {
		line = string(runes[:lineBudget])
	}
	return line
}
