package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/pkg/domain"
)

func TestFeedbackRepository_CreateAndGet(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")

	id, created, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID:  product.ID,
		SourceID:   source.ID,
		Title:      "Crash on save",
		Content:    "the app crashes every time I hit save",
		AuthorName: "alice",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, id)

	fb, err := repos.Feedback.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Crash on save", fb.Title)
	assert.Equal(t, domain.StatusUnprocessed, fb.Status)
	assert.False(t, fb.Classified())
	assert.Nil(t, fb.ProcessedAt)
}

func TestFeedbackRepository_Get_NotFound(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repos.Feedback.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedbackRepository_Create_DeduplicatesExternalID(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")

	first, created, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: product.ID, SourceID: source.ID, ExternalID: "tw-42", Content: "first"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: product.ID, SourceID: source.ID, ExternalID: "tw-42", Content: "duplicate"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	// empty external_id never deduplicates
	a, created, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: product.ID, SourceID: source.ID, Content: "one"})
	require.NoError(t, err)
	assert.True(t, created)
	b, created, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: product.ID, SourceID: source.ID, Content: "two"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a, b)
}

func TestFeedbackRepository_UpdateClassification(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "slow checkout", "checkout takes 30 seconds")

	verdict := domain.Verdict{
		SentimentScore: -0.6,
		SentimentLabel: domain.SentimentNegative,
		Category:       domain.CategoryPerformance,
		Priority:       domain.PriorityHigh,
	}
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, verdict))

	got, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	assert.True(t, got.Classified())
	assert.Equal(t, verdict, got.Verdict())
	assert.Equal(t, domain.StatusProcessed, got.Status)
	assert.NotNil(t, got.ProcessedAt)
}

func TestFeedbackRepository_UpdateClassification_ProcessedAtSetOnce(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "", "crashes on upload")

	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.DefaultVerdict()))
	first, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ProcessedAt)

	// re-running the pipeline overwrites the verdict but not the timestamp
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.Verdict{
		SentimentScore: -0.8, SentimentLabel: domain.SentimentNegative,
		Category: domain.CategoryBug, Priority: domain.PriorityCritical,
	}))
	second, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ProcessedAt, *second.ProcessedAt, "processed_at is set exactly once")
	assert.Equal(t, domain.CategoryBug, *second.Category)
}

func TestFeedbackRepository_UpdateClassification_KeepsManualStatus(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "", "please add dark mode")

	// reviewer moves the item before classification finishes
	require.NoError(t, repos.Feedback.UpdateStatus(ctx, fb.ID, domain.StatusPlanned))

	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.DefaultVerdict()))

	got, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, got.Status, "manual status must survive classification")
	assert.True(t, got.Classified())
}

func TestFeedbackRepository_UpdateClassification_NotFound(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	err := repos.Feedback.UpdateClassification(context.Background(), 999, domain.DefaultVerdict())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedbackRepository_UpdateTriage(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "", "pricing page is confusing")

	require.NoError(t, repos.Feedback.UpdateTriage(ctx, fb.ID, domain.CategoryPricing, domain.PriorityHigh))

	// triage on an unclassified item stores a full classification with
	// neutral defaults for the missing fields
	got, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	require.True(t, got.Classified())
	assert.Equal(t, domain.CategoryPricing, *got.Category)
	assert.Equal(t, domain.PriorityHigh, *got.Priority)
	assert.Equal(t, float64(0), *got.SentimentScore)
	assert.Equal(t, domain.SentimentNeutral, *got.SentimentLabel)
	assert.Equal(t, domain.StatusProcessed, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	// partial update keeps the other field
	require.NoError(t, repos.Feedback.UpdateTriage(ctx, fb.ID, "", domain.PriorityLow))
	got, err = repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPricing, *got.Category)
	assert.Equal(t, domain.PriorityLow, *got.Priority)
}

func TestFeedbackRepository_UpdateTriage_SurvivesBackfill(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "", "pricing page is confusing")

	require.NoError(t, repos.Feedback.UpdateTriage(ctx, fb.ID, domain.CategoryPricing, domain.PriorityHigh))

	// a triaged item is classified, so the backfill sweep must not pick it
	// up and feed it back to the model
	items, err := repos.Feedback.GetUnclassified(ctx, 10)
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, fb.ID, it.ID, "triaged item must not be re-classified by backfill")
	}
}

func TestFeedbackRepository_UpdateTriage_KeepsSentiment(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "slow", "checkout is slow")
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.Verdict{
		SentimentScore: -0.7, SentimentLabel: domain.SentimentNegative,
		Category: domain.CategoryBug, Priority: domain.PriorityLow,
	}))

	require.NoError(t, repos.Feedback.UpdateTriage(ctx, fb.ID, domain.CategoryPerformance, domain.PriorityHigh))

	got, err := repos.Feedback.Get(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPerformance, *got.Category)
	assert.Equal(t, domain.PriorityHigh, *got.Priority)
	assert.Equal(t, -0.7, *got.SentimentScore, "triage must not reset the model's sentiment")
	assert.Equal(t, domain.SentimentNegative, *got.SentimentLabel)
}

func TestFeedbackRepository_List_Filters(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	other, otherSource := createTestProduct(t, repos, "gadget")

	for i := 0; i < 3; i++ {
		fb := createTestFeedback(t, repos, product, source, fmt.Sprintf("bug %d", i), "broken")
		require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.Verdict{
			SentimentScore: -0.5, SentimentLabel: domain.SentimentNegative,
			Category: domain.CategoryBug, Priority: domain.PriorityHigh,
		}))
	}
	praise := createTestFeedback(t, repos, product, source, "love it", "great product")
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, praise.ID, domain.Verdict{
		SentimentScore: 0.9, SentimentLabel: domain.SentimentPositive,
		Category: domain.CategoryPraise, Priority: domain.PriorityLow,
	}))
	createTestFeedback(t, repos, other, otherSource, "other product", "unrelated")

	t.Run("by product", func(t *testing.T) {
		items, err := repos.Feedback.List(ctx, ListRequest{ProductID: product.ID})
		require.NoError(t, err)
		assert.Len(t, items, 4)
	})

	t.Run("by category", func(t *testing.T) {
		items, err := repos.Feedback.List(ctx, ListRequest{ProductID: product.ID, Category: domain.CategoryBug})
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("by sentiment", func(t *testing.T) {
		items, err := repos.Feedback.List(ctx, ListRequest{Sentiment: domain.SentimentPositive})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, praise.ID, items[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		page1, err := repos.Feedback.List(ctx, ListRequest{ProductID: product.ID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page1, 2)

		page2, err := repos.Feedback.List(ctx, ListRequest{ProductID: product.ID, Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, page2, 2)
		assert.NotEqual(t, page1[0].ID, page2[0].ID)
	})
}

func TestFeedbackRepository_GetByIDs(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	a := createTestFeedback(t, repos, product, source, "a", "first")
	b := createTestFeedback(t, repos, product, source, "b", "second")

	items, err := repos.Feedback.GetByIDs(ctx, []int64{b.ID, 999, a.ID})
	require.NoError(t, err)
	require.Len(t, items, 2, "missing ids are skipped")
	assert.Equal(t, b.ID, items[0].ID, "input order preserved")
	assert.Equal(t, a.ID, items[1].ID)

	items, err = repos.Feedback.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFeedbackRepository_GetUnclassified(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	first := createTestFeedback(t, repos, product, source, "first", "oldest")
	second := createTestFeedback(t, repos, product, source, "second", "newer")
	done := createTestFeedback(t, repos, product, source, "done", "classified already")
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, done.ID, domain.DefaultVerdict()))

	items, err := repos.Feedback.GetUnclassified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, first.ID, items[1].ID)
}

func TestFeedbackRepository_Delete(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	fb := createTestFeedback(t, repos, product, source, "bye", "delete me")

	require.NoError(t, repos.Feedback.Delete(ctx, fb.ID))

	_, err := repos.Feedback.Get(ctx, fb.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repos.Feedback.Delete(ctx, fb.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedbackRepository_SearchText(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	createTestFeedback(t, repos, product, source, "Dark mode please", "would love a dark theme")
	createTestFeedback(t, repos, product, source, "Crash", "app crashes in dark rooms... just kidding, on save")
	createTestFeedback(t, repos, product, source, "Pricing", "too expensive")

	items, err := repos.Feedback.SearchText(ctx, product.ID, "dark", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = repos.Feedback.SearchText(ctx, product.ID, "nothing matches this", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFeedbackRepository_GetStats(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")

	bug := createTestFeedback(t, repos, product, source, "bug", "broken")
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, bug.ID, domain.Verdict{
		SentimentScore: -0.8, SentimentLabel: domain.SentimentNegative,
		Category: domain.CategoryBug, Priority: domain.PriorityCritical,
	}))
	praise := createTestFeedback(t, repos, product, source, "nice", "works great")
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, praise.ID, domain.Verdict{
		SentimentScore: 0.9, SentimentLabel: domain.SentimentPositive,
		Category: domain.CategoryPraise, Priority: domain.PriorityLow,
	}))
	createTestFeedback(t, repos, product, source, "pending", "not yet classified")

	stats, err := repos.Feedback.GetStats(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Unprocessed)
	assert.Equal(t, 1, stats.ByCategory[domain.CategoryBug])
	assert.Equal(t, 1, stats.ByCategory[domain.CategoryPraise])
	assert.Equal(t, 1, stats.BySentiment[domain.SentimentNegative])
	assert.Equal(t, 1, stats.ByPriority[domain.PriorityCritical])
	assert.Equal(t, 2, stats.ByStatus[domain.StatusProcessed])
}

func TestFeedbackRepository_GetRecentClassified(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	product, source := createTestProduct(t, repos, "widget")
	for i := 0; i < 3; i++ {
		fb := createTestFeedback(t, repos, product, source, fmt.Sprintf("item %d", i), "content")
		require.NoError(t, repos.Feedback.UpdateClassification(ctx, fb.ID, domain.DefaultVerdict()))
	}
	createTestFeedback(t, repos, product, source, "unclassified", "skipped")

	items, err := repos.Feedback.GetRecentClassified(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, fb := range items {
		assert.True(t, fb.Classified())
	}
}
