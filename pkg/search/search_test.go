package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/pipeline/mocks"
	"github.com/feedscope/feedscope/pkg/repository"
	"github.com/feedscope/feedscope/pkg/vector"
)

func setupSearch(t *testing.T) (*Service, *repository.Repositories, *vector.MemoryIndex, *mocks.EmbedderMock) {
	t.Helper()

	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repos.Close()) })

	idx := vector.NewMemoryIndex()
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(_ context.Context, text string) ([]float32, error) {
			// crude deterministic embedding: crash-themed text points one
			// way, everything else another
			if len(text) > 0 && (text[0] == 'c' || text[0] == 'C') {
				return []float32{1, 0}, nil
			}
			return []float32{0, 1}, nil
		},
	}

	return NewService(embedder, idx, repos.Feedback), repos, idx, embedder
}

func seedItem(t *testing.T, repos *repository.Repositories, idx *vector.MemoryIndex, productID, sourceID int64, title string, vec []float32) int64 {
	t.Helper()
	ctx := context.Background()

	id, _, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: productID, SourceID: sourceID, Title: title, Content: title + " content"})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, vector.Entry{
		ID: id, Vector: vec,
		Metadata: vector.Metadata{ProductID: productID, Title: title},
	}))
	return id
}

func seedProduct(t *testing.T, repos *repository.Repositories, name string) (productID, sourceID int64) {
	t.Helper()
	ctx := context.Background()
	productID, err := repos.Product.CreateProduct(ctx, &domain.Product{Name: name})
	require.NoError(t, err)
	source, err := repos.Product.GetOrCreateSource(ctx, productID, "api", "manual")
	require.NoError(t, err)
	return productID, source.ID
}

func TestService_Similar(t *testing.T) {
	svc, repos, idx, _ := setupSearch(t)
	ctx := context.Background()

	productID, sourceID := seedProduct(t, repos, "widget")
	crashID := seedItem(t, repos, idx, productID, sourceID, "Crash on save", []float32{1, 0})
	seedItem(t, repos, idx, productID, sourceID, "Dark mode request", []float32{0, 1})

	results, err := svc.Similar(ctx, "crashes when saving", productID, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, crashID, results[0].Feedback.ID)
	assert.InEpsilon(t, 1.0, results[0].Score, 0.01)
	assert.Equal(t, "Crash on save", results[0].Feedback.Title)
}

func TestService_Similar_FiltersByProduct(t *testing.T) {
	svc, repos, idx, _ := setupSearch(t)
	ctx := context.Background()

	widgetID, widgetSrc := seedProduct(t, repos, "widget")
	gadgetID, gadgetSrc := seedProduct(t, repos, "gadget")

	seedItem(t, repos, idx, widgetID, widgetSrc, "crash in widget", []float32{1, 0})
	seedItem(t, repos, idx, gadgetID, gadgetSrc, "crash in gadget", []float32{1, 0})

	results, err := svc.Similar(ctx, "crash", widgetID, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, widgetID, results[0].Feedback.ProductID)

	// zero product searches across all products
	results, err = svc.Similar(ctx, "crash", 0, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestService_Similar_DropsDeletedItems(t *testing.T) {
	svc, repos, idx, _ := setupSearch(t)
	ctx := context.Background()

	productID, sourceID := seedProduct(t, repos, "widget")
	keepID := seedItem(t, repos, idx, productID, sourceID, "crash kept", []float32{1, 0})
	goneID := seedItem(t, repos, idx, productID, sourceID, "crash deleted", []float32{0.99, 0.01})

	// delete from the record store only, the vector lingers
	require.NoError(t, repos.Feedback.Delete(ctx, goneID))

	results, err := svc.Similar(ctx, "crash", productID, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "stale vector match must not surface")
	assert.Equal(t, keepID, results[0].Feedback.ID)
}

func TestService_Similar_EmbedError(t *testing.T) {
	svc, _, _, embedder := setupSearch(t)
	embedder.EmbedFunc = func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("provider down")
	}

	_, err := svc.Similar(context.Background(), "anything", 0, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestService_Similar_EmptyQuery(t *testing.T) {
	svc, _, _, _ := setupSearch(t)

	_, err := svc.Similar(context.Background(), "", 0, 5)
	require.Error(t, err)
}

func TestService_SimilarTo(t *testing.T) {
	svc, repos, idx, _ := setupSearch(t)
	ctx := context.Background()

	productID, sourceID := seedProduct(t, repos, "widget")
	selfID := seedItem(t, repos, idx, productID, sourceID, "crash A", []float32{1, 0})
	twinID := seedItem(t, repos, idx, productID, sourceID, "crash B", []float32{0.95, 0.05})
	seedItem(t, repos, idx, productID, sourceID, "unrelated", []float32{0, 1})

	results, err := svc.SimilarTo(ctx, selfID, productID, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, twinID, results[0].Feedback.ID, "the item itself is excluded")
}

func TestService_SimilarTo_NotIndexed(t *testing.T) {
	svc, repos, _, _ := setupSearch(t)
	ctx := context.Background()

	productID, sourceID := seedProduct(t, repos, "widget")
	id, _, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: productID, SourceID: sourceID, Content: "never embedded"})
	require.NoError(t, err)

	_, err = svc.SimilarTo(ctx, id, productID, 5)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestService_Text(t *testing.T) {
	svc, repos, _, _ := setupSearch(t)
	ctx := context.Background()

	productID, sourceID := seedProduct(t, repos, "widget")
	_, _, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: productID, SourceID: sourceID, Title: "Dark mode", Content: "please add a dark theme"})
	require.NoError(t, err)

	items, err := svc.Text(ctx, productID, "dark", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.Text(ctx, productID, "", 10)
	require.Error(t, err)
}
