package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/vector"
)

// Embedder converts query text to an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector index surface used for queries
type Index interface {
	Query(ctx context.Context, vec []float32, limit int) ([]vector.Match, error)
	GetVector(ctx context.Context, id int64) ([]float32, error)
}

// FeedbackStore hydrates matches from the record store
type FeedbackStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Feedback, error)
	SearchText(ctx context.Context, productID int64, query string, limit int) ([]*domain.Feedback, error)
}

// Result is one search hit: the live record plus its similarity score
type Result struct {
	Feedback *domain.Feedback `json:"feedback"`
	Score    float64          `json:"score"`
}

// Service answers semantic and plain-text search over feedback
type Service struct {
	embedder Embedder
	index    Index
	feedback FeedbackStore
}

// NewService creates a search service
func NewService(embedder Embedder, index Index, feedback FeedbackStore) *Service {
	return &Service{embedder: embedder, index: index, feedback: feedback}
}

// Similar finds feedback semantically close to the query text. The index is
// over-fetched at twice the limit because product filtering and stale-entry
// cleanup happen after the vector query.
func (s *Service) Similar(ctx context.Context, query string, productID int64, limit int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, vec, limit*2)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return s.hydrate(ctx, matches, productID, 0, limit)
}

// SimilarTo finds feedback close to an existing item, excluding the item
// itself. Returns ErrNotIndexed when the item has no stored vector, which
// happens for unclassified items or after an embed failure.
func (s *Service) SimilarTo(ctx context.Context, feedbackID int64, productID int64, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.index.GetVector(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, vector.ErrVectorNotFound) {
			return nil, ErrNotIndexed
		}
		return nil, fmt.Errorf("get vector for feedback %d: %w", feedbackID, err)
	}

	// one extra slot because the item itself always comes back first
	matches, err := s.index.Query(ctx, vec, limit*2+1)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return s.hydrate(ctx, matches, productID, feedbackID, limit)
}

// Text is the non-semantic fallback, plain substring search over the record
// store
func (s *Service) Text(ctx context.Context, productID int64, query string, limit int) ([]*domain.Feedback, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	return s.feedback.SearchText(ctx, productID, query, limit)
}

// ErrNotIndexed is returned when similarity is requested for an item without
// a stored vector
var ErrNotIndexed = errors.New("feedback not indexed")

// hydrate filters matches by product, drops the excluded ID, loads the live
// records and discards matches whose record is gone. Deleted items can linger
// in the index briefly; hydration is what guarantees they never surface.
func (s *Service) hydrate(ctx context.Context, matches []vector.Match, productID, excludeID int64, limit int) ([]Result, error) {
	ids := make([]int64, 0, len(matches))
	scores := make(map[int64]float64, len(matches))
	for _, m := range matches {
		if m.ID == excludeID {
			continue
		}
		if productID != 0 && m.Metadata.ProductID != productID {
			continue
		}
		ids = append(ids, m.ID)
		scores[m.ID] = m.Score
	}

	items, err := s.feedback.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate matches: %w", err)
	}
	if len(items) < len(ids) {
		lgr.Printf("[DEBUG] dropped %d stale vector matches", len(ids)-len(items))
	}

	results := make([]Result, 0, len(items))
	for _, fb := range items {
		results = append(results, Result{Feedback: fb, Score: scores[fb.ID]})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
