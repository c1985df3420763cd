package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/feedscope/feedscope/pkg/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// FeedbackRepository handles feedback-related database operations
type FeedbackRepository struct {
	db *sqlx.DB
}

// feedbackSQL represents a feedback row for SQL operations
type feedbackSQL struct {
	ID          int64  `db:"id"`
	ProductID   int64  `db:"product_id"`
	SourceID    int64  `db:"source_id"`
	ExternalID  string `db:"external_id"`
	Title       string `db:"title"`
	Content     string `db:"content"`
	AuthorName  string `db:"author_name"`
	AuthorEmail string `db:"author_email"`
	URL         string `db:"url"`
	RawData     string `db:"raw_data"`

	SentimentScore *float64 `db:"sentiment_score"`
	SentimentLabel *string  `db:"sentiment_label"`
	Category       *string  `db:"category"`
	Priority       *string  `db:"priority"`

	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(database *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: database}
}

func (r *FeedbackRepository) toDomain(f *feedbackSQL) *domain.Feedback {
	fb := &domain.Feedback{
		ID:          f.ID,
		ProductID:   f.ProductID,
		SourceID:    f.SourceID,
		ExternalID:  f.ExternalID,
		Title:       f.Title,
		Content:     f.Content,
		AuthorName:  f.AuthorName,
		AuthorEmail: f.AuthorEmail,
		URL:         f.URL,
		RawData:     f.RawData,
		Status:      domain.Status(f.Status),
		CreatedAt:   f.CreatedAt,
		ProcessedAt: f.ProcessedAt,
	}
	fb.SentimentScore = f.SentimentScore
	if f.SentimentLabel != nil {
		label := domain.Sentiment(*f.SentimentLabel)
		fb.SentimentLabel = &label
	}
	if f.Category != nil {
		category := domain.Category(*f.Category)
		fb.Category = &category
	}
	if f.Priority != nil {
		priority := domain.Priority(*f.Priority)
		fb.Priority = &priority
	}
	return fb
}

// Create inserts a feedback item and returns its ID. Items with a non-empty
// external ID deduplicate per source: a duplicate insert returns the existing
// row's ID and reports created=false.
func (r *FeedbackRepository) Create(ctx context.Context, fb *domain.Feedback) (id int64, created bool, err error) {
	err = newRetrier().Do(ctx, func() error {
		query := `
			INSERT INTO feedback (product_id, source_id, external_id, title, content,
			                      author_name, author_email, url, raw_data, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`
		status := fb.Status
		if status == "" {
			status = domain.StatusUnprocessed
		}
		res, execErr := r.db.ExecContext(ctx, query, fb.ProductID, fb.SourceID, fb.ExternalID,
			fb.Title, fb.Content, fb.AuthorName, fb.AuthorEmail, fb.URL, fb.RawData, status)
		if execErr != nil {
			if isLockError(execErr) {
				return execErr // retry
			}
			return &criticalError{err: fmt.Errorf("insert feedback: %w", execErr)}
		}

		affected, execErr := res.RowsAffected()
		if execErr != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", execErr)}
		}
		if affected == 0 {
			// duplicate external_id for this source, return the existing row
			getErr := r.db.GetContext(ctx, &id,
				"SELECT id FROM feedback WHERE source_id = ? AND external_id = ?", fb.SourceID, fb.ExternalID)
			if getErr != nil {
				return &criticalError{err: fmt.Errorf("lookup duplicate feedback: %w", getErr)}
			}
			created = false
			return nil
		}

		lastID, execErr := res.LastInsertId()
		if execErr != nil {
			return &criticalError{err: fmt.Errorf("last insert id: %w", execErr)}
		}
		id, created = lastID, true
		return nil
	})
	return id, created, err
}

// Get returns a single feedback item by ID
func (r *FeedbackRepository) Get(ctx context.Context, id int64) (*domain.Feedback, error) {
	var row feedbackSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM feedback WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback %d: %w", id, err)
	}
	return r.toDomain(&row), nil
}

// ListRequest filters and pages feedback listings. Zero-value fields mean
// no filter.
type ListRequest struct {
	ProductID int64
	Category  domain.Category
	Sentiment domain.Sentiment
	Priority  domain.Priority
	Status    domain.Status
	Limit     int
	Offset    int
}

// List returns feedback items matching the request, newest first
func (r *FeedbackRepository) List(ctx context.Context, req ListRequest) ([]*domain.Feedback, error) {
	query := "SELECT * FROM feedback WHERE 1=1"
	var args []interface{}

	if req.ProductID != 0 {
		query += " AND product_id = ?"
		args = append(args, req.ProductID)
	}
	if req.Category != "" {
		query += " AND category = ?"
		args = append(args, req.Category)
	}
	if req.Sentiment != "" {
		query += " AND sentiment_label = ?"
		args = append(args, req.Sentiment)
	}
	if req.Priority != "" {
		query += " AND priority = ?"
		args = append(args, req.Priority)
	}
	if req.Status != "" {
		query += " AND status = ?"
		args = append(args, req.Status)
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if req.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, req.Offset)
	}

	var rows []feedbackSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	items := make([]*domain.Feedback, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}

// GetByIDs returns feedback items for the given IDs, preserving the input
// order. Missing IDs are silently skipped so callers can hydrate stale vector
// matches without extra existence checks.
func (r *FeedbackRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Feedback, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT * FROM feedback WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []feedbackSQL
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get feedback by ids: %w", err)
	}

	byID := make(map[int64]*domain.Feedback, len(rows))
	for i := range rows {
		byID[rows[i].ID] = r.toDomain(&rows[i])
	}

	items := make([]*domain.Feedback, 0, len(rows))
	for _, id := range ids {
		if fb, ok := byID[id]; ok {
			items = append(items, fb)
		}
	}
	return items, nil
}

// GetUnclassified returns items without a stored classification, newest first
func (r *FeedbackRepository) GetUnclassified(ctx context.Context, limit int) ([]*domain.Feedback, error) {
	var rows []feedbackSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM feedback
		WHERE processed_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get unclassified feedback: %w", err)
	}

	items := make([]*domain.Feedback, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}

// UpdateClassification stores the verdict atomically: all four fields and
// processed_at land in one statement. Status moves to processed only from
// unprocessed, a manual lifecycle state set by a reviewer is not clobbered.
// processed_at is set once, on the first classification, so re-running the
// pipeline over an already classified item converges to an identical record.
func (r *FeedbackRepository) UpdateClassification(ctx context.Context, id int64, v domain.Verdict) error {
	return newRetrier().Do(ctx, func() error {
		query := `
			UPDATE feedback
			SET sentiment_score = ?,
			    sentiment_label = ?,
			    category = ?,
			    priority = ?,
			    processed_at = COALESCE(processed_at, datetime('now')),
			    status = CASE WHEN status = 'unprocessed' THEN 'processed' ELSE status END
			WHERE id = ?
		`
		res, err := r.db.ExecContext(ctx, query, v.SentimentScore, v.SentimentLabel, v.Category, v.Priority, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update classification: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// UpdateTriage overrides category and priority manually. Either field may be
// empty to keep its current value. Triaging an unclassified item stores a
// full classification: the missing fields get the neutral defaults and
// processed_at is set, so the item keeps the invariant that all four
// classification fields and processed_at go together and the backfill sweep
// never overwrites the operator's call with a model verdict.
func (r *FeedbackRepository) UpdateTriage(ctx context.Context, id int64, category domain.Category, priority domain.Priority) error {
	if category == "" && priority == "" {
		return nil
	}
	def := domain.DefaultVerdict()

	return newRetrier().Do(ctx, func() error {
		query := `
			UPDATE feedback
			SET category = COALESCE(NULLIF(?, ''), category, ?),
			    priority = COALESCE(NULLIF(?, ''), priority, ?),
			    sentiment_score = COALESCE(sentiment_score, ?),
			    sentiment_label = COALESCE(sentiment_label, ?),
			    processed_at = COALESCE(processed_at, datetime('now')),
			    status = CASE WHEN status = 'unprocessed' THEN 'processed' ELSE status END
			WHERE id = ?
		`
		res, err := r.db.ExecContext(ctx, query,
			category, def.Category, priority, def.Priority,
			def.SentimentScore, def.SentimentLabel, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update triage: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// UpdateStatus moves a feedback item to a new lifecycle state
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	return newRetrier().Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, "UPDATE feedback SET status = ? WHERE id = ?", status, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update status: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// UpdateContent edits title and content of an existing item
func (r *FeedbackRepository) UpdateContent(ctx context.Context, id int64, title, content string) error {
	return newRetrier().Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, "UPDATE feedback SET title = ?, content = ? WHERE id = ?", title, content, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update content: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// Delete removes a feedback item. Vector cleanup is the caller's job, the
// record store and the vector index have no shared transaction.
func (r *FeedbackRepository) Delete(ctx context.Context, id int64) error {
	return newRetrier().Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("delete feedback: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// SearchText does a plain substring search over title and content, the
// non-semantic fallback when no embeddings are available
func (r *FeedbackRepository) SearchText(ctx context.Context, productID int64, query string, limit int) ([]*domain.Feedback, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	sqlQuery := `
		SELECT * FROM feedback
		WHERE (title LIKE ? OR content LIKE ?)
	`
	args := []interface{}{pattern, pattern}
	if productID != 0 {
		sqlQuery += " AND product_id = ?"
		args = append(args, productID)
	}
	sqlQuery += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []feedbackSQL
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("search feedback: %w", err)
	}

	items := make([]*domain.Feedback, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}

// Stats holds aggregate counts over a product's feedback
type Stats struct {
	Total       int                      `json:"total"`
	Unprocessed int                      `json:"unprocessed"`
	ByCategory  map[domain.Category]int  `json:"by_category"`
	BySentiment map[domain.Sentiment]int `json:"by_sentiment"`
	ByPriority  map[domain.Priority]int  `json:"by_priority"`
	ByStatus    map[domain.Status]int    `json:"by_status"`
}

// GetStats computes aggregate counts for a product, or across all products
// when productID is zero
func (r *FeedbackRepository) GetStats(ctx context.Context, productID int64) (*Stats, error) {
	where := ""
	var args []interface{}
	if productID != 0 {
		where = " WHERE product_id = ?"
		args = append(args, productID)
	}

	stats := &Stats{
		ByCategory:  make(map[domain.Category]int),
		BySentiment: make(map[domain.Sentiment]int),
		ByPriority:  make(map[domain.Priority]int),
		ByStatus:    make(map[domain.Status]int),
	}

	if err := r.db.GetContext(ctx, &stats.Total, "SELECT COUNT(*) FROM feedback"+where, args...); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	type bucket struct {
		Key   *string `db:"key"`
		Count int     `db:"count"`
	}

	count := func(column string, assign func(key string, n int)) error {
		query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM feedback%s GROUP BY %s", column, where, column)
		var buckets []bucket
		if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
			return fmt.Errorf("count by %s: %w", column, err)
		}
		for _, b := range buckets {
			if b.Key == nil {
				continue
			}
			assign(*b.Key, b.Count)
		}
		return nil
	}

	if err := count("category", func(k string, n int) { stats.ByCategory[domain.Category(k)] = n }); err != nil {
		return nil, err
	}
	if err := count("sentiment_label", func(k string, n int) { stats.BySentiment[domain.Sentiment(k)] = n }); err != nil {
		return nil, err
	}
	if err := count("priority", func(k string, n int) { stats.ByPriority[domain.Priority(k)] = n }); err != nil {
		return nil, err
	}
	if err := count("status", func(k string, n int) { stats.ByStatus[domain.Status(k)] = n }); err != nil {
		return nil, err
	}

	stats.Unprocessed = stats.ByStatus[domain.StatusUnprocessed]
	return stats, nil
}

// GetRecentClassified returns the newest classified items for a product,
// used by the summary rollup
func (r *FeedbackRepository) GetRecentClassified(ctx context.Context, productID int64, limit int) ([]*domain.Feedback, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []feedbackSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM feedback
		WHERE product_id = ? AND processed_at IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent classified feedback: %w", err)
	}

	items := make([]*domain.Feedback, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}
