package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
	"github.com/feedscope/feedscope/pkg/search"
)

// createFeedbackRequest is the manual submission payload. Setting category
// or priority marks the item manually classified: it is stored processed
// right away and the pipeline only embeds it, never calling the classifier.
type createFeedbackRequest struct {
	ProductID  int64  `json:"product_id"`
	SourceName string `json:"source_name,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	AuthorName string `json:"author_name,omitempty"`
	URL        string `json:"url,omitempty"`

	Category domain.Category `json:"category,omitempty"`
	Priority domain.Priority `json:"priority,omitempty"`
}

func (s *Server) createFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req createFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		renderError(w, r, fmt.Errorf("content is required"), http.StatusBadRequest)
		return
	}
	if req.ProductID == 0 {
		renderError(w, r, fmt.Errorf("product_id is required"), http.StatusBadRequest)
		return
	}
	if req.Category != "" && !req.Category.Valid() {
		renderError(w, r, fmt.Errorf("unknown category %q", req.Category), http.StatusBadRequest)
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		renderError(w, r, fmt.Errorf("unknown priority %q", req.Priority), http.StatusBadRequest)
		return
	}

	if _, err := s.products.GetProduct(r.Context(), req.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("product %d not found", req.ProductID), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	sourceName := req.SourceName
	if sourceName == "" {
		sourceName = "manual"
	}
	source, err := s.products.GetOrCreateSource(r.Context(), req.ProductID, "api", sourceName)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	id, created, err := s.feedback.Create(r.Context(), &domain.Feedback{
		ProductID:  req.ProductID,
		SourceID:   source.ID,
		ExternalID: req.ExternalID,
		Title:      req.Title,
		Content:    req.Content,
		AuthorName: req.AuthorName,
		URL:        req.URL,
	})
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{"id": id, "created": created}

	if !created {
		renderJSON(w, r, http.StatusOK, resp)
		return
	}

	// manual classification skips the model: store the verdict now, the
	// pipeline sees a classified item and only embeds it
	if req.Category != "" || req.Priority != "" {
		verdict := domain.DefaultVerdict()
		if req.Category != "" {
			verdict.Category = req.Category
		}
		if req.Priority != "" {
			verdict.Priority = req.Priority
		}
		if err := s.feedback.UpdateClassification(r.Context(), id, verdict); err != nil {
			renderError(w, r, err, http.StatusInternalServerError)
			return
		}
	}

	jobID, err := s.pipeline.Enqueue(r.Context(), id)
	if err != nil {
		// the item is stored either way, backfill will pick it up
		lgr.Printf("[WARN] enqueue feedback %d: %v", id, err)
	} else {
		resp["job_id"] = jobID
	}

	renderJSON(w, r, http.StatusCreated, resp)
}

func (s *Server) listFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := repository.ListRequest{
		ProductID: queryInt64(q.Get("product_id")),
		Category:  domain.Category(q.Get("category")),
		Sentiment: domain.Sentiment(q.Get("sentiment")),
		Priority:  domain.Priority(q.Get("priority")),
		Limit:     int(queryInt64(q.Get("limit"))),
		Offset:    int(queryInt64(q.Get("offset"))),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			renderError(w, r, fmt.Errorf("unknown status %q", raw), http.StatusBadRequest)
			return
		}
		req.Status = status
	}

	items, err := s.feedback.List(r.Context(), req)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toFeedbackListJSON(items))
}

func (s *Server) getFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	fb, err := s.feedback.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("feedback %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toFeedbackJSON(fb))
}

// updateFeedbackHandler edits title and content. The stored classification
// and embedding stay as they are; re-classification is an explicit backfill
// decision, not an automatic side effect of editing.
func (s *Server) updateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		renderError(w, r, fmt.Errorf("content is required"), http.StatusBadRequest)
		return
	}

	if err := s.feedback.UpdateContent(r.Context(), id, req.Title, req.Content); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("feedback %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	fb, err := s.feedback.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toFeedbackJSON(fb))
}

// deleteFeedbackHandler removes the record and its vector. The record store
// is the source of truth: even if vector cleanup fails, hydration on search
// guarantees the deleted item never surfaces.
func (s *Server) deleteFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.feedback.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("feedback %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := s.vectors.Delete(r.Context(), []int64{id}); err != nil {
		lgr.Printf("[WARN] delete vector for feedback %d: %v", id, err)
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{"deleted": id})
}

func (s *Server) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		renderError(w, r, fmt.Errorf("unknown status %q", req.Status), http.StatusBadRequest)
		return
	}

	if err := s.feedback.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("feedback %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"id": id, "status": status})
}

func (s *Server) updateTriageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Category domain.Category `json:"category"`
		Priority domain.Priority `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Category == "" && req.Priority == "" {
		renderError(w, r, fmt.Errorf("category or priority is required"), http.StatusBadRequest)
		return
	}
	if req.Category != "" && !req.Category.Valid() {
		renderError(w, r, fmt.Errorf("unknown category %q", req.Category), http.StatusBadRequest)
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		renderError(w, r, fmt.Errorf("unknown priority %q", req.Priority), http.StatusBadRequest)
		return
	}

	if err := s.feedback.UpdateTriage(r.Context(), id, req.Category, req.Priority); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("feedback %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	fb, err := s.feedback.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toFeedbackJSON(fb))
}

func (s *Server) similarFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	limit := int(queryInt64(q.Get("limit")))
	productID := queryInt64(q.Get("product_id"))

	results, err := s.searcher.SimilarTo(r.Context(), id, productID, limit)
	if err != nil {
		if errors.Is(err, search.ErrNotIndexed) {
			renderError(w, r, fmt.Errorf("feedback %d has no embedding yet", id), http.StatusConflict)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toSearchResultsJSON(results))
}

// pathID parses the {id} path segment
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryInt64 parses an optional numeric query parameter, zero when absent or
// malformed
func queryInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
