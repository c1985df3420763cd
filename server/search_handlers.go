package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// searchRequest is the semantic search payload
type searchRequest struct {
	Query     string `json:"query"`
	ProductID int64  `json:"product_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		renderError(w, r, fmt.Errorf("query is required"), http.StatusBadRequest)
		return
	}

	results, err := s.searcher.Similar(r.Context(), req.Query, req.ProductID, req.Limit)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toSearchResultsJSON(results))
}

func (s *Server) textSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		renderError(w, r, fmt.Errorf("q parameter is required"), http.StatusBadRequest)
		return
	}

	items, err := s.searcher.Text(r.Context(), queryInt64(q.Get("product_id")), query, int(queryInt64(q.Get("limit"))))
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toFeedbackListJSON(items))
}
