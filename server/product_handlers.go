package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
)

func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		renderError(w, r, fmt.Errorf("name is required"), http.StatusBadRequest)
		return
	}

	id, err := s.products.CreateProduct(r.Context(), &domain.Product{Name: req.Name, Description: req.Description})
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	product, err := s.products.GetProduct(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, toProductJSON(product))
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.ListProducts(r.Context())
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	out := make([]productJSON, len(products))
	for i, p := range products {
		out[i] = toProductJSON(p)
	}
	renderJSON(w, r, http.StatusOK, out)
}

func (s *Server) productSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.products.GetProduct(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("product %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, summary)
}

func (s *Server) productStatsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	stats, err := s.feedback.GetStats(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, stats)
}

func (s *Server) listSourcesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	sources, err := s.products.ListSources(r.Context(), id)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	out := make([]sourceJSON, len(sources))
	for i, src := range sources {
		out[i] = toSourceJSON(src)
	}
	renderJSON(w, r, http.StatusOK, out)
}

func (s *Server) createSourceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		renderError(w, r, fmt.Errorf("name is required"), http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = "webhook"
	}

	if _, err := s.products.GetProduct(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("product %d not found", id), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	source, err := s.products.GetOrCreateSource(r.Context(), id, req.Type, req.Name)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, toSourceJSON(source))
}

func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		renderError(w, r, fmt.Errorf("job id is required"), http.StatusBadRequest)
		return
	}

	job, err := s.pipeline.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("job %s not found", jobID), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toJobJSON(job))
}

func (s *Server) backfillHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.Backfill(r.Context())
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]int{"enqueued": n})
}
