package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"

	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
)

// webhookSanitizer strips all HTML from inbound webhook text. External
// systems post rich text; only plain text enters the record store.
var webhookSanitizer = bluemonday.StrictPolicy()

// webhookPayload is the inbound webhook body. External systems push their
// own IDs for dedup; raw keeps the original payload for debugging.
type webhookPayload struct {
	ExternalID string          `json:"external_id,omitempty"`
	Title      string          `json:"title,omitempty"`
	Content    string          `json:"content"`
	Author     string          `json:"author,omitempty"`
	URL        string          `json:"url,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// webhookHandler ingests feedback pushed by an external system. The source
// is identified by its numeric ID in the path and authenticated by a
// shared-secret token header.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(r.PathValue("source"), 10, 64)
	if err != nil || sourceID <= 0 {
		renderError(w, r, fmt.Errorf("invalid source %q", r.PathValue("source")), http.StatusBadRequest)
		return
	}

	source, err := s.products.GetSource(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, fmt.Errorf("source %d not found", sourceID), http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	if !source.Enabled {
		renderError(w, r, fmt.Errorf("source %d is disabled", sourceID), http.StatusForbidden)
		return
	}
	if source.Token != "" && r.Header.Get("X-Webhook-Token") != source.Token {
		renderError(w, r, fmt.Errorf("invalid token"), http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderError(w, r, fmt.Errorf("invalid payload: %w", err), http.StatusBadRequest)
		return
	}

	content := strings.TrimSpace(webhookSanitizer.Sanitize(payload.Content))
	if content == "" {
		renderError(w, r, fmt.Errorf("content is required"), http.StatusBadRequest)
		return
	}

	fb := &domain.Feedback{
		ProductID:  source.ProductID,
		SourceID:   source.ID,
		ExternalID: payload.ExternalID,
		Title:      strings.TrimSpace(webhookSanitizer.Sanitize(payload.Title)),
		Content:    content,
		AuthorName: strings.TrimSpace(webhookSanitizer.Sanitize(payload.Author)),
		URL:        payload.URL,
		RawData:    string(payload.Raw),
	}

	id, created, err := s.feedback.Create(r.Context(), fb)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{"id": id, "created": created}
	if !created {
		// duplicate delivery, acknowledge without re-processing
		renderJSON(w, r, http.StatusOK, resp)
		return
	}

	jobID, err := s.pipeline.Enqueue(r.Context(), id)
	if err != nil {
		lgr.Printf("[WARN] enqueue webhook feedback %d: %v", id, err)
	} else {
		resp["job_id"] = jobID
	}

	renderJSON(w, r, http.StatusCreated, resp)
}
