package handlers

import (
	"net/http"
	"strings"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
)

type searchSectionsRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type addSectionRequest struct {
	Text string `json:"text"`
}

// SearchSections handles POST /sections/search.
func (api *API) SearchSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if api.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, "index_unavailable", "section index is not configured")
		return
	}

	var request searchSectionsRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if request.K <= 0 {
		request.K = similarity.DefaultK
	}

	results, err := api.index.Search(r.Context(), request.Query, request.K)
	if err != nil {
		api.writeServiceError(w, r, err, "failed to search sections")
		return
	}

	items := make([]map[string]any, 0, len(results))
	for _, result := range results {
		items = append(items, map[string]any{
			"text":     result.Text,
			"distance": result.Distance,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

// AddSection handles POST /sections.
func (api *API) AddSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if api.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, "index_unavailable", "section index is not configured")
		return
	}

	var request addSectionRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	if err := api.index.Add(r.Context(), request.Text); err != nil {
		api.writeServiceError(w, r, err, "failed to add section")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "ajouté", "size": api.index.Len()})
}
