package handlers

import "net/http"

// Health reports liveness plus the size of the section index. A missing
// index degrades search only, so the status stays "ok".
func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	checks := map[string]any{
		"storage": api.store != nil,
		"index":   api.index != nil,
	}
	if api.index != nil {
		checks["sections"] = api.index.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}
