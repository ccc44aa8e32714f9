package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/render"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
)

// StaticReports handles GET /static/reports/<file>: it streams the PDF from
// the artifact store and flags the matching report as downloaded.
func (api *API) StaticReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	key, err := storage.CleanKey(strings.TrimPrefix(r.URL.Path, render.StaticPrefix))
	if err != nil || !strings.HasPrefix(key, "reports/") {
		writeError(w, r, http.StatusNotFound, "not_found", "report not found")
		return
	}

	artifact, err := api.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")
			return
		}
		api.writeServiceError(w, r, err, "failed to open report")
		return
	}
	defer artifact.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	location := render.StaticPrefix + key
	if _, err := api.reports.MarkDownloaded(r.Context(), location); err != nil && !errors.Is(err, repository.ErrNotFound) {
		if api.logger != nil {
			api.logger.Printf("download tracking failed location=%s err=%v", location, err)
		}
	}
	_, _ = io.Copy(w, artifact)
}
