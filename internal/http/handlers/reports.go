package handlers

import (
	"net/http"
	"strings"
	"time"
)

type generateReportRequest struct {
	UserID     string `json:"user_id"`
	ReportName string `json:"report_name"`
}

type generateReportResponse struct {
	Status       string `json:"status"`
	ID           string `json:"id"`
	DownloadLink string `json:"download_link"`
}

type reportItem struct {
	ID          string   `json:"id"`
	ReportName  string   `json:"report_name"`
	Plan        []string `json:"plan"`
	GeneratedAt string   `json:"generated_at"`
	FilePath    string   `json:"file_path"`
	Downloaded  bool     `json:"downloaded"`
	EmailSent   bool     `json:"email_sent"`
	CallPlaced  bool     `json:"call_scheduled"`
}

// GenerateReport handles POST /generate-report. An optional Idempotency-Key
// header replays the first response for the same payload.
func (api *API) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request generateReportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.UserID) == "" || strings.TrimSpace(request.ReportName) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "user_id and report_name are required")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			writeJSON(w, http.StatusOK, entry.Response)
			return
		}
	}

	result, err := api.reports.CreateReport(r.Context(), request.UserID, request.ReportName)
	if err != nil {
		api.writeServiceError(w, r, err, "failed to generate report")
		return
	}

	response := generateReportResponse{
		Status:       "rapport généré",
		ID:           result.ReportID,
		DownloadLink: result.DownloadLink,
	}
	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, response)
	}
	writeJSON(w, http.StatusOK, response)
}

// Reports handles GET /reports?user_id=.
func (api *API) Reports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	items, err := api.reports.ListReports(r.Context(), userID)
	if err != nil {
		api.writeServiceError(w, r, err, "failed to list reports")
		return
	}

	payloadItems := make([]reportItem, 0, len(items))
	for _, item := range items {
		payloadItems = append(payloadItems, reportItem{
			ID:          item.ID,
			ReportName:  item.Title,
			Plan:        item.Plan,
			GeneratedAt: item.GeneratedAt.Format(time.RFC3339Nano),
			FilePath:    item.Location,
			Downloaded:  item.Downloaded,
			EmailSent:   item.EmailSent,
			CallPlaced:  item.CallPlaced,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payloadItems,
		"total": len(payloadItems),
	})
}
