package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Chat handles POST /chat.
func (api *API) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request chatRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	response, err := api.chat.Reply(r.Context(), request.UserID, request.Message)
	if err != nil {
		api.writeServiceError(w, r, err, "failed to answer message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// Messages handles GET /messages?user_id=&limit=.
func (api *API) Messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := api.chat.History(r.Context(), userID, limit)
	if err != nil {
		api.writeServiceError(w, r, err, "failed to load messages")
		return
	}

	items := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		items = append(items, map[string]any{
			"id":        message.ID,
			"message":   message.Body,
			"sender":    string(message.Sender),
			"timestamp": message.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
