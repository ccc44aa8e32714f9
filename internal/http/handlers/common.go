package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http/middleware"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/service"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
)

var errInvalidPayload = errors.New("invalid payload")

type ReportService interface {
	CreateReport(ctx context.Context, userID, title string) (service.CreateReportResult, error)
	ListReports(ctx context.Context, userID string) ([]domain.Report, error)
	MarkDownloaded(ctx context.Context, location string) (*domain.Report, error)
}

type ChatService interface {
	Reply(ctx context.Context, userID, message string) (string, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Message, error)
}

type SectionIndex interface {
	Search(ctx context.Context, query string, k int) ([]similarity.Result, error)
	Add(ctx context.Context, text string) error
	Len() int
}

type Dependencies struct {
	Reports ReportService
	Chat    ChatService
	Index   SectionIndex
	Store   storage.ArtifactStore
	Logger  *log.Logger
}

type API struct {
	reports     ReportService
	chat        ChatService
	index       SectionIndex
	store       storage.ArtifactStore
	logger      *log.Logger
	idempotency *idempotencyStore
}

func NewAPI(deps Dependencies) *API {
	return &API{
		reports:     deps.Reports,
		chat:        deps.Chat,
		index:       deps.Index,
		store:       deps.Store,
		logger:      deps.Logger,
		idempotency: newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps domain failures onto the error envelope.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch kind := domain.FailureKind(err); kind {
	case "invalid_request":
		writeError(w, r, http.StatusBadRequest, kind, err.Error())
	case "rendering_failed":
		writeError(w, r, http.StatusBadGateway, kind, "report document could not be rendered")
	default:
		if api.logger != nil {
			api.logger.Printf("request failed request_id=%s path=%s err=%v", middleware.GetRequestID(r.Context()), r.URL.Path, err)
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	Response    generateReportResponse
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, response generateReportResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		Response:    response,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
