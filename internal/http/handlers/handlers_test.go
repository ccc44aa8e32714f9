package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/service"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
)

type stubReports struct {
	err        error
	created    int
	downloaded []string
	items      []domain.Report
}

func (s *stubReports) CreateReport(_ context.Context, userID, title string) (service.CreateReportResult, error) {
	if s.err != nil {
		return service.CreateReportResult{}, s.err
	}
	s.created++
	return service.CreateReportResult{
		ReportID:     "r1",
		Title:        title,
		Location:     "/static/reports/report_" + userID + "_20250301_100000.pdf",
		DownloadLink: "http://localhost:8000/static/reports/report_" + userID + "_20250301_100000.pdf",
	}, nil
}

func (s *stubReports) ListReports(context.Context, string) ([]domain.Report, error) {
	return s.items, nil
}

func (s *stubReports) MarkDownloaded(_ context.Context, location string) (*domain.Report, error) {
	s.downloaded = append(s.downloaded, location)
	return nil, repository.ErrNotFound
}

type stubChat struct{}

func (stubChat) Reply(_ context.Context, userID, message string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.ErrInvalidInput
	}
	return "écho: " + message, nil
}

func (stubChat) History(context.Context, string, int) ([]domain.Message, error) {
	return []domain.Message{{ID: "m1", Body: "Bonjour", Sender: domain.SenderUser, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}}, nil
}

type stubIndex struct {
	texts []string
}

func (s *stubIndex) Search(_ context.Context, query string, k int) ([]similarity.Result, error) {
	results := []similarity.Result{}
	for i, text := range s.texts {
		if i >= k {
			break
		}
		results = append(results, similarity.Result{Text: text, Distance: float64(i)})
	}
	return results, nil
}

func (s *stubIndex) Add(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *stubIndex) Len() int { return len(s.texts) }

func newTestAPI(t *testing.T, reports *stubReports) (*API, storage.ArtifactStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewAPI(Dependencies{
		Reports: reports,
		Chat:    stubChat{},
		Index:   &stubIndex{texts: []string{"a", "b", "c", "d"}},
		Store:   store,
	}), store
}

func doJSON(handler http.HandlerFunc, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	request := httptest.NewRequest(method, target, bytes.NewReader(payload))
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler(recorder, request)
	return recorder
}

func TestGenerateReportReturnsLink(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "Risques Climatiques"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var response generateReportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "rapport généré", response.Status)
	assert.Equal(t, "r1", response.ID)
	assert.True(t, strings.HasSuffix(response.DownloadLink, ".pdf"))
}

func TestGenerateReportRenderingFailureIs502(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{err: &domain.RenderingError{ReportID: "r1", Err: assert.AnError}})

	recorder := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "Budget"}, nil)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "rendering_failed", payload.Error.Code)
}

func TestGenerateReportValidatesPayload(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1"}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "x", "extra": "y"}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(api.GenerateReport, http.MethodGet, "/generate-report", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestGenerateReportIdempotencyKey(t *testing.T) {
	reports := &stubReports{}
	api, _ := newTestAPI(t, reports)
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "Budget"}, headers)
	second := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "Budget"}, headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, reports.created)

	conflict := doJSON(api.GenerateReport, http.MethodPost, "/generate-report",
		map[string]string{"user_id": "u1", "report_name": "Autre"}, headers)
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestChatReturnsResponse(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.Chat, http.MethodPost, "/chat", map[string]string{"user_id": "u1", "message": "Bonjour"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"response":"écho: Bonjour"}`, recorder.Body.String())

	recorder = doJSON(api.Chat, http.MethodPost, "/chat", map[string]string{"user_id": "", "message": "Bonjour"}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMessagesRequiresUser(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.Messages, http.MethodGet, "/messages", nil, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(api.Messages, http.MethodGet, "/messages?user_id=u1&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"sender":"user"`)
}

func TestSearchSectionsDefaultsK(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.SearchSections, http.MethodPost, "/sections/search", map[string]any{"query": "risques"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Results []similarity.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload.Results, similarity.DefaultK)
}

func TestAddSection(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.AddSection, http.MethodPost, "/sections", map[string]string{"text": "Nouvelle section"}, nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"size":5`)

	recorder = doJSON(api.AddSection, http.MethodPost, "/sections", map[string]string{"text": " "}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestStaticReportsStreamsAndTracksDownload(t *testing.T) {
	reports := &stubReports{}
	api, store := newTestAPI(t, reports)
	require.NoError(t, store.Put(context.Background(), "reports/a.pdf", strings.NewReader("%PDF-1.3"), 8, "application/pdf"))

	recorder := doJSON(api.StaticReports, http.MethodGet, "/static/reports/a.pdf", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", recorder.Body.String())
	assert.Equal(t, []string{"/static/reports/a.pdf"}, reports.downloaded)
}

func TestStaticReportsMissingFile(t *testing.T) {
	reports := &stubReports{}
	api, _ := newTestAPI(t, reports)

	recorder := doJSON(api.StaticReports, http.MethodGet, "/static/reports/missing.pdf", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(api.StaticReports, http.MethodGet, "/static/reports/../../etc/passwd", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Empty(t, reports.downloaded)
}

func TestHealthReportsIndexSize(t *testing.T) {
	api, _ := newTestAPI(t, &stubReports{})

	recorder := doJSON(api.Health, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"storage":true,"index":true,"sections":4}}`, recorder.Body.String())

	withoutIndex := NewAPI(Dependencies{})
	recorder = doJSON(withoutIndex.Health, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"storage":false,"index":false}}`, recorder.Body.String())
}
