package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/ai"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/cache"
	httpserver "github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http/handlers"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/notify"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/render"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/service"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/worker"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server *httptest.Server
	cancel func()
}

// cannedGenerator answers instantly so the benchmark measures the pipeline,
// not the model.
type cannedGenerator struct{}

func (cannedGenerator) Available() bool { return true }

func (cannedGenerator) Generate(_ context.Context, request ai.GenerateRequest) (ai.GenerateResult, error) {
	return ai.GenerateResult{Text: "Introduction\nDéveloppement\nConclusion", ModelID: request.Model}, nil
}

type discardNotifier struct{}

func (discardNotifier) Send(context.Context, notify.Email) error { return nil }

func (discardNotifier) Call(context.Context, notify.VoiceCall) (string, error) { return "CA-load", nil }

func main() {
	chatTotal := flag.Int("chat-total", 260, "total conversational chat requests")
	chatConcurrency := flag.Int("chat-concurrency", 24, "concurrency for chat requests")
	reportsTotal := flag.Int("reports-total", 120, "total generate-report requests")
	reportsConcurrency := flag.Int("reports-concurrency", 16, "concurrency for generate-report requests")
	reportsListTotal := flag.Int("reports-list-total", 120, "total report list requests")
	reportsListConcurrency := flag.Int("reports-list-concurrency", 20, "concurrency for report list requests")
	searchTotal := flag.Int("search-total", 200, "total section search requests")
	searchConcurrency := flag.Int("search-concurrency", 20, "concurrency for section search requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()

	client := &http.Client{Timeout: 10 * time.Second}

	chatScenario := runScenario("chat_conversation", *chatTotal, *chatConcurrency, func(index int) error {
		payload := map[string]any{
			"user_id": fmt.Sprintf("load-user-%d", index%32),
			"message": "Quels sont les points clés d'une bonne conclusion ?",
		}
		return postJSON(client, env.server.URL+"/chat", payload, nil, http.StatusOK)
	})

	reportsScenario := runScenario("generate_report", *reportsTotal, *reportsConcurrency, func(index int) error {
		payload := map[string]any{
			"user_id":     fmt.Sprintf("load-user-%d", index%32),
			"report_name": fmt.Sprintf("Rapport de charge %d", index),
		}
		return postJSON(client, env.server.URL+"/generate-report", payload, nil, http.StatusOK)
	})

	reportsListScenario := runScenario("reports_list", *reportsListTotal, *reportsListConcurrency, func(index int) error {
		return getJSON(client, fmt.Sprintf("%s/reports?user_id=load-user-%d", env.server.URL, index%32), http.StatusOK)
	})

	searchScenario := runScenario("sections_search", *searchTotal, *searchConcurrency, func(index int) error {
		payload := map[string]any{
			"query": fmt.Sprintf("analyse des risques %d", index%10),
			"k":     3,
		}
		return postJSON(client, env.server.URL+"/sections/search", payload, nil, http.StatusOK)
	})

	results := []scenarioResult{
		chatScenario,
		reportsScenario,
		reportsListScenario,
		searchScenario,
	}

	slo := map[string]bool{
		"generate_report_p95_le_2000ms": reportsScenario.P95MS <= 2000,
		"chat_p95_le_1000ms":            chatScenario.P95MS <= 1000,
		"sections_search_p95_le_200ms":  searchScenario.P95MS <= 200,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	dir, err := os.MkdirTemp("", "report-load-*")
	if err != nil {
		cancel()
		return nil, err
	}

	repo := repository.NewMemoryRepository()
	localQueue := queue.NewLocalQueue(4096, 1, logger)
	store, err := storage.NewLocalStore(filepath.Join(dir, "static"))
	if err != nil {
		cancel()
		return nil, err
	}
	index, err := similarity.Open(ctx, similarity.Config{
		Path:     filepath.Join(dir, "sections.db"),
		Embedder: ai.NewHashEmbedder(ai.HashDimensions),
		Cache:    cache.NewEmbeddingCache(cache.Config{TTL: 10 * time.Minute, MaxEntries: 4000}),
		Logger:   logger,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := index.SeedIfEmpty(ctx, nil); err != nil {
		cancel()
		return nil, err
	}

	m := metrics.New()
	generation := service.NewGenerationService(service.GenerationDependencies{
		Client:  cannedGenerator{},
		Metrics: m,
		Logger:  logger,
	})

	var router http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))

	workflow := service.NewReportWorkflow(service.ReportWorkflowDependencies{
		Reports:       repo,
		Generator:     generation,
		Renderer:      render.NewPDFRenderer(render.Dependencies{Store: store, Logger: logger}),
		Scheduler:     queue.NewTaskScheduler(localQueue),
		PublicBaseURL: server.URL,
		ReminderDelay: 50 * time.Millisecond,
		CallDelay:     100 * time.Millisecond,
		Metrics:       m,
		Logger:        logger,
	})
	chat := service.NewChatService(service.ChatDependencies{
		Messages:  repo,
		Reports:   repo,
		Workflow:  workflow,
		Generator: generation,
		Metrics:   m,
		Logger:    logger,
	})
	tasks := worker.NewTasks(worker.TasksDependencies{
		Reports:   repo,
		Mailer:    discardNotifier{},
		Caller:    discardNotifier{},
		Directory: notify.StaticDirectory{Email: "load@example.com", Phone: "+33600000000"},
		Metrics:   m,
		Logger:    logger,
	})

	api := handlers.NewAPI(handlers.Dependencies{
		Reports: workflow,
		Chat:    chat,
		Index:   index,
		Store:   store,
		Logger:  logger,
	})
	router = httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Metrics:        m.Handler(),
		Logger:         logger,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	processor := worker.NewProcessor(localQueue, tasks.Handlers(), 4, m, logger)
	go processor.Start(ctx)

	return &benchmarkEnv{
		server: server,
		cancel: func() {
			cancel()
			server.Close()
			_ = localQueue.Close()
			_ = index.Close()
			_ = os.RemoveAll(dir)
		},
	}, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	result := scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
	return result
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
	expectedStatus int,
) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
