// Package app assembles the runtime stack from configuration. Each backend
// falls back to its in-process implementation when the external service is
// not configured or unreachable.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/ai"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/cache"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/config"
	contextbuilder "github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/context"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/notify"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/quality"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/render"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/service"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/worker"
)

// Repository is the persistence surface shared by reports and messages.
type Repository interface {
	repository.ReportsRepository
	repository.MessagesRepository
}

type App struct {
	Config   config.Config
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Repo     Repository
	Producer queue.Producer
	Consumer queue.Consumer
	Store    storage.ArtifactStore
	Index    *similarity.Index

	Generation *service.GenerationService
	Workflow   *service.ReportWorkflow
	Chat       *service.ChatService
	Tasks      *worker.Tasks

	closers []func()
}

// New builds every component. The similarity index is optional: when it
// cannot be opened the error is logged and Index stays nil. An error is
// returned only when no artifact store can be created; resources opened
// before that point are released.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	a.Repo = a.setupRepository(ctx)
	a.Producer, a.Consumer = a.setupQueue(ctx)
	store, err := a.setupStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	geminiClient := NewGeminiClient(cfg)
	if !geminiClient.Available() {
		logger.Printf("GEMINI_API_KEY not configured, reports will use placeholder content")
	}

	a.Index = a.setupIndex(ctx, geminiClient)

	a.Generation = service.NewGenerationService(service.GenerationDependencies{
		Router: ai.NewModelRouter(ai.ModelRouterConfig{
			PrimaryModel:  cfg.GeminiModelPrimary,
			FallbackModel: cfg.GeminiModelFallback,
		}),
		Client:         geminiClient,
		Metrics:        a.Metrics,
		References:     a.referenceBuilder(),
		ReferenceCount: cfg.ReferenceSections,
		Validator:      quality.NewReportValidator(cfg.ReportMaxChars),
		Logger:         logger,
	})

	a.Workflow = service.NewReportWorkflow(service.ReportWorkflowDependencies{
		Reports:       a.Repo,
		Generator:     a.Generation,
		Renderer:      render.NewPDFRenderer(render.Dependencies{Store: a.Store, Logger: logger}),
		Scheduler:     queue.NewTaskScheduler(a.Producer),
		PublicBaseURL: cfg.PublicBaseURL,
		ReminderDelay: cfg.ReminderDelay(),
		CallDelay:     cfg.CallDelay(),
		Metrics:       a.Metrics,
		Logger:        logger,
	})

	a.Chat = service.NewChatService(service.ChatDependencies{
		Messages:  a.Repo,
		Reports:   a.Repo,
		Workflow:  a.Workflow,
		Generator: a.Generation,
		Metrics:   a.Metrics,
		Logger:    logger,
	})

	a.Tasks = worker.NewTasks(worker.TasksDependencies{
		Reports: a.Repo,
		Mailer: notify.NewSendGridMailer(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			Timeout:   10 * time.Second,
		}),
		Caller: notify.NewTwilioCaller(notify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioPhoneNumber,
			EchoURL:    cfg.TwilioEchoURL,
			Timeout:    10 * time.Second,
		}),
		Directory: notify.StaticDirectory{Email: cfg.ReminderEmailTo, Phone: cfg.CallToNumber},
		Metrics:   a.Metrics,
		Logger:    logger,
	})

	return a, nil
}

// Processor returns the worker pool consuming the deferred notification tasks.
func (a *App) Processor() *worker.Processor {
	return worker.NewProcessor(a.Consumer, a.Tasks.Handlers(), a.Config.WorkerConcurrency, a.Metrics, a.Logger)
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) setupRepository(ctx context.Context) Repository {
	if a.Config.DatabaseURL == "" {
		a.Logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryRepository()
	}

	pgRepo, err := repository.NewPostgresRepository(ctx, a.Config.DatabaseURL)
	if err != nil {
		a.Logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryRepository()
	}
	a.Logger.Printf("postgres repository initialized")
	a.closers = append(a.closers, pgRepo.Close)
	return pgRepo
}

func (a *App) setupQueue(ctx context.Context) (queue.Producer, queue.Consumer) {
	cfg := a.Config
	if cfg.RedisAddr == "" {
		a.Logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		return a.localQueue()
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DelayedKey:  cfg.RedisDelayedKey,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: cfg.QueueMaxAttempts,
		Logger:      a.Logger,
	})
	if err != nil {
		a.Logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		return a.localQueue()
	}
	a.Logger.Printf("redis streams queue initialized stream=%s", cfg.RedisStream)
	a.closers = append(a.closers, func() { _ = streams.Close() })
	return streams, streams
}

func (a *App) localQueue() (queue.Producer, queue.Consumer) {
	local := queue.NewLocalQueue(a.Config.QueueBufferSize, a.Config.QueueMaxAttempts, a.Logger)
	a.closers = append(a.closers, func() { _ = local.Close() })
	return local, local
}

func (a *App) setupStore(ctx context.Context) (storage.ArtifactStore, error) {
	cfg := a.Config
	if cfg.MinIOEndpoint != "" {
		store, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err == nil {
			a.Logger.Printf("minio artifact store initialized bucket=%s", cfg.MinIOBucket)
			return store, nil
		}
		a.Logger.Printf("failed to initialize minio store, fallback to local dir: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("local artifact store dir=%s: %w", cfg.StaticDir, err)
	}
	a.Logger.Printf("local artifact store dir=%s", cfg.StaticDir)
	return store, nil
}

func (a *App) setupIndex(ctx context.Context, client *ai.GeminiClient) *similarity.Index {
	index, err := OpenIndex(ctx, a.Config, client, a.Logger)
	if err != nil {
		a.Logger.Printf("similarity index unavailable path=%s: %v", a.Config.IndexDBPath, err)
		return nil
	}
	a.closers = append(a.closers, func() { _ = index.Close() })

	sections, err := SeedSections(a.Config.IndexSeedFile)
	if err != nil {
		a.Logger.Printf("seed file ignored path=%s: %v", a.Config.IndexSeedFile, err)
	}
	added, err := index.SeedIfEmpty(ctx, sections)
	if err != nil {
		a.Logger.Printf("seeding similarity index failed: %v", err)
	} else if added > 0 {
		a.Logger.Printf("similarity index seeded sections=%d", added)
	}
	return index
}

// referenceBuilder is disabled when REFERENCE_SECTIONS is zero or negative.
// Without an index it falls back to keyword matching over the default sections.
func (a *App) referenceBuilder() service.ReferenceBuilder {
	if a.Config.ReferenceSections <= 0 {
		return nil
	}
	var retriever contextbuilder.Retriever = contextbuilder.NewKeywordRetriever(similarity.DefaultSections)
	if a.Index != nil {
		retriever = contextbuilder.NewIndexRetriever(a.Index)
	}
	return contextbuilder.NewBuilder(retriever)
}

func NewGeminiClient(cfg config.Config) *ai.GeminiClient {
	return ai.NewGeminiClient(ai.GeminiClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Timeout:    cfg.GeminiTimeout(),
		MaxRetries: cfg.GeminiMaxRetries,
	})
}

// OpenIndex opens the section index with the Gemini embedder when the client
// has an API key, and the local hashing embedder otherwise.
func OpenIndex(ctx context.Context, cfg config.Config, client *ai.GeminiClient, logger *log.Logger) (*similarity.Index, error) {
	var embedder ai.Embedder = ai.NewHashEmbedder(ai.HashDimensions)
	if client != nil && client.Available() {
		embedder = ai.NewGeminiEmbedder(client, cfg.GeminiEmbeddingModel)
	}
	return similarity.Open(ctx, similarity.Config{
		Path:     cfg.IndexDBPath,
		Embedder: embedder,
		Cache: cache.NewEmbeddingCache(cache.Config{
			TTL:        cfg.EmbeddingCacheTTL(),
			MaxEntries: cfg.EmbeddingCacheMaxEntries,
		}),
		Logger: logger,
	})
}

// SeedSections returns the sections of the YAML seed file, or the built-in
// defaults when path is empty or unreadable.
func SeedSections(path string) ([]string, error) {
	if path == "" {
		return similarity.DefaultSections, nil
	}
	sections, err := similarity.LoadSeedFile(path)
	if err != nil {
		return similarity.DefaultSections, err
	}
	return sections, nil
}
