// Package bootstrap wires adapters, services, and the stage pools into a
// running pipeline.
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpin "mailgate_server/adapter/in/http"
	"mailgate_server/adapter/in/worker"
	"mailgate_server/adapter/out/persistence"
	"mailgate_server/adapter/out/provider"
	"mailgate_server/adapter/out/realtime"
	"mailgate_server/config"
	"mailgate_server/core/llm"
	"mailgate_server/core/port/out"
	"mailgate_server/core/service/classify"
	"mailgate_server/core/service/draft"
	"mailgate_server/core/service/filtering"
	"mailgate_server/core/service/rules"
	"mailgate_server/core/service/safety"
	"mailgate_server/core/service/usage"
	"mailgate_server/core/service/webhook"
	"mailgate_server/infra/database"
	"mailgate_server/internal/stream"
	"mailgate_server/pkg/httputil"
)

// Dependencies holds every wired component of the pipeline.
type Dependencies struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	EmailRepo   out.EmailRepository
	RuleRepo    out.RuleRepository
	DraftRepo   out.DraftRepository
	AccountRepo out.AccountRepository
	UserRepo    out.UserRepository
	APIKeyRepo  out.APIKeyRepository

	// Providers
	GmailProvider *provider.GmailAdapter

	// Realtime
	Realtime out.RealtimePort

	// Services
	UsageGate       *usage.Gate
	SafetyGuard     *safety.Guard
	FilteringEngine *filtering.Engine
	RulesEngine     *rules.Engine
	Classifier      *classify.Classifier
	DraftGenerator  *draft.Generator
	WebhookDispatch *webhook.Dispatcher

	// Stream
	Stream   *stream.RedisStream
	Producer *stream.Producer
	Consumer *stream.Consumer

	// Worker
	Pool    *worker.Pool
	Handler *worker.Handler

	// HTTP
	HealthHandler *httpin.HealthHandler
}

// NewDependencies connects the backing stores and wires the whole graph.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
	}

	// Repositories
	deps.EmailRepo = persistence.NewEmailAdapter(db)
	deps.RuleRepo = persistence.NewRuleAdapter(db)
	deps.DraftRepo = persistence.NewDraftAdapter(db)
	deps.AccountRepo = persistence.NewAccountAdapter(db)
	deps.UserRepo = persistence.NewUserAdapter(db)
	deps.APIKeyRepo = persistence.NewAPIKeyAdapter(db)

	// Provider
	deps.GmailProvider = provider.NewGmailAdapter(&provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	// Realtime
	deps.Realtime = realtime.NewPubSubAdapter(redisClient)

	// Stream
	deps.Stream = stream.NewRedisStream(redisClient, cfg.ConsumerGroup)
	deps.Producer = stream.NewProducer(deps.Stream)

	// Guards
	deps.UsageGate = usage.NewGate(deps.EmailRepo, deps.DraftRepo, deps.AccountRepo, deps.APIKeyRepo)
	deps.SafetyGuard = safety.NewGuard(deps.DraftRepo)

	// Completion clients. Classification and drafting run on separate
	// models with their own breaker state.
	classifyClient := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.ClassifyModel,
		MaxTokens:   cfg.ClassifyMaxTokens,
		Temperature: cfg.ClassifyTemp,
	})
	draftClient := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.DraftModel,
		MaxTokens:   cfg.DraftMaxTokens,
		Temperature: cfg.DraftTemp,
	})
	deps.Classifier = classify.NewClassifier(classifyClient)
	deps.DraftGenerator = draft.NewGenerator(draftClient)

	// Engines
	deps.FilteringEngine = filtering.NewEngine(deps.RuleRepo, deps.EmailRepo)
	deps.RulesEngine = rules.NewEngine(
		deps.RuleRepo, deps.EmailRepo,
		deps.UsageGate, deps.SafetyGuard,
		deps.Producer, deps.Realtime,
	)

	// Webhook
	webhookClientCfg := httputil.DefaultClientConfig()
	webhookClientCfg.ResponseTimeout = cfg.WebhookTimeout
	webhookClient := httputil.NewClient(webhookClientCfg)
	deps.WebhookDispatch = webhook.NewDispatcher(webhookClient, cfg.WebhookSecret, cfg.WebhookMaxRetries)

	// Processors
	ingestProcessor := worker.NewIngestProcessor(
		deps.AccountRepo, deps.UserRepo, deps.EmailRepo,
		deps.GmailProvider, deps.UsageGate, deps.Realtime, deps.Producer,
	)
	filterProcessor := worker.NewFilterProcessor(
		deps.EmailRepo, deps.UserRepo,
		deps.FilteringEngine, deps.RulesEngine,
		deps.UsageGate, deps.WebhookDispatch, deps.Realtime, deps.Producer,
	)
	classifyProcessor := worker.NewClassifyProcessor(
		deps.EmailRepo, deps.UserRepo,
		deps.Classifier, deps.RulesEngine, deps.Realtime,
	)
	draftProcessor := worker.NewDraftProcessor(
		deps.EmailRepo, deps.DraftRepo, deps.AccountRepo, deps.UserRepo,
		deps.DraftGenerator, deps.GmailProvider, deps.UsageGate, deps.Realtime,
	)

	deps.Handler = worker.NewHandler(ingestProcessor, filterProcessor, classifyProcessor, draftProcessor)

	poolLog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker_pool").Logger()
	deps.Pool = worker.NewPool(deps.Handler, poolConfig(cfg), poolLog)
	deps.Pool.SetAcker(deps.Stream)

	deps.Consumer = stream.NewConsumer(deps.Stream, deps.Pool, cfg.ConsumerName)

	deps.HealthHandler = httpin.NewHealthHandler(db, redisClient, deps.Pool)

	return deps, nil
}

func poolConfig(cfg *config.Config) *worker.PoolConfig {
	pc := worker.DefaultPoolConfig()
	pc.MaxRetries = cfg.MaxRetries
	pc.Stages = map[worker.JobType]worker.StageConfig{
		worker.JobMailIngest:    {Workers: cfg.IngestWorkers, JobTimeout: 3 * time.Minute},
		worker.JobMailFilter:    {Workers: cfg.FilterWorkers, JobTimeout: 30 * time.Second},
		worker.JobAIClassify:    {Workers: cfg.ClassifyWorkers, PerMinute: cfg.ClassifyPerMinute, JobTimeout: 60 * time.Second},
		worker.JobDraftGenerate: {Workers: cfg.DraftWorkers, PerMinute: cfg.DraftPerMinute, JobTimeout: 45 * time.Second},
	}
	return pc
}

// Close releases the backing stores.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
