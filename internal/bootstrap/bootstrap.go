package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gfaraujo/normabot/internal/config"
	"github.com/gfaraujo/normabot/internal/core/ports"
	"github.com/gfaraujo/normabot/internal/core/usecase"
	"github.com/gfaraujo/normabot/internal/infrastructure/dedup/redis"
	"github.com/gfaraujo/normabot/internal/infrastructure/llm/openai"
	"github.com/gfaraujo/normabot/internal/infrastructure/memory/postgres"
	"github.com/gfaraujo/normabot/internal/infrastructure/queue/nats"
	"github.com/gfaraujo/normabot/internal/infrastructure/resilience"
	"github.com/gfaraujo/normabot/internal/infrastructure/search/topk"
	"github.com/gfaraujo/normabot/internal/infrastructure/transport/whatsapp"
)

// App wires the full object graph once for both binaries; the webhook process
// uses the queue side, the worker everything else.
type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Answerer ports.QuestionAnswerer
	Handler  ports.MessageHandler
	Sender   ports.MessageSender
	Deduper  ports.MessageDeduper

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, observer usecase.PipelineObserver) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	collections, err := cfg.Collections()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	memory := postgres.NewConversationRepository(db)
	if err := memory.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	deduper, err := redis.New(cfg.RedisAddr, time.Duration(cfg.DedupTTLSeconds)*time.Second)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init dedup store: %w", err)
	}

	searchClient := topk.NewClient(topk.Config{
		BaseURL: cfg.SearchBaseURL,
		APIKey:  cfg.SearchAPIKey,
		Timeout: time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
	}, executor)

	completer := openai.NewClient(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, executor)

	sender := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.GraphBaseURL,
		AccessToken:   cfg.WABAAccessToken,
		PhoneNumberID: cfg.WABAPhoneNumberID,
	}, executor)

	synonyms, err := usecase.LoadSynonymTable(cfg.SynonymsPath)
	if err != nil {
		deduper.Close()
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load synonyms: %w", err)
	}

	normalizer := usecase.NewQueryNormalizer(synonyms)
	searcher := usecase.NewCollectionSearcher(searchClient)
	aggregator := usecase.NewMultiCollectionAggregator(searcher, collections, cfg.SearchTopK)
	gate := usecase.NewConfidenceGate(cfg.GateMinSimilarity, cfg.GateStrict)
	assembler := usecase.NewContextAssembler(usecase.AssemblerConfig{
		Mode:          usecase.AssemblerMode(cfg.AssemblerMode),
		PromptBudget:  cfg.PromptBudget,
		HistoryWindow: cfg.HistoryWindow,
	}, cfg.SystemRules)

	answerer := usecase.NewAnswerPipeline(
		normalizer, aggregator, gate, assembler, completer, memory, observer)

	handler := usecase.NewHandleMessageUseCase(
		answerer, memory, sender, deduper,
		time.Duration(cfg.AnswerTimeoutSecs)*time.Second)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Answerer: answerer,
		Handler:  handler,
		Sender:   sender,
		Deduper:  deduper,

		closeFn: func() {
			queue.Close()
			deduper.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
