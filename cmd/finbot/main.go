package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finbot/internal/ai"
	"finbot/internal/api"
	"finbot/internal/api/handlers"
	"finbot/internal/gateway"
	"finbot/internal/models"
	"finbot/internal/pipeline"
	"finbot/internal/queue"
	"finbot/internal/repository"
	"finbot/internal/session"
	"finbot/internal/strategy"
	"finbot/pkg/config"
	"finbot/pkg/logger"
	"finbot/pkg/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting finbot worker service")

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	redisOpt := queue.NewRedisOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	inboundQueue := queue.NewInboundClient(asynqClient, &cfg.Queue, appLogger)
	outboundQueue := queue.NewOutboundClient(asynqClient, &cfg.Queue, appLogger)

	sessionStore := session.NewStore(rdb, appLogger)
	txRepo := repository.NewTransactionRepository(db, appLogger)

	extractor, err := ai.NewExtractor(&cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize LLM extractor", zap.Error(err))
	}
	defer extractor.Close()

	transcriber := ai.NewTranscriber(&cfg.Transcriber, appLogger)
	converter := ai.NewCurrencyConverter(&cfg.Currency, appLogger)
	embedder := ai.NewEmbedder(&cfg.Embedding, appLogger)
	sender := gateway.NewSender(&cfg.Gateway, appLogger)

	pdfStrategy := strategy.NewPdfStrategy(extractor, appLogger)
	strategies := strategy.Registry{
		models.JobKindImage: strategy.NewImageStrategy(extractor, extractor, appLogger),
		models.JobKindAudio: strategy.NewAudioStrategy(transcriber, extractor, appLogger),
		models.JobKindPdf:   pdfStrategy,
		models.JobKindOfx:   strategy.NewOfxStrategy(appLogger),
		models.JobKindCsv:   strategy.NewCsvStrategy(extractor, appLogger),
		models.JobKindXlsx:  strategy.NewXlsxStrategy(extractor, appLogger),
		models.JobKindText:  strategy.NewTextStrategy(extractor, sessionStore, appLogger),
	}

	gate := pipeline.NewGate(cfg.Pipeline.ConfidenceThreshold, cfg.Pipeline.DefaultCurrency)
	enricher := pipeline.NewEnricher(converter, embedder, cfg.Pipeline.DefaultCurrency, appLogger)
	orchestrator := pipeline.NewOrchestrator(
		strategies, pdfStrategy, sessionStore, txRepo, outboundQueue,
		gate, enricher, cfg.Session.ContextTTL, cfg.Session.PdfTTL, appLogger,
	)

	inboundServer := queue.NewServer(redisOpt, queue.QueueInbound, cfg.Queue.InboundConcurrency, appLogger)
	inboundMux := asynq.NewServeMux()
	inboundMux.HandleFunc(queue.TypeInboundMedia, orchestrator.HandleInbound)

	outboundServer := queue.NewServer(redisOpt, queue.QueueOutbound, cfg.Queue.OutboundConcurrency, appLogger)
	outboundMux := asynq.NewServeMux()
	outboundMux.Handle(queue.TypeOutboundReply, queue.NewReplyHandler(sender, appLogger))

	if err := inboundServer.Start(inboundMux); err != nil {
		appLogger.Fatal("Failed to start inbound workers", zap.Error(err))
	}
	if err := outboundServer.Start(outboundMux); err != nil {
		appLogger.Fatal("Failed to start outbound workers", zap.Error(err))
	}
	appLogger.Info("Worker pools started",
		zap.Int("inbound_concurrency", cfg.Queue.InboundConcurrency),
		zap.Int("outbound_concurrency", cfg.Queue.OutboundConcurrency),
	)

	webhookHandler := handlers.NewWebhookHandler(inboundQueue, sessionStore, outboundQueue, appLogger)
	reviewHandler := handlers.NewReviewHandler(txRepo, appLogger)
	app := api.SetupRouter(
		webhookHandler,
		reviewHandler,
		cfg.Webhook.Token,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		func(ctx context.Context) error { return db.Ping(ctx) },
		appLogger,
	)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Webhook server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Webhook server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Webhook server shutdown error", zap.Error(err))
	}
	inboundServer.Shutdown()
	outboundServer.Shutdown()
}
