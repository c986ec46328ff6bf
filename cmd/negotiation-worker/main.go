package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/hunters-code/adol-agents/cmd/mainconfig"
	"github.com/hunters-code/adol-agents/internal/catalog"
	appconfig "github.com/hunters-code/adol-agents/internal/config"
	"github.com/hunters-code/adol-agents/internal/negotiation"
	"github.com/hunters-code/adol-agents/internal/notify"
	"github.com/hunters-code/adol-agents/internal/pricing"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// The worker drains the shared SQS turn queue when the API runs in
// enqueue-only mode. It needs a state backend visible to every replica, so
// the in-memory store is not accepted here.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	if cfg.NegotiationQueueURL == "" {
		logger.Error("negotiation worker requires NEGOTIATION_QUEUE_URL")
		os.Exit(1)
	}
	if cfg.StateBackend != "redis" && cfg.StateBackend != "dynamo" {
		logger.Error("negotiation worker requires a shared state backend", "state_backend", cfg.StateBackend)
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var store negotiation.Store
	switch cfg.StateBackend {
	case "redis":
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = negotiation.NewRedisStore(client, cfg.StateTTL, nil)
	case "dynamo":
		store = negotiation.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.NegotiationStateTable, cfg.StateTTL, logger)
	}

	if cfg.CatalogBaseURL == "" {
		logger.Error("negotiation worker requires CATALOG_BASE_URL")
		os.Exit(1)
	}
	catalogOpts := []catalog.ClientOption{
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout}),
	}
	if cfg.CatalogAPIKey != "" {
		catalogOpts = append(catalogOpts, catalog.WithAPIKey(cfg.CatalogAPIKey))
	}
	catalogClient := catalog.NewHTTPClient(cfg.CatalogBaseURL, logger, catalogOpts...)

	var llm negotiation.LLMClient
	switch {
	case cfg.LLMProvider == "bedrock" && cfg.BedrockModelID != "":
		llm = negotiation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	case cfg.GeminiAPIKey != "":
		client, err := negotiation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
		} else {
			llm = client
		}
	}
	composer := negotiation.NewComposer(llm,
		negotiation.WithComposeTimeout(cfg.LLMTimeout),
		negotiation.WithMaxTokens(int32(cfg.LLMMaxTokens)),
		negotiation.WithTemperature(float32(cfg.LLMTemperature)),
		negotiation.WithComposerLogger(logger),
	)

	pricingCfg := pricing.Config{
		TargetRatio:   cfg.TargetRatio,
		MinRatio:      cfg.MinRatio,
		Increment:     cfg.CounterIncrement,
		MaxPriceTurns: cfg.MaxPriceTurns,
	}
	if overrides, err := pricing.ParseCategoryOverrides(cfg.CategoryRatiosJSON); err != nil {
		logger.Error("invalid category overrides", "error", err)
		os.Exit(1)
	} else {
		pricingCfg.CategoryOverrides = overrides
	}

	notifier := notify.NewService(logger, notify.NewLogSink(logger))
	if cfg.SellerWebhookURL != "" {
		notifier = notify.NewService(logger,
			notify.NewLogSink(logger),
			notify.NewWebhookSink(cfg.SellerWebhookURL, logger),
		)
	}

	engine := negotiation.NewEngine(catalogClient, store, composer,
		negotiation.WithPricingConfig(pricingCfg),
		negotiation.WithNotifier(notifier),
		negotiation.WithEngineLogger(logger),
	)

	queue := negotiation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NegotiationQueueURL)
	dispatcher := negotiation.NewDispatcher(engine, queue, logger,
		negotiation.WithWorkerCount(cfg.WorkerCount),
		negotiation.WithReceiveWaitSeconds(cfg.QueueReceiveWaitSecs),
	)

	logger.Info("negotiation worker running", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down negotiation worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker shutdown failed", "error", err)
	}
	logger.Info("negotiation worker stopped")
}
