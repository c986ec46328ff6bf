package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hunters-code/adol-agents/cmd/mainconfig"
	"github.com/hunters-code/adol-agents/internal/api/router"
	"github.com/hunters-code/adol-agents/internal/catalog"
	appconfig "github.com/hunters-code/adol-agents/internal/config"
	"github.com/hunters-code/adol-agents/internal/negotiation"
	"github.com/hunters-code/adol-agents/internal/notify"
	"github.com/hunters-code/adol-agents/internal/observability/metrics"
	"github.com/hunters-code/adol-agents/internal/pricing"
	"github.com/hunters-code/adol-agents/internal/webchat"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting adol-agents API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
		"llm_provider", cfg.LLMProvider,
	)

	ctx := context.Background()

	catalogClient := buildCatalog(cfg, logger)
	store := buildStore(ctx, cfg, logger)
	composer := buildComposer(ctx, cfg, logger)

	pricingCfg, err := buildPricingConfig(cfg)
	if err != nil {
		logger.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	negotiationMetrics := metrics.NewNegotiationMetrics(reg)

	engineOpts := []negotiation.EngineOption{
		negotiation.WithPricingConfig(pricingCfg),
		negotiation.WithNotifier(buildNotifier(cfg, logger)),
		negotiation.WithMetrics(negotiationMetrics),
		negotiation.WithEngineLogger(logger),
	}
	if archive := buildArchive(cfg, logger); archive != nil {
		engineOpts = append(engineOpts, negotiation.WithDealArchiver(archive))
	}

	engine := negotiation.NewEngine(catalogClient, store, composer, engineOpts...)

	var service negotiation.Service
	var dispatcher *negotiation.Dispatcher
	if cfg.UseMemoryQueue {
		dispatcher = negotiation.NewDispatcher(engine, negotiation.NewMemoryQueue(64), logger,
			negotiation.WithWorkerCount(cfg.WorkerCount),
		)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := negotiation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NegotiationQueueURL)
		dispatcher = negotiation.NewDispatcher(engine, queue, logger,
			negotiation.WithWorkerCount(cfg.WorkerCount),
			negotiation.WithReceiveWaitSeconds(cfg.QueueReceiveWaitSecs),
		)
	}
	service = dispatcher

	// Background eviction of idle threads.
	evictDone := make(chan struct{})
	go runEviction(service, cfg, logger, evictDone)

	negotiationHandler := negotiation.NewHandler(service, logger)
	webchatHandler := webchat.NewHandler(service, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Negotiation:        negotiationHandler,
		WebchatHandler:     webchatHandler,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SellerAuthSecret:   cfg.AdminJWTSecret,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(evictDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

func buildCatalog(cfg *appconfig.Config, logger *logging.Logger) catalog.Client {
	if cfg.CatalogBaseURL == "" {
		logger.Warn("CATALOG_BASE_URL not set, using in-memory demo catalog")
		return catalog.NewFakeClient(demoProducts()...)
	}
	opts := []catalog.ClientOption{
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout}),
	}
	if cfg.CatalogAPIKey != "" {
		opts = append(opts, catalog.WithAPIKey(cfg.CatalogAPIKey))
	}
	return catalog.NewHTTPClient(cfg.CatalogBaseURL, logger, opts...)
}

func buildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) negotiation.Store {
	switch cfg.StateBackend {
	case "redis":
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		return negotiation.NewRedisStore(client, cfg.StateTTL, nil)
	case "dynamo":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for dynamo store", "error", err)
			os.Exit(1)
		}
		return negotiation.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.NegotiationStateTable, cfg.StateTTL, logger)
	default:
		logger.Info("using in-memory negotiation state store")
		return negotiation.NewMemoryStore()
	}
}

func buildComposer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *negotiation.Composer {
	llm := buildLLM(ctx, cfg, logger)
	opts := []negotiation.ComposerOption{
		negotiation.WithComposeTimeout(cfg.LLMTimeout),
		negotiation.WithMaxTokens(int32(cfg.LLMMaxTokens)),
		negotiation.WithTemperature(float32(cfg.LLMTemperature)),
		negotiation.WithComposerLogger(logger),
	}
	switch cfg.LLMProvider {
	case "bedrock":
		opts = append(opts, negotiation.WithModel(cfg.BedrockModelID))
	default:
		opts = append(opts, negotiation.WithModel(cfg.GeminiModelID))
	}
	return negotiation.NewComposer(llm, opts...)
}

func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) negotiation.LLMClient {
	var gemini negotiation.LLMClient
	if cfg.GeminiAPIKey != "" {
		client, err := negotiation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
		} else {
			gemini = client
		}
	}

	var bedrock negotiation.LLMClient
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for Bedrock", "error", err)
		} else {
			bedrock = negotiation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		}
	}

	switch {
	case cfg.LLMProvider == "bedrock" && bedrock != nil && gemini != nil:
		return negotiation.NewFallbackLLMClient(bedrock, gemini, logger)
	case cfg.LLMProvider == "bedrock" && bedrock != nil:
		return bedrock
	case gemini != nil && bedrock != nil:
		return negotiation.NewFallbackLLMClient(gemini, bedrock, logger)
	case gemini != nil:
		return gemini
	case bedrock != nil:
		return bedrock
	default:
		logger.Warn("no LLM provider configured, replies fall back to templates")
		return nil
	}
}

func buildNotifier(cfg *appconfig.Config, logger *logging.Logger) *notify.Service {
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.SellerWebhookURL != "" {
		if sink := notify.NewWebhookSink(cfg.SellerWebhookURL, logger); sink != nil {
			sinks = append(sinks, sink)
		}
	}
	if sink := notify.NewEmailSink(notify.EmailConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
		ToEmail:   cfg.SellerAlertEmail,
	}, logger); sink != nil {
		sinks = append(sinks, sink)
	}
	return notify.NewService(logger, sinks...)
}

func buildPricingConfig(cfg *appconfig.Config) (pricing.Config, error) {
	pc := pricing.Config{
		TargetRatio:   cfg.TargetRatio,
		MinRatio:      cfg.MinRatio,
		Increment:     cfg.CounterIncrement,
		MaxPriceTurns: cfg.MaxPriceTurns,
	}
	if cfg.CategoryRatiosJSON != "" {
		overrides, err := pricing.ParseCategoryOverrides(cfg.CategoryRatiosJSON)
		if err != nil {
			return pricing.Config{}, err
		}
		pc.CategoryOverrides = overrides
	}
	return pc, nil
}

func buildArchive(cfg *appconfig.Config, logger *logging.Logger) *negotiation.DealArchive {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open deal archive database", "error", err)
		return nil
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return negotiation.NewDealArchive(db)
}

func runEviction(service negotiation.Service, cfg *appconfig.Config, logger *logging.Logger, done <-chan struct{}) {
	if cfg.EvictInterval <= 0 || cfg.IdleEvictAfter <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.EvictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			evicted, err := service.EvictIdle(ctx, time.Now().Add(-cfg.IdleEvictAfter))
			cancel()
			if err != nil {
				logger.Error("idle eviction failed", "error", err)
				continue
			}
			if len(evicted) > 0 {
				logger.Info("evicted idle negotiations", "count", len(evicted))
			}
		}
	}
}

func demoProducts() []*catalog.Product {
	return []*catalog.Product{
		{
			ID:           "iphone13-128",
			CategoryID:   "phones",
			Name:         "iPhone 13 128GB",
			Description:  "Lightly used, full set with box and original charger.",
			ListingPrice: 6_500_000,
			Stock:        1,
			IsActive:     true,
			KnownFlaws:   "Hairline scratch on the back glass.",
			CreatedBy:    "seller-demo",
		},
		{
			ID:           "thinkpad-x1",
			CategoryID:   "laptops",
			Name:         "ThinkPad X1 Carbon Gen 9",
			Description:  "i7, 16GB RAM, 512GB SSD. Corporate refresh unit.",
			ListingPrice: 11_000_000,
			Stock:        2,
			IsActive:     true,
			CreatedBy:    "seller-demo",
		},
	}
}
