package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vetvoice/audio"
	"vetvoice/cache"
	"vetvoice/config"
	"vetvoice/database"
	"vetvoice/events"
	"vetvoice/handlers"
	"vetvoice/middleware"
	"vetvoice/ner"
	"vetvoice/pipeline"
	"vetvoice/registry"
	"vetvoice/service"
	"vetvoice/stt"
	"vetvoice/validation"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, cleanup, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build task registry", zap.Error(err))
	}
	defer cleanup()

	var statusCache *cache.StatusCache
	if cfg.RedisAddr != "" {
		redisCache, err := database.ConnectCache(cfg.RedisAddr)
		if err != nil {
			logger.Fatal("Failed to connect redis", zap.Error(err))
		}
		defer redisCache.Close()
		statusCache = cache.NewStatusCache(redisCache, cfg.CacheTTL)
	}

	var publisher events.Publisher
	if cfg.KafkaBrokers != "" {
		publisher, err = events.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		if err != nil {
			logger.Fatal("Failed to connect kafka", zap.Error(err))
		}
		defer publisher.Close()
	}

	sttEngine := stt.NewClient(cfg.STTEndpoint, cfg.EngineTimeout, logger)

	var nerEngine ner.Engine = ner.NewRuleEngine()
	if cfg.NEREndpoint != "" {
		nerEngine = ner.NewRemoteEngine(cfg.NEREndpoint, cfg.EngineTimeout, logger)
	}

	mirror := service.NewMirror(statusCache, publisher, logger)
	normalizer := audio.NewNormalizer(logger, cfg.FFmpegPath)

	orchestrator := pipeline.NewOrchestrator(
		reg,
		normalizer,
		sttEngine,
		nerEngine,
		pipeline.NewGate(int64(cfg.STTConcurrency)),
		pipeline.NewGate(int64(cfg.NERConcurrency)),
		pipeline.NewPool(cfg.MaxConcurrentTasks),
		mirror,
		logger,
	)

	supported := make([]validation.Format, 0, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		supported = append(supported, validation.Format(strings.TrimSpace(f)))
	}

	taskService := service.NewTaskService(
		reg,
		orchestrator,
		statusCache,
		sttEngine,
		nerEngine,
		supported,
		cfg.MaxFileSize,
		logger,
	)

	mux := http.NewServeMux()
	handlers.NewTaskHandler(taskService, logger).Register(mux)

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.TraceID(handler)
	handler = middleware.Recovery(logger)(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("Server started",
			zap.String("address", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("registry_backend", cfg.RegistryBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	orchestrator.Wait()
	logger.Info("All pipelines drained")
}

func buildRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (registry.Registry, func(), error) {
	switch cfg.RegistryBackend {
	case "postgres":
		db, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := registry.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, db.Close, nil
	case "memory", "":
		return registry.NewMemory(cfg.MaxTasks), func() {}, nil
	default:
		logger.Warn("Unknown registry backend, using memory",
			zap.String("backend", cfg.RegistryBackend),
		)
		return registry.NewMemory(cfg.MaxTasks), func() {}, nil
	}
}
