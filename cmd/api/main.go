package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/adapters/cache"
	"github.com/zatekoja/furniturefinder/internal/adapters/database"
	"github.com/zatekoja/furniturefinder/internal/adapters/events"
	"github.com/zatekoja/furniturefinder/internal/adapters/search"
	"github.com/zatekoja/furniturefinder/internal/api/handlers"
	"github.com/zatekoja/furniturefinder/internal/api/routes"
	"github.com/zatekoja/furniturefinder/internal/application/services"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	"github.com/zatekoja/furniturefinder/internal/query/loaders"
	"github.com/zatekoja/furniturefinder/pkg/config"
	"github.com/zatekoja/furniturefinder/pkg/retry"
)

func main() {
	// A missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	catalog, closeCatalog := openCatalog(cfg, metrics)
	defer closeCatalog()

	// Redis is optional: without it the page cache is skipped and filter
	// state lives in process memory
	var store providers.KeyValueStore
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory filter storage and no page cache")
		} else {
			defer redisClient.Close()
			store = cache.NewRedisKeyValueStore(redisClient)
			pageCache := cache.NewRedisAdapter(redisClient)
			catalog = database.NewCachedProductAdapter(catalog, pageCache, cfg.Catalog.PageCacheTTLSeconds, metrics)

			eventBus := events.NewRedisEventBus(redisClient)
			defer eventBus.Close()
			invalidation := services.NewCacheInvalidationService(pageCache, eventBus, database.PageCacheKeyPattern)
			invalidation.SetWarmer(services.NewCacheWarmingService(catalog, cfg.Catalog.WarmPages))
			if err := invalidation.Start(); err != nil {
				log.Warn().Err(err).Msg("cache invalidation disabled")
			} else {
				defer invalidation.Stop()
			}
			log.Info().Msg("Redis page cache and filter storage enabled")
		}
	}
	if store == nil {
		store = cache.NewMemoryKeyValueStore()
	}

	loader := loaders.NewPageLoader(catalog, loaders.Options{
		Backend:      string(cfg.Catalog.Backend),
		Wait:         time.Duration(cfg.Catalog.CoalesceWindowMs) * time.Millisecond,
		FetchTimeout: cfg.Catalog.FetchTimeout,
		Retry:        retry.FetchConfig(cfg.Catalog.FetchRetries),
		Metrics:      metrics,
	})

	registry := services.NewSessionRegistry(store, loader, services.SessionRegistryConfig{
		KeyPrefix: cfg.Persistence.KeyPrefix,
		IdleTTL:   cfg.Persistence.SessionIdleTTL,
		Metrics:   metrics,
	})

	router := routes.NewRouter(handlers.NewBrowseHandler(registry), metrics, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Flush pending filter-state writes before the store goes away
	registry.Close(shutdownCtx)

	log.Info().Msg("server stopped")
}

// openCatalog connects the configured remote catalog backend
func openCatalog(cfg *config.Config, metrics *observability.Metrics) (repositories.ProductQueryRepository, func()) {
	switch cfg.Catalog.Backend {
	case config.CatalogBackendTypesense:
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Typesense client")
		}
		if err := tsClient.InitSchema(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema")
		}
		return search.NewTypesenseAdapter(tsClient), func() {}
	default:
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		return database.NewProductAdapter(pgClient, metrics), func() {
			if err := pgClient.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing PostgreSQL client")
			}
		}
	}
}
