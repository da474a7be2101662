package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/adapters/database"
	"github.com/zatekoja/furniturefinder/internal/adapters/events"
	"github.com/zatekoja/furniturefinder/internal/adapters/search"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	"github.com/zatekoja/furniturefinder/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	var pageSize int
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.IntVar(&pageSize, "page-size", 100, "products read from PostgreSQL per page")
	flag.Parse()

	_ = godotenv.Load()
	observability.InitLogger("furniture-indexer", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset, pageSize); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("interval", interval).Msg("reindex complete, waiting for next run")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool, pageSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.FurnitureCollection).Msg("deleting collection before reindex")
		if err := tsClient.DropCollection(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	n, err := search.Reindex(ctx, database.NewProductAdapter(pgClient, nil), search.NewTypesenseAdapter(tsClient), pageSize)
	if err != nil {
		return err
	}
	log.Info().Int("indexed", n).Msg("indexing complete")

	announceReindex(ctx, cfg, n)
	return nil
}

// announceReindex tells API instances to drop cached pages
func announceReindex(ctx context.Context, cfg *config.Config, indexed int) {
	if !cfg.Redis.Enabled {
		return
	}
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached pages expire by TTL")
		return
	}
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	defer bus.Close()

	event := entities.NewCatalogEvent(entities.CatalogEventReindexed, indexed)
	if err := bus.Publish(ctx, providers.EventChannelCatalogUpdates, event); err != nil {
		log.Warn().Err(err).Msg("failed to announce reindex")
	}
}
