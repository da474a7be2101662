package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
)

const invalidationTimeout = 5 * time.Second

// CacheWarmer reloads cache entries after a purge
type CacheWarmer interface {
	WarmCache(ctx context.Context) (int, error)
}

// CacheInvalidationService purges cached catalog pages when the catalog
// changes underneath them
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	patterns []string
	warmer   CacheWarmer
	ctx      context.Context
	cancel   context.CancelFunc
	done     sync.WaitGroup
}

// NewCacheInvalidationService creates a service that deletes every key
// matching patterns on each catalog event
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus, patterns ...string) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		patterns: patterns,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetWarmer sets the warmer run after each purge
func (s *CacheInvalidationService) SetWarmer(w CacheWarmer) {
	s.warmer = w
}

// Start begins listening for catalog events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to catalog updates: %w", err)
	}

	s.done.Add(1)
	go s.processEvents(eventChan)
	log.Info().Strs("patterns", s.patterns).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.done.Wait()
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.CatalogEvent) {
	defer s.done.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.HandleEvent(event)
			}
		}
	}
}

// HandleEvent purges the configured patterns and returns how many keys went
func (s *CacheInvalidationService) HandleEvent(event *entities.CatalogEvent) int {
	ctx, cancel := context.WithTimeout(s.ctx, invalidationTimeout)
	defer cancel()

	removed := 0
	for _, pattern := range s.patterns {
		n, err := s.cache.DeletePattern(ctx, pattern)
		removed += n
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Str("event_id", event.ID).Msg("failed to invalidate cache")
		}
	}

	log.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Int("removed", removed).
		Msg("invalidated catalog cache")

	if s.warmer != nil {
		if _, err := s.warmer.WarmCache(s.ctx); err != nil {
			log.Warn().Err(err).Msg("cache warming after invalidation failed")
		}
	}
	return removed
}
