package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	"github.com/zatekoja/furniturefinder/internal/query/services"
)

const defaultPageCacheTTL = 120

// CachedProductAdapter wraps a ProductQueryRepository with a page cache
type CachedProductAdapter struct {
	repo       repositories.ProductQueryRepository
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
}

// NewCachedProductAdapter creates a new cached product adapter. A ttl of
// zero or less uses the default.
func NewCachedProductAdapter(repo repositories.ProductQueryRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) *CachedProductAdapter {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultPageCacheTTL
	}
	return &CachedProductAdapter{
		repo:       repo,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		metrics:    metrics,
	}
}

// PageCacheKeyPattern matches every cached catalog page
const PageCacheKeyPattern = "products:page:*"

func pageCacheKey(desc *entities.QueryDescriptor, req entities.PageRequest) string {
	return fmt.Sprintf("products:page:%s:%d:%d", services.Fingerprint(desc), req.Page, req.Size)
}

// Query serves a page from cache, falling back to the wrapped repository
func (a *CachedProductAdapter) Query(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	cacheKey := pageCacheKey(desc, req)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var page entities.Page
		if err := json.Unmarshal(cached, &page); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "products:page")
			return &page, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached page")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "products:page")

	page, err := a.repo.Query(ctx, desc, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(page)
	if err != nil {
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to marshal page for cache")
		return page, nil
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.cache.Set(bgCtx, cacheKey, data, a.ttlSeconds); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache page")
		}
	}()

	return page, nil
}
