package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	queryservices "github.com/zatekoja/furniturefinder/internal/query/services"
)

const defaultWarmPages = 3

// CacheWarmingService pre-loads the pages every new session asks for first:
// the unfiltered catalog and each price ordering
type CacheWarmingService struct {
	catalog repositories.ProductQueryRepository
	pages   int
}

// NewCacheWarmingService creates a warmer that reads through catalog, which
// is expected to be the caching repository
func NewCacheWarmingService(catalog repositories.ProductQueryRepository, pages int) *CacheWarmingService {
	if pages <= 0 {
		pages = defaultWarmPages
	}
	return &CacheWarmingService{catalog: catalog, pages: pages}
}

// WarmCache queries the leading pages of each warm selection and returns
// how many pages were loaded
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	start := time.Now()
	warmed := 0
	var firstErr error

	for _, sel := range warmSelections() {
		desc := queryservices.CompileQuery(sel, "")
		for n := 1; n <= s.pages; n++ {
			req := entities.NewPageRequest(n)
			page, err := s.catalog.Query(ctx, desc, req)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to warm page %d of %s: %w", n, queryservices.Fingerprint(desc), err)
				}
				break
			}
			warmed++
			if !page.HasNext(req) {
				break
			}
		}
		if ctx.Err() != nil {
			return warmed, ctx.Err()
		}
	}

	log.Info().Int("pages", warmed).Dur("duration", time.Since(start)).Msg("catalog cache warmed")
	return warmed, firstErr
}

func warmSelections() []entities.FilterSelection {
	base := entities.NewFilterSelection()
	high := base.Clone()
	high.SetPriceSort(entities.PriceSortHighToLow)
	low := base.Clone()
	low.SetPriceSort(entities.PriceSortLowToHigh)
	return []entities.FilterSelection{base, high, low}
}
