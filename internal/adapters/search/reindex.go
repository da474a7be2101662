package search

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
)

// ProductIndexer accepts products for indexing
type ProductIndexer interface {
	Index(ctx context.Context, product *entities.Product) error
}

// Reindex pages through every product in source, newest first, and hands
// each one to sink. Individual index failures are logged and skipped.
func Reindex(ctx context.Context, source repositories.ProductQueryRepository, sink ProductIndexer, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	desc := &entities.QueryDescriptor{
		Order: entities.OrderClause{Field: entities.FieldCreatedAt, Direction: entities.OrderDesc},
	}

	indexed := 0
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		req := entities.PageRequest{Page: n, Size: pageSize}
		page, err := source.Query(ctx, desc, req)
		if err != nil {
			return indexed, err
		}

		for _, p := range page.Items {
			if err := sink.Index(ctx, p); err != nil {
				log.Warn().Err(err).Str("product_id", p.ID).Msg("failed to index product")
				continue
			}
			indexed++
		}

		if !page.HasNext(req) || len(page.Items) == 0 {
			return indexed, nil
		}
	}
}
