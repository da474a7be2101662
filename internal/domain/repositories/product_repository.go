package repositories

import (
	"context"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// ProductQueryRepository defines the remote paginated catalog query
type ProductQueryRepository interface {
	// Query returns one page of products matching the descriptor together
	// with the total number of matches
	Query(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error)
}
