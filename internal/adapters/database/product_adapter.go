package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

const productTable = "furniture"

var productColumns = []interface{}{
	"id", "sku", "name", "description", "brand", "furniture_type", "room_type",
	"material", "style_type", "current_price", "regular_price", "discount_percent",
	"new_product", "on_clearance", "img_src_url", "navigate_url", "created_at",
}

// ProductAdapter implements ProductQueryRepository on PostgreSQL
type ProductAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewProductAdapter creates a new product adapter
func NewProductAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.ProductQueryRepository {
	return &ProductAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		validate: validator.New(),
		metrics:  metrics,
	}
}

// Query runs a count query and a page query for the descriptor
func (a *ProductAdapter) Query(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid page request: " + err.Error())
	}

	filtered := a.db.From(productTable).Where(whereExpressions(desc)...)

	countSQL, countArgs, err := filtered.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	start := time.Now()
	var total int
	err = a.client.DB().QueryRowContext(ctx, countSQL, countArgs...).Scan(&total)
	observability.RecordDBMetric(ctx, a.metrics, "products.count", time.Since(start))
	if err != nil {
		return nil, apperrors.NewRemoteQueryError("failed to count products", err)
	}

	page := &entities.Page{Items: []*entities.Product{}, TotalCount: total}
	if total == 0 || req.Offset() >= total {
		return page, nil
	}

	pageSQL, pageArgs, err := filtered.
		Select(productColumns...).
		Order(orderExpressions(desc.Order)...).
		Limit(uint(req.Size)).
		Offset(uint(req.Offset())).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build page query", err)
	}

	start = time.Now()
	rows, err := a.client.DB().QueryContext(ctx, pageSQL, pageArgs...)
	observability.RecordDBMetric(ctx, a.metrics, "products.page", time.Since(start))
	if err != nil {
		return nil, apperrors.NewRemoteQueryError("failed to query products", err)
	}
	defer rows.Close()

	skipped := 0
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.NewRemoteQueryError("failed to scan product", err)
		}
		if err := a.validate.Struct(product); err != nil {
			log.Warn().Err(err).Str("sku", product.SKU).Msg("skipping invalid product row")
			skipped++
			continue
		}
		page.Items = append(page.Items, product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRemoteQueryError("failed to read products", err)
	}

	// TotalCount stays the remote count so page offsets keep lining up
	if skipped > 0 {
		log.Warn().
			Int("page", req.Page).
			Int("total_count", total).
			Int("returned", len(page.Items)).
			Int("skipped", skipped).
			Msg("page is short of the counted rows")
	}

	return page, nil
}

func whereExpressions(desc *entities.QueryDescriptor) []exp.Expression {
	var where []exp.Expression

	for _, eq := range desc.Equals {
		where = append(where, goqu.Ex{eq.Field: eq.Value})
	}

	for _, group := range desc.AnyOf {
		ors := make([]exp.Expression, 0, len(group.Clauses))
		for _, c := range group.Clauses {
			ors = append(ors, patternExpression(c))
		}
		where = append(where, goqu.Or(ors...))
	}

	if desc.Price != nil {
		where = append(where, goqu.I(desc.Price.Field).Gte(desc.Price.Min))
		if desc.Price.Max != nil {
			where = append(where, goqu.I(desc.Price.Field).Lte(*desc.Price.Max))
		}
	}

	if desc.Search != nil {
		pattern := "%" + escapeLike(desc.Search.Text) + "%"
		ors := make([]exp.Expression, 0, len(desc.Search.Fields))
		for _, field := range desc.Search.Fields {
			ors = append(ors, goqu.I(field).ILike(pattern))
		}
		where = append(where, goqu.Or(ors...))
	}

	if desc.Order.ExcludeNulls {
		where = append(where, goqu.I(desc.Order.Field).IsNotNull())
	}

	return where
}

func patternExpression(c entities.PatternClause) exp.Expression {
	switch c.Op {
	case entities.PatternEquals:
		return goqu.I(c.Field).Eq(c.Value)
	case entities.PatternEqualsFold:
		return goqu.I(c.Field).ILike(escapeLike(c.Value))
	default:
		return goqu.I(c.Field).ILike("%" + escapeLike(c.Value) + "%")
	}
}

func orderExpressions(o entities.OrderClause) []exp.OrderedExpression {
	var primary exp.OrderedExpression
	if o.Direction == entities.OrderAsc {
		primary = goqu.I(o.Field).Asc()
	} else {
		primary = goqu.I(o.Field).Desc()
	}
	if o.NullsLast {
		primary = primary.NullsLast()
	}
	// id breaks ties so offsets stay stable between pages
	return []exp.OrderedExpression{primary, goqu.I("id").Asc()}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(rows *sql.Rows) (*entities.Product, error) {
	p := &entities.Product{}
	var sku, description, brand, furnitureType, roomType, material, style, img, link sql.NullString
	var current, regular, discount sql.NullFloat64

	err := rows.Scan(
		&p.ID,
		&sku,
		&p.Name,
		&description,
		&brand,
		&furnitureType,
		&roomType,
		&material,
		&style,
		&current,
		&regular,
		&discount,
		&p.NewProduct,
		&p.OnClearance,
		&img,
		&link,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SKU = sku.String
	p.Description = description.String
	p.Brand = brand.String
	p.FurnitureType = furnitureType.String
	p.RoomType = roomType.String
	p.Material = material.String
	p.StyleType = style.String
	p.ImageURL = img.String
	p.NavigateURL = link.String
	if current.Valid {
		p.CurrentPrice = entities.FloatPtr(current.Float64)
	}
	if regular.Valid {
		p.RegularPrice = entities.FloatPtr(regular.Float64)
	}
	if discount.Valid {
		p.DiscountPercent = entities.FloatPtr(discount.Float64)
	}
	return p, nil
}
