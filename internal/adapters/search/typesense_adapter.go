package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	tsclient "github.com/zatekoja/furniturefinder/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// numeric filters skip documents that lack the field
const missingValueFloor = -1e9

// TypesenseAdapter implements ProductQueryRepository on a Typesense collection
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.ProductQueryRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// productDocument is the indexed form of a product
type productDocument struct {
	ID              string   `json:"id"`
	SKU             string   `json:"sku,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	FurnitureType   string   `json:"furniture_type,omitempty"`
	RoomType        string   `json:"room_type,omitempty"`
	Material        string   `json:"material,omitempty"`
	StyleType       string   `json:"style_type,omitempty"`
	CurrentPrice    *float64 `json:"current_price,omitempty"`
	RegularPrice    *float64 `json:"regular_price,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	NewProduct      bool     `json:"new_product"`
	OnClearance     bool     `json:"on_clearance"`
	ImageURL        string   `json:"img_src_url,omitempty"`
	NavigateURL     string   `json:"navigate_url,omitempty"`
	CreatedAt       int64    `json:"created_at"`
}

func documentFromProduct(p *entities.Product) productDocument {
	return productDocument{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Description:     p.Description,
		Brand:           p.Brand,
		FurnitureType:   p.FurnitureType,
		RoomType:        p.RoomType,
		Material:        p.Material,
		StyleType:       p.StyleType,
		CurrentPrice:    p.CurrentPrice,
		RegularPrice:    p.RegularPrice,
		DiscountPercent: p.DiscountPercent,
		NewProduct:      p.NewProduct,
		OnClearance:     p.OnClearance,
		ImageURL:        p.ImageURL,
		NavigateURL:     p.NavigateURL,
		CreatedAt:       p.CreatedAt.Unix(),
	}
}

func (d productDocument) toProduct() *entities.Product {
	return &entities.Product{
		ID:              d.ID,
		SKU:             d.SKU,
		Name:            d.Name,
		Description:     d.Description,
		Brand:           d.Brand,
		FurnitureType:   d.FurnitureType,
		RoomType:        d.RoomType,
		Material:        d.Material,
		StyleType:       d.StyleType,
		CurrentPrice:    d.CurrentPrice,
		RegularPrice:    d.RegularPrice,
		DiscountPercent: d.DiscountPercent,
		NewProduct:      d.NewProduct,
		OnClearance:     d.OnClearance,
		ImageURL:        d.ImageURL,
		NavigateURL:     d.NavigateURL,
		CreatedAt:       time.Unix(d.CreatedAt, 0).UTC(),
	}
}

// Index upserts a product into the collection
func (a *TypesenseAdapter) Index(ctx context.Context, product *entities.Product) error {
	if err := a.client.IndexDocument(ctx, documentFromProduct(product)); err != nil {
		return fmt.Errorf("failed to index product %s: %w", product.ID, err)
	}
	return nil
}

// Query runs the descriptor as a Typesense search
func (a *TypesenseAdapter) Query(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	result, err := a.client.Client().Collection(tsclient.FurnitureCollection).Documents().Search(ctx, BuildSearchParams(desc, req))
	if err != nil {
		return nil, apperrors.NewRemoteQueryError("failed to search products", err)
	}

	page := &entities.Page{Items: []*entities.Product{}}
	if result.Found != nil {
		page.TotalCount = *result.Found
	}
	if result.Hits == nil {
		return page, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		product, err := decodeDocument(*hit.Document)
		if err != nil {
			return nil, apperrors.NewRemoteQueryError("failed to decode product document", err)
		}
		page.Items = append(page.Items, product)
	}
	return page, nil
}

func decodeDocument(doc map[string]interface{}) (*entities.Product, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d productDocument
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d.toProduct(), nil
}

// BuildSearchParams renders a descriptor as Typesense search parameters
func BuildSearchParams(desc *entities.QueryDescriptor, req entities.PageRequest) *api.SearchCollectionParams {
	q := "*"
	queryBy := entities.FieldName
	if desc.Search != nil {
		q = desc.Search.Text
		queryBy = strings.Join(desc.Search.Fields, ",")
	}

	params := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String(queryBy),
		SortBy:  pointer.String(sortBy(desc.Order)),
		Page:    pointer.Int(req.Page),
		PerPage: pointer.Int(req.Size),
	}
	if filter := filterBy(desc); filter != "" {
		params.FilterBy = pointer.String(filter)
	}
	return params
}

func filterBy(desc *entities.QueryDescriptor) string {
	var parts []string

	for _, eq := range desc.Equals {
		parts = append(parts, fmt.Sprintf("%s:=%t", eq.Field, eq.Value))
	}

	for _, group := range desc.AnyOf {
		ors := make([]string, 0, len(group.Clauses))
		for _, c := range group.Clauses {
			ors = append(ors, patternFilter(c))
		}
		parts = append(parts, "("+strings.Join(ors, " || ")+")")
	}

	if desc.Price != nil {
		parts = append(parts, fmt.Sprintf("%s:>=%s", desc.Price.Field, formatNumber(desc.Price.Min)))
		if desc.Price.Max != nil {
			parts = append(parts, fmt.Sprintf("%s:<=%s", desc.Price.Field, formatNumber(*desc.Price.Max)))
		}
	}

	if desc.Order.ExcludeNulls {
		parts = append(parts, fmt.Sprintf("%s:>=%s", desc.Order.Field, formatNumber(missingValueFloor)))
	}

	return strings.Join(parts, " && ")
}

// Typesense has no case-insensitive exact match; both exact ops use := and
// rely on indexed values sharing the catalog's casing. Contains is a plain
// token filter, so it matches whole words rather than arbitrary substrings.
func patternFilter(c entities.PatternClause) string {
	value := "`" + strings.ReplaceAll(c.Value, "`", "") + "`"
	if c.Op == entities.PatternContains {
		return c.Field + ":" + value
	}
	return c.Field + ":=" + value
}

// sortBy renders the order clause; the missing-values modifier sits between
// the field and its direction, as in current_price(missing_values: last):asc
func sortBy(o entities.OrderClause) string {
	field := o.Field
	if o.NullsLast {
		field += "(missing_values: last)"
	}
	primary := fmt.Sprintf("%s:%s", field, o.Direction)
	if o.Field == entities.FieldCreatedAt {
		return primary
	}
	return primary + "," + entities.FieldCreatedAt + ":desc"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
