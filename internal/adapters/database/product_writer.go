package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

const productSchema = `
CREATE TABLE IF NOT EXISTS furniture (
	id               TEXT PRIMARY KEY,
	sku              TEXT,
	name             TEXT NOT NULL,
	description      TEXT,
	brand            TEXT,
	furniture_type   TEXT,
	room_type        TEXT,
	material         TEXT,
	style_type       TEXT,
	current_price    DOUBLE PRECISION,
	regular_price    DOUBLE PRECISION,
	discount_percent DOUBLE PRECISION,
	new_product      BOOLEAN NOT NULL DEFAULT FALSE,
	on_clearance     BOOLEAN NOT NULL DEFAULT FALSE,
	img_src_url      TEXT,
	navigate_url     TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS furniture_created_at_idx ON furniture (created_at DESC);
CREATE INDEX IF NOT EXISTS furniture_current_price_idx ON furniture (current_price);
`

// ProductWriter loads catalog rows into PostgreSQL
type ProductWriter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProductWriter creates a new product writer
func NewProductWriter(client *postgres.Client) *ProductWriter {
	return &ProductWriter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// EnsureSchema creates the furniture table and its indexes if missing
func (w *ProductWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.client.DB().ExecContext(ctx, productSchema); err != nil {
		return apperrors.NewInternalError("failed to create furniture schema", err)
	}
	return nil
}

// Upsert inserts a product, refreshing pricing and flags when the id exists
func (w *ProductWriter) Upsert(ctx context.Context, p *entities.Product) error {
	record := goqu.Record{
		"id":               p.ID,
		"sku":              nullString(p.SKU),
		"name":             p.Name,
		"description":      nullString(p.Description),
		"brand":            nullString(p.Brand),
		"furniture_type":   nullString(p.FurnitureType),
		"room_type":        nullString(p.RoomType),
		"material":         nullString(p.Material),
		"style_type":       nullString(p.StyleType),
		"current_price":    nullFloat(p.CurrentPrice),
		"regular_price":    nullFloat(p.RegularPrice),
		"discount_percent": nullFloat(p.DiscountPercent),
		"new_product":      p.NewProduct,
		"on_clearance":     p.OnClearance,
		"img_src_url":      nullString(p.ImageURL),
		"navigate_url":     nullString(p.NavigateURL),
		"created_at":       p.CreatedAt,
	}

	query, args, err := w.db.Insert(productTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"current_price":    goqu.L("EXCLUDED.current_price"),
			"regular_price":    goqu.L("EXCLUDED.regular_price"),
			"discount_percent": goqu.L("EXCLUDED.discount_percent"),
			"new_product":      goqu.L("EXCLUDED.new_product"),
			"on_clearance":     goqu.L("EXCLUDED.on_clearance"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := w.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert product", err)
	}
	return nil
}

// Truncate removes every catalog row
func (w *ProductWriter) Truncate(ctx context.Context) error {
	query, args, err := w.db.Truncate(productTable).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build truncate query", err)
	}
	if _, err := w.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to truncate furniture", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
