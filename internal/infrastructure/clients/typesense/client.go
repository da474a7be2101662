package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/furniturefinder/pkg/config"
	"github.com/zatekoja/furniturefinder/pkg/retry"
)

const (
	FurnitureCollection = "furniture"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// FurnitureSchema is the collection schema for catalog products
func FurnitureSchema() *api.CollectionSchema {
	optional := func(name, typ string) api.Field {
		return api.Field{Name: name, Type: typ, Optional: pointer.True()}
	}
	return &api.CollectionSchema{
		Name: FurnitureCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			optional("sku", "string"),
			optional("description", "string"),
			{Name: "brand", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "furniture_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "room_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			optional("material", "string"),
			optional("style_type", "string"),
			optional("current_price", "float"),
			optional("regular_price", "float"),
			optional("discount_percent", "float"),
			{Name: "new_product", Type: "bool"},
			{Name: "on_clearance", Type: "bool"},
			optional("img_src_url", "string"),
			optional("navigate_url", "string"),
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the furniture collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == FurnitureCollection {
			log.Info().Str("collection", FurnitureCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, FurnitureSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", FurnitureCollection).Msg("created Typesense collection")
	return nil
}

// DropCollection deletes the furniture collection
func (c *Client) DropCollection(ctx context.Context) error {
	_, err := c.client.Collection(FurnitureCollection).Delete(ctx)
	return err
}

// IndexDocument upserts a product document
func (c *Client) IndexDocument(ctx context.Context, document interface{}) error {
	_, err := c.client.Collection(FurnitureCollection).Documents().Upsert(ctx, document)
	return err
}
