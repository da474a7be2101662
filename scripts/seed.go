package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zatekoja/furniturefinder/internal/adapters/database"
	"github.com/zatekoja/furniturefinder/internal/adapters/search"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	"github.com/zatekoja/furniturefinder/pkg/config"
)

type seedType struct {
	canonical string
	room      string
	basePrice float64
}

var seedTypes = []seedType{
	{"sectional", "Living Room", 2400},
	{"sofa", "Living Room", 1500},
	{"sofa bed", "Living Room", 1300},
	{"accent chair", "Living Room", 450},
	{"coffee table", "Living Room", 520},
	{"media console", "Living Room", 900},
	{"bed", "Bedroom", 1400},
	{"daybed", "Bedroom", 800},
	{"nightstand", "Bedroom", 280},
	{"dresser", "Bedroom", 1100},
	{"mattress", "Bedroom", 950},
	{"dining table", "Dining Room", 1200},
	{"dining chair", "Dining Room", 220},
	{"counter stool", "Dining Room", 190},
	{"desk", "Home Office", 700},
	{"office chair", "Home Office", 380},
	{"bookcase", "Home Office", 480},
	{"outdoor sofa", "Outdoor", 1900},
	{"outdoor table", "Outdoor", 850},
}

var seedMaterials = []string{"oak", "walnut", "linen", "leather", "steel", "rattan", "velvet"}
var seedStyles = []string{"modern", "mid-century", "rustic", "coastal", "industrial"}

func main() {
	_ = godotenv.Load()
	observability.InitLogger("furniture-seed", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx := context.Background()
	writer := database.NewProductWriter(pgClient)

	if err := writer.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating furniture before seeding")
		if err := writer.Truncate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to reset furniture")
		}
	}

	var indexer *search.TypesenseAdapter
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
		if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to initialize Typesense schema, skipping indexing")
		} else {
			indexer = search.NewTypesenseAdapter(tsClient)
		}
	}

	products := seedProducts(time.Now())
	created := 0
	for _, p := range products {
		if err := writer.Upsert(ctx, p); err != nil {
			log.Warn().Err(err).Str("name", p.Name).Msg("failed to seed product")
			continue
		}
		created++
		if indexer != nil {
			if err := indexer.Index(ctx, p); err != nil {
				log.Warn().Err(err).Str("id", p.ID).Msg("failed to index product")
			}
		}
	}

	log.Info().Int("products", created).Bool("indexed", indexer != nil).Msg("seeding completed")
}

// seedProducts builds one product per brand and type with deterministic
// pricing. Every seventh product has no price and every fifth is not
// discounted.
func seedProducts(now time.Time) []*entities.Product {
	var out []*entities.Product
	n := 0
	for _, brand := range entities.AllBrands() {
		for _, t := range seedTypes {
			material := seedMaterials[n%len(seedMaterials)]
			style := seedStyles[n%len(seedStyles)]
			name := fmt.Sprintf("%s %s %s", titleCase(style), titleCase(material), titleCase(t.canonical))

			p := &entities.Product{
				ID:            uuid.NewString(),
				SKU:           fmt.Sprintf("%s-%04d", strings.ToUpper(string(brand)), n),
				Name:          name,
				Description:   fmt.Sprintf("%s %s in %s by %s.", titleCase(style), t.canonical, material, brand.Title()),
				Brand:         brand.Title(),
				FurnitureType: t.canonical,
				RoomType:      t.room,
				Material:      material,
				StyleType:     style,
				NewProduct:    n%4 == 0,
				OnClearance:   n%6 == 0,
				ImageURL:      fmt.Sprintf("https://images.example.com/furniture/%d.jpg", n),
				NavigateURL:   fmt.Sprintf("https://shop.example.com/%s/%d", brand, n),
				CreatedAt:     now.Add(-time.Duration(n) * time.Hour),
			}

			if n%7 != 3 {
				regular := t.basePrice + float64(n%9)*25
				current := regular
				if n%5 != 0 {
					current = regular * (1 - float64(n%5)*0.1)
				}
				p.RegularPrice = entities.FloatPtr(regular)
				p.CurrentPrice = entities.FloatPtr(current)
				p.DiscountPercent = entities.FloatPtr(p.EffectiveDiscountPercent())
			}

			out = append(out, p)
			n++
		}
	}
	return out
}

var titler = cases.Title(language.English)

func titleCase(s string) string {
	return titler.String(s)
}
