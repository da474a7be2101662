package services

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// Pattern group facet names
const (
	FacetRooms          = "rooms"
	FacetFurnitureTypes = "furniture_types"
	FacetBrands         = "brands"
)

// CompileQuery compiles a selection and optional search text into a remote
// query descriptor. The result depends only on the selection's values, so
// it can be used as a cache key.
func CompileQuery(sel entities.FilterSelection, searchText string) *entities.QueryDescriptor {
	desc := &entities.QueryDescriptor{
		Equals: categoryClauses(sel),
		AnyOf:  facetGroups(sel),
		Price:  priceRange(sel),
		Order:  orderClause(sel),
	}

	if text := strings.TrimSpace(searchText); text != "" {
		desc.Search = &entities.SearchClause{
			Fields: []string{entities.FieldName, entities.FieldDescription},
			Text:   text,
		}
	}

	return desc
}

// Fingerprint returns a short stable digest of a descriptor
func Fingerprint(desc *entities.QueryDescriptor) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(desc.CacheKey()))
}

// FingerprintOf compiles and fingerprints in one step
func FingerprintOf(sel entities.FilterSelection, searchText string) string {
	return Fingerprint(CompileQuery(sel, searchText))
}

func categoryClauses(sel entities.FilterSelection) []entities.EqualityClause {
	clauses := make([]entities.EqualityClause, 0, len(sel.CategoryFlags))
	for _, c := range sel.CategoryFlags {
		switch c {
		case entities.CategoryNew:
			clauses = append(clauses, entities.EqualityClause{Field: entities.FieldNewProduct, Value: true})
		case entities.CategoryClearance:
			clauses = append(clauses, entities.EqualityClause{Field: entities.FieldOnClearance, Value: true})
		}
	}
	return clauses
}

func facetGroups(sel entities.FilterSelection) []entities.PatternGroup {
	groups := make([]entities.PatternGroup, 0, 3)

	if len(sel.Rooms) > 0 {
		g := entities.PatternGroup{Facet: FacetRooms}
		for _, r := range sel.Rooms {
			g.Clauses = appendClause(g.Clauses, entities.PatternClause{
				Field: entities.FieldRoomType,
				Op:    entities.PatternContains,
				Value: r.MatchForm(),
			})
		}
		groups = append(groups, g)
	}

	if len(sel.FurnitureTypes) > 0 {
		g := entities.PatternGroup{Facet: FacetFurnitureTypes}
		for _, t := range sel.FurnitureTypes {
			op := entities.PatternContains
			if t.ExactMatch() {
				op = entities.PatternEquals
			}
			g.Clauses = appendClause(g.Clauses, entities.PatternClause{
				Field: entities.FieldFurnitureType,
				Op:    op,
				Value: t.Canonical(),
			})
		}
		groups = append(groups, g)
	}

	if len(sel.Brands) > 0 {
		g := entities.PatternGroup{Facet: FacetBrands}
		for _, b := range sel.Brands {
			g.Clauses = appendClause(g.Clauses, entities.PatternClause{
				Field: entities.FieldBrand,
				Op:    entities.PatternEqualsFold,
				Value: b.Title(),
			})
		}
		groups = append(groups, g)
	}

	return groups
}

// appendClause skips clauses already present; several catalog ids share a
// canonical furniture type.
func appendClause(clauses []entities.PatternClause, c entities.PatternClause) []entities.PatternClause {
	for _, existing := range clauses {
		if existing == c {
			return clauses
		}
	}
	return append(clauses, c)
}

func priceRange(sel entities.FilterSelection) *entities.RangeClause {
	if sel.MinPrice == nil && sel.MaxPrice == nil {
		return nil
	}
	r := &entities.RangeClause{Field: entities.FieldCurrentPrice}
	if sel.MinPrice != nil {
		r.Min = float64(*sel.MinPrice)
	}
	if sel.MaxPrice != nil {
		upper := float64(*sel.MaxPrice)
		r.Max = &upper
	}
	return r
}

func orderClause(sel entities.FilterSelection) entities.OrderClause {
	switch sel.PriceSort {
	case entities.PriceSortHighToLow:
		return entities.OrderClause{Field: entities.FieldCurrentPrice, Direction: entities.OrderDesc, NullsLast: true}
	case entities.PriceSortLowToHigh:
		return entities.OrderClause{Field: entities.FieldCurrentPrice, Direction: entities.OrderAsc, NullsLast: true}
	}
	if sel.DiscountSort == entities.DiscountSortHighestFirst {
		return entities.OrderClause{Field: entities.FieldDiscountPercent, Direction: entities.OrderDesc, ExcludeNulls: true}
	}
	return entities.OrderClause{Field: entities.FieldCreatedAt, Direction: entities.OrderDesc}
}
