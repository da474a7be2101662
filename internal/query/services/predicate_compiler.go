package services

import (
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// Predicate reports whether a product satisfies a selection
type Predicate func(p *entities.Product) bool

// CompilePredicate builds the in-memory counterpart of CompileQuery.
// It returns nil when no facet narrows the results; callers treat nil as
// accept-all.
//
// Values are ORed within a facet and facets are ANDed, except category
// flags, which are each required.
func CompilePredicate(sel entities.FilterSelection) Predicate {
	if !sel.HasFacets() {
		return nil
	}

	equals := categoryClauses(sel)
	groups := facetGroups(sel)
	price := priceRange(sel)

	return func(p *entities.Product) bool {
		if p == nil {
			return false
		}
		for _, eq := range equals {
			if boolField(p, eq.Field) != eq.Value {
				return false
			}
		}
		for _, g := range groups {
			if !groupMatches(g, p) {
				return false
			}
		}
		if price != nil && !price.Contains(p.Price()) {
			return false
		}
		return true
	}
}

// Accepts evaluates a possibly nil predicate
func (pred Predicate) Accepts(p *entities.Product) bool {
	return pred == nil || pred(p)
}

func groupMatches(g entities.PatternGroup, p *entities.Product) bool {
	for _, c := range g.Clauses {
		if c.Matches(textField(p, c.Field)) {
			return true
		}
	}
	return false
}

func textField(p *entities.Product, field string) string {
	switch field {
	case entities.FieldRoomType:
		return p.RoomType
	case entities.FieldFurnitureType:
		return p.FurnitureType
	case entities.FieldBrand:
		return p.Brand
	case entities.FieldName:
		return p.Name
	case entities.FieldDescription:
		return p.Description
	}
	return ""
}

func boolField(p *entities.Product, field string) bool {
	switch field {
	case entities.FieldNewProduct:
		return p.NewProduct
	case entities.FieldOnClearance:
		return p.OnClearance
	}
	return false
}
