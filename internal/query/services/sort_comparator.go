package services

import (
	"cmp"
	"slices"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// Comparator orders two products; negative means a sorts first
type Comparator func(a, b *entities.Product) int

// DeriveComparator returns the ordering selected by the sort modes, or nil
// when neither is active and the source order must be kept
func DeriveComparator(sel entities.FilterSelection) Comparator {
	switch sel.PriceSort {
	case entities.PriceSortHighToLow:
		return func(a, b *entities.Product) int {
			return cmp.Compare(b.Price(), a.Price())
		}
	case entities.PriceSortLowToHigh:
		return func(a, b *entities.Product) int {
			return cmp.Compare(a.Price(), b.Price())
		}
	}
	if sel.DiscountSort == entities.DiscountSortHighestFirst {
		return func(a, b *entities.Product) int {
			return cmp.Compare(b.EffectiveDiscountPercent(), a.EffectiveDiscountPercent())
		}
	}
	return nil
}

// SortProducts returns a stably sorted copy of items. A nil comparator
// keeps the original order.
func SortProducts(items []*entities.Product, compare Comparator) []*entities.Product {
	out := slices.Clone(items)
	if compare != nil {
		slices.SortStableFunc(out, compare)
	}
	return out
}

// FilterProducts applies the predicate and comparator of a selection to an
// in-memory product list
func FilterProducts(items []*entities.Product, sel entities.FilterSelection) []*entities.Product {
	pred := CompilePredicate(sel)
	out := make([]*entities.Product, 0, len(items))
	for _, p := range items {
		if pred.Accepts(p) {
			out = append(out, p)
		}
	}
	return SortProducts(out, DeriveComparator(sel))
}
