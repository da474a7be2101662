package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

func TestDeriveComparator_DiscountHighestFirst(t *testing.T) {
	a := &entities.Product{ID: "A", CurrentPrice: entities.FloatPtr(100), RegularPrice: entities.FloatPtr(200)}
	b := &entities.Product{ID: "B", CurrentPrice: entities.FloatPtr(150), RegularPrice: entities.FloatPtr(150)}

	cmp := DeriveComparator(selection(func(s *entities.FilterSelection) {
		s.SetDiscountSort(entities.DiscountSortHighestFirst)
	}))

	assert.Negative(t, cmp(a, b))
	sorted := SortProducts([]*entities.Product{b, a}, cmp)
	assert.Equal(t, []string{"A", "B"}, ids(sorted))
}

func TestDeriveComparator_PriceModes(t *testing.T) {
	cheap := &entities.Product{ID: "cheap", CurrentPrice: entities.FloatPtr(10)}
	pricey := &entities.Product{ID: "pricey", CurrentPrice: entities.FloatPtr(900)}
	unpriced := &entities.Product{ID: "unpriced"}
	items := []*entities.Product{cheap, unpriced, pricey}

	desc := DeriveComparator(selection(func(s *entities.FilterSelection) { s.SetPriceSort(entities.PriceSortHighToLow) }))
	assert.Equal(t, []string{"pricey", "cheap", "unpriced"}, ids(SortProducts(items, desc)))

	asc := DeriveComparator(selection(func(s *entities.FilterSelection) { s.SetPriceSort(entities.PriceSortLowToHigh) }))
	assert.Equal(t, []string{"unpriced", "cheap", "pricey"}, ids(SortProducts(items, asc)))
}

func TestDeriveComparator_NilKeepsOrder(t *testing.T) {
	assert.Nil(t, DeriveComparator(entities.NewFilterSelection()))

	items := []*entities.Product{{ID: "z"}, {ID: "a"}, {ID: "m"}}
	assert.Equal(t, []string{"z", "a", "m"}, ids(SortProducts(items, nil)))
}

func TestSortProducts_StableForTies(t *testing.T) {
	items := []*entities.Product{
		{ID: "1", CurrentPrice: entities.FloatPtr(50)},
		{ID: "2", CurrentPrice: entities.FloatPtr(50)},
		{ID: "3", CurrentPrice: entities.FloatPtr(70)},
	}
	cmp := DeriveComparator(selection(func(s *entities.FilterSelection) { s.SetPriceSort(entities.PriceSortHighToLow) }))

	assert.Equal(t, []string{"3", "1", "2"}, ids(SortProducts(items, cmp)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(items), "input is not mutated")
}

func TestFilterProducts(t *testing.T) {
	items := []*entities.Product{
		{ID: "desk", RoomType: "Office", CurrentPrice: entities.FloatPtr(300)},
		{ID: "bed", RoomType: "Bedroom", CurrentPrice: entities.FloatPtr(900)},
		{ID: "chair", RoomType: "Office", CurrentPrice: entities.FloatPtr(120)},
	}
	sel := selection(func(s *entities.FilterSelection) {
		s.AddRoom(entities.RoomOffice)
		s.SetPriceSort(entities.PriceSortLowToHigh)
	})

	assert.Equal(t, []string{"chair", "desk"}, ids(FilterProducts(items, sel)))
}

func ids(items []*entities.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}
