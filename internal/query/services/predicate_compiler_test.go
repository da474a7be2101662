package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

func selection(mutate func(s *entities.FilterSelection)) entities.FilterSelection {
	s := entities.NewFilterSelection()
	mutate(&s)
	return s
}

func TestCompilePredicate_NilWhenNoFacets(t *testing.T) {
	assert.Nil(t, CompilePredicate(entities.NewFilterSelection()))

	sortOnly := selection(func(s *entities.FilterSelection) { s.SetPriceSort(entities.PriceSortHighToLow) })
	pred := CompilePredicate(sortOnly)
	assert.Nil(t, pred)
	assert.True(t, pred.Accepts(&entities.Product{}))
}

func TestCompilePredicate_RoomAndFurnitureType(t *testing.T) {
	sel := selection(func(s *entities.FilterSelection) {
		s.AddRoom(entities.RoomBedroom)
		s.AddFurnitureType("nightstands")
	})
	pred := CompilePredicate(sel)
	require.NotNil(t, pred)

	assert.True(t, pred(&entities.Product{RoomType: "Bedroom Furniture", FurnitureType: "nightstand"}))
	assert.False(t, pred(&entities.Product{RoomType: "Office", FurnitureType: "nightstand"}))
}

func TestCompilePredicate_BedMatchesExactly(t *testing.T) {
	pred := CompilePredicate(selection(func(s *entities.FilterSelection) { s.AddFurnitureType("beds") }))

	assert.True(t, pred(&entities.Product{FurnitureType: "bed"}))
	assert.False(t, pred(&entities.Product{FurnitureType: "daybed"}))
	assert.False(t, pred(&entities.Product{FurnitureType: "sofa bed"}))
}

func TestCompilePredicate_OrWithinFacetAndAcross(t *testing.T) {
	pred := CompilePredicate(selection(func(s *entities.FilterSelection) {
		s.AddBrand("ikea")
		s.AddBrand("cb2")
		s.AddRoom(entities.RoomOffice)
	}))

	assert.True(t, pred(&entities.Product{Brand: "IKEA", RoomType: "office"}))
	assert.True(t, pred(&entities.Product{Brand: "cb2", RoomType: "Home Office"}))
	assert.False(t, pred(&entities.Product{Brand: "Article", RoomType: "office"}))
	assert.False(t, pred(&entities.Product{Brand: "IKEA", RoomType: "dining"}))
	assert.False(t, pred(&entities.Product{Brand: "IKEA Outlet", RoomType: "office"}), "brand is an exact match")
}

func TestCompilePredicate_CategoryFlagsAreAllRequired(t *testing.T) {
	pred := CompilePredicate(selection(func(s *entities.FilterSelection) {
		s.AddCategory(entities.CategoryNew)
		s.AddCategory(entities.CategoryClearance)
	}))

	assert.True(t, pred(&entities.Product{NewProduct: true, OnClearance: true}))
	assert.False(t, pred(&entities.Product{NewProduct: true}))
	assert.False(t, pred(&entities.Product{OnClearance: true}))
}

func TestCompilePredicate_PriceBoundsInclusive(t *testing.T) {
	pred := CompilePredicate(selection(func(s *entities.FilterSelection) {
		s.MinPrice = entities.IntPtr(100)
		s.MaxPrice = entities.IntPtr(200)
	}))

	assert.True(t, pred(&entities.Product{CurrentPrice: entities.FloatPtr(100)}))
	assert.True(t, pred(&entities.Product{CurrentPrice: entities.FloatPtr(200)}))
	assert.False(t, pred(&entities.Product{CurrentPrice: entities.FloatPtr(200.5)}))
	assert.False(t, pred(&entities.Product{}))
}

func TestCompilePredicate_Deterministic(t *testing.T) {
	pred := CompilePredicate(selection(func(s *entities.FilterSelection) {
		s.AddRoom(entities.RoomLivingRoom)
		s.AddBrand("west-elm")
	}))
	p := &entities.Product{RoomType: "Living Room", Brand: "West Elm"}

	first := pred(p)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, pred(p))
	}
}
