package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSelection_InsertionOrderDoesNotMatter(t *testing.T) {
	a := NewFilterSelection()
	a.AddBrand("ikea")
	a.AddBrand("west-elm")
	a.AddRoom(RoomOutdoor)
	a.AddRoom(RoomBedroom)

	b := NewFilterSelection()
	b.AddRoom(RoomBedroom)
	b.AddBrand("west-elm")
	b.AddRoom(RoomOutdoor)
	b.AddBrand("ikea")

	assert.True(t, a.Equal(b))
	assert.Equal(t, []Brand{"west-elm", "ikea"}, a.Brands)
	assert.Equal(t, []Room{RoomBedroom, RoomOutdoor}, a.Rooms)

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(aj), string(bj))
}

func TestFilterSelection_AddRemoveInverse(t *testing.T) {
	s := NewFilterSelection()
	s.AddRoom(RoomOffice)
	before := s.Clone()

	assert.True(t, s.AddRoom(RoomBedroom))
	assert.False(t, s.AddRoom(RoomBedroom), "second add is a no-op")
	assert.True(t, s.RemoveRoom(RoomBedroom))
	assert.False(t, s.RemoveRoom(RoomBedroom), "second remove is a no-op")

	assert.Equal(t, before.Rooms, s.Rooms)
}

func TestFilterSelection_SortModesAreExclusive(t *testing.T) {
	s := NewFilterSelection()
	s.SetPriceSort(PriceSortHighToLow)
	s.SetDiscountSort(DiscountSortHighestFirst)
	assert.Equal(t, PriceSortNone, s.PriceSort)
	assert.Equal(t, DiscountSortHighestFirst, s.DiscountSort)

	s.SetPriceSort(PriceSortLowToHigh)
	assert.Equal(t, DiscountSortNone, s.DiscountSort)
	assert.Equal(t, PriceSortLowToHigh, s.PriceSort)

	assert.False(t, s.SetPriceSort(PriceSortLowToHigh))
	assert.True(t, s.SetPriceSort(PriceSortNone))
	assert.False(t, s.IsActive())
}

func TestFilterSelection_ClearFiltersKeepsNavigationAndPrice(t *testing.T) {
	s := NewFilterSelection()
	s.AddCategory(CategoryNew)
	s.AddBrand("cb2")
	s.SetPriceSort(PriceSortHighToLow)
	s.MinPrice = IntPtr(100)
	s.Navigation = NavigationBrand

	assert.True(t, s.ClearFilters())
	assert.Empty(t, s.CategoryFlags)
	assert.Empty(t, s.Brands)
	assert.Equal(t, PriceSortNone, s.PriceSort)
	assert.Equal(t, NavigationBrand, s.Navigation)
	require.NotNil(t, s.MinPrice)
	assert.Equal(t, 100, *s.MinPrice)

	assert.True(t, s.ClearAll())
	assert.False(t, s.IsActive())
	assert.Equal(t, NavigationNone, s.Navigation)
	assert.False(t, s.ClearAll())
}

func TestFilterSelection_CloneIsDeep(t *testing.T) {
	s := NewFilterSelection()
	s.AddBrand("ikea")
	s.MaxPrice = IntPtr(500)

	c := s.Clone()
	c.AddBrand("cb2")
	*c.MaxPrice = 10

	assert.Equal(t, []Brand{"ikea"}, s.Brands)
	assert.Equal(t, 500, *s.MaxPrice)
}

func TestFilterSelection_Normalize(t *testing.T) {
	raw := FilterSelection{
		CategoryFlags:  []CategoryFlag{"clearance", "new", "clearance", "bogus"},
		Rooms:          []Room{"Outdoor", "bedroom"},
		FurnitureTypes: []FurnitureType{"beds", "unknown"},
		Brands:         []Brand{"IKEA", "nope"},
		MinPrice:       IntPtr(300),
		MaxPrice:       IntPtr(200),
		PriceSort:      PriceSortLowToHigh,
		DiscountSort:   DiscountSortHighestFirst,
		Navigation:     "room",
	}

	n := raw.Normalize()

	assert.Equal(t, []CategoryFlag{CategoryNew, CategoryClearance}, n.CategoryFlags)
	assert.Equal(t, []Room{RoomBedroom, RoomOutdoor}, n.Rooms)
	assert.Equal(t, []FurnitureType{"beds"}, n.FurnitureTypes)
	assert.Equal(t, []Brand{"ikea"}, n.Brands)
	require.NotNil(t, n.MinPrice)
	assert.Equal(t, 300, *n.MinPrice)
	assert.Nil(t, n.MaxPrice)
	assert.Equal(t, PriceSortLowToHigh, n.PriceSort)
	assert.Equal(t, DiscountSortNone, n.DiscountSort)
	assert.Equal(t, NavigationRoom, n.Navigation)
}

func TestFilterSelection_NormalizeDropsOutOfRangePrices(t *testing.T) {
	n := FilterSelection{MinPrice: IntPtr(-1), MaxPrice: IntPtr(MaxPriceBound + 1)}.Normalize()
	assert.Nil(t, n.MinPrice)
	assert.Nil(t, n.MaxPrice)
}

func TestPriceEqual(t *testing.T) {
	a, b, c := 100, 100, 200

	assert.True(t, PriceEqual(nil, nil))
	assert.True(t, PriceEqual(&a, &b))
	assert.False(t, PriceEqual(&a, &c))
	assert.False(t, PriceEqual(&a, nil))
	assert.False(t, PriceEqual(nil, &c))
}

func TestFilterSelection_EqualTreatsNilAndEmptyFacetsAlike(t *testing.T) {
	withNil := NewFilterSelection()
	withNil.Rooms = nil
	withEmpty := NewFilterSelection()
	withEmpty.Rooms = []Room{}

	assert.True(t, withNil.Equal(withEmpty))
}
