package entities

import (
	"fmt"
	"strings"

	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// CategoryFlag is a boolean merchandising facet
type CategoryFlag string

const (
	CategoryNew       CategoryFlag = "new"
	CategoryClearance CategoryFlag = "clearance"
)

var categoryFlags = []CategoryFlag{CategoryNew, CategoryClearance}

var categoryNames = map[CategoryFlag]string{
	CategoryNew:       "New Arrivals",
	CategoryClearance: "Clearance",
}

// AllCategoryFlags lists category flags in canonical order
func AllCategoryFlags() []CategoryFlag {
	return append([]CategoryFlag(nil), categoryFlags...)
}

// ParseCategoryFlag validates a category flag id
func ParseCategoryFlag(id string) (CategoryFlag, error) {
	c := CategoryFlag(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := categoryNames[c]; !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown category %q", id))
	}
	return c, nil
}

// DisplayName returns the label shown in filter summaries
func (c CategoryFlag) DisplayName() string {
	return categoryNames[c]
}

// Room is a room-type facet
type Room string

const (
	RoomLivingRoom Room = "living-room"
	RoomBedroom    Room = "bedroom"
	RoomDiningRoom Room = "dining-room"
	RoomOffice     Room = "office"
	RoomOutdoor    Room = "outdoor"
)

var rooms = []Room{RoomLivingRoom, RoomBedroom, RoomDiningRoom, RoomOffice, RoomOutdoor}

// roomMatchForms holds the fragment searched for in a product's room_type
var roomMatchForms = map[Room]string{
	RoomLivingRoom: "living",
	RoomBedroom:    "bedroom",
	RoomDiningRoom: "dining",
	RoomOffice:     "office",
	RoomOutdoor:    "outdoor",
}

// AllRooms lists rooms in canonical order
func AllRooms() []Room {
	return append([]Room(nil), rooms...)
}

// ParseRoom validates a room id
func ParseRoom(id string) (Room, error) {
	r := Room(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := roomMatchForms[r]; !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown room %q", id))
	}
	return r, nil
}

// MatchForm returns the fragment a product's room_type must contain
func (r Room) MatchForm() string {
	return roomMatchForms[r]
}

// BedCanonical is the canonical furniture type matched exactly rather than
// by substring, so "bed" does not also select "daybed" or "sofa bed".
const BedCanonical = "bed"

// FurnitureType is a furniture-type facet keyed by its catalog id
type FurnitureType string

type furnitureTypeDef struct {
	id        FurnitureType
	canonical string
}

var furnitureTypeDefs = []furnitureTypeDef{
	{"sectionals", "sectional"},
	{"daybeds", "daybed"},
	{"accent chairs", "accent chair"},
	{"swivel chairs", "swivel chair"},
	{"coffee tables", "coffee table"},
	{"console tables", "console table"},
	{"side tables", "side table"},
	{"media consoles", "media console"},
	{"ottomans", "ottoman"},
	{"dining tables", "dining table"},
	{"dining chairs", "dining chair"},
	{"counter stools", "counter stool"},
	{"bar stools", "bar stool"},
	{"credenzas", "credenza"},
	{"bar cabinets", "bar cabinet"},
	{"nightstands", "nightstand"},
	{"bedroom benches", "bedroom bench"},
	{"mattresses", "mattress"},
	{"bookcases", "bookcase"},
	{"storage cabinets", "storage cabinet"},
	{"desks", "desk"},
	{"desk chairs", "desk chair"},
	{"office chairs", "office chair"},
	{"entryway cabinets", "entryway cabinet"},
	{"lounge chairs", "lounge chair"},
	{"loveseats", "loveseat"},
	{"outdoor chairs", "outdoor chair"},
	{"outdoor sofas", "outdoor sofa"},
	{"armchairs", "armchair"},
	{"sofa beds", "sofa bed"},
	{"end and side tables", "side table"},
	{"bar & counter stools", "stool"},
	{"outdoor tables", "outdoor table"},
	{"dressers", "dresser"},
	{"chairs", "chair"},
	{"sofas", "sofa"},
	{"benches", "bench"},
	{"stools", "stool"},
	{"cabinets", "cabinet"},
	{"platform beds", "bed"},
	{"headboards", "headboard"},
	{"beds", "bed"},
	{"seating", "seating"},
	{"tables", "tables"},
	{"storage", "storage"},
}

var furnitureTypeCanonical = func() map[FurnitureType]string {
	m := make(map[FurnitureType]string, len(furnitureTypeDefs))
	for _, d := range furnitureTypeDefs {
		m[d.id] = d.canonical
	}
	return m
}()

// AllFurnitureTypes lists furniture types in canonical order
func AllFurnitureTypes() []FurnitureType {
	out := make([]FurnitureType, len(furnitureTypeDefs))
	for i, d := range furnitureTypeDefs {
		out[i] = d.id
	}
	return out
}

// ParseFurnitureType validates a furniture type id
func ParseFurnitureType(id string) (FurnitureType, error) {
	t := FurnitureType(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := furnitureTypeCanonical[t]; !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown furniture type %q", id))
	}
	return t, nil
}

// Canonical returns the value stored in a product's furniture_type
func (t FurnitureType) Canonical() string {
	return furnitureTypeCanonical[t]
}

// ExactMatch reports whether the type only matches its canonical value exactly
func (t FurnitureType) ExactMatch() bool {
	return t.Canonical() == BedCanonical
}

// Brand is a brand facet keyed by its catalog id
type Brand string

type brandDef struct {
	id    Brand
	title string
}

var brandDefs = []brandDef{
	{"west-elm", "West Elm"},
	{"arhaus", "ARHAUS"},
	{"cb2", "CB2"},
	{"crate-barrel", "Crate & Barrel"},
	{"ikea", "IKEA"},
	{"restoration-hardware", "Restoration Hardware"},
	{"pottery-barn", "Pottery Barn"},
	{"article", "Article"},
	{"all-modern", "All Modern"},
	{"room-board", "Room & Board"},
	{"anthropologie", "Anthropologie"},
	{"urban", "Urban Outfitters"},
	{"serena", "Serena & Lily"},
	{"design-within", "Design Within Reach"},
	{"castlery", "Castlery"},
	{"burrow", "Burrow"},
}

var brandTitles = func() map[Brand]string {
	m := make(map[Brand]string, len(brandDefs))
	for _, d := range brandDefs {
		m[d.id] = d.title
	}
	return m
}()

// AllBrands lists brands in canonical order
func AllBrands() []Brand {
	out := make([]Brand, len(brandDefs))
	for i, d := range brandDefs {
		out[i] = d.id
	}
	return out
}

// ParseBrand validates a brand id
func ParseBrand(id string) (Brand, error) {
	b := Brand(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := brandTitles[b]; !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown brand %q", id))
	}
	return b, nil
}

// Title returns the brand name as stored on products
func (b Brand) Title() string {
	return brandTitles[b]
}

// PriceSort orders results by current price
type PriceSort string

const (
	PriceSortNone      PriceSort = "none"
	PriceSortHighToLow PriceSort = "high-to-low"
	PriceSortLowToHigh PriceSort = "low-to-high"
)

// ParsePriceSort validates a price sort mode; empty means none
func ParsePriceSort(s string) (PriceSort, error) {
	switch PriceSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriceSortNone:
		return PriceSortNone, nil
	case PriceSortHighToLow:
		return PriceSortHighToLow, nil
	case PriceSortLowToHigh:
		return PriceSortLowToHigh, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown price sort %q", s))
}

// DiscountSort orders results by discount
type DiscountSort string

const (
	DiscountSortNone         DiscountSort = "none"
	DiscountSortHighestFirst DiscountSort = "highest-first"
)

// ParseDiscountSort validates a discount sort mode; empty means none
func ParseDiscountSort(s string) (DiscountSort, error) {
	switch DiscountSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", DiscountSortNone:
		return DiscountSortNone, nil
	case DiscountSortHighestFirst:
		return DiscountSortHighestFirst, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown discount sort %q", s))
}

// NavigationMarker records which top-level browse path is active
type NavigationMarker string

const (
	NavigationNone  NavigationMarker = ""
	NavigationType  NavigationMarker = "type"
	NavigationRoom  NavigationMarker = "room"
	NavigationBrand NavigationMarker = "brand"
)

// ParseNavigationMarker validates a navigation marker; empty means none
func ParseNavigationMarker(s string) (NavigationMarker, error) {
	switch m := NavigationMarker(strings.ToLower(strings.TrimSpace(s))); m {
	case NavigationNone, NavigationType, NavigationRoom, NavigationBrand:
		return m, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown navigation marker %q", s))
}
