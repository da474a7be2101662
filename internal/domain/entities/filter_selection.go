package entities

import "slices"

// MaxPriceBound is the largest accepted price bound
const MaxPriceBound = 999999

// FilterSelection is the set of facets chosen by a shopper. Multi-valued
// facets are kept deduplicated and in catalog order, so two selections with
// the same values compare and serialize identically whatever the order of
// mutation.
type FilterSelection struct {
	CategoryFlags  []CategoryFlag   `json:"category_flags"`
	Rooms          []Room           `json:"rooms"`
	FurnitureTypes []FurnitureType  `json:"furniture_types"`
	Brands         []Brand          `json:"brands"`
	MinPrice       *int             `json:"min_price,omitempty" validate:"omitempty,gte=0,lte=999999"`
	MaxPrice       *int             `json:"max_price,omitempty" validate:"omitempty,gte=0,lte=999999"`
	PriceSort      PriceSort        `json:"price_sort" validate:"omitempty,oneof=none high-to-low low-to-high"`
	DiscountSort   DiscountSort     `json:"discount_sort" validate:"omitempty,oneof=none highest-first"`
	Navigation     NavigationMarker `json:"navigation,omitempty" validate:"omitempty,oneof=type room brand"`
}

// NewFilterSelection returns an empty selection
func NewFilterSelection() FilterSelection {
	return FilterSelection{
		CategoryFlags:  []CategoryFlag{},
		Rooms:          []Room{},
		FurnitureTypes: []FurnitureType{},
		Brands:         []Brand{},
		PriceSort:      PriceSortNone,
		DiscountSort:   DiscountSortNone,
	}
}

// Clone returns a deep copy
func (s FilterSelection) Clone() FilterSelection {
	out := s
	out.CategoryFlags = append([]CategoryFlag{}, s.CategoryFlags...)
	out.Rooms = append([]Room{}, s.Rooms...)
	out.FurnitureTypes = append([]FurnitureType{}, s.FurnitureTypes...)
	out.Brands = append([]Brand{}, s.Brands...)
	out.MinPrice = clonePrice(s.MinPrice)
	out.MaxPrice = clonePrice(s.MaxPrice)
	if out.PriceSort == "" {
		out.PriceSort = PriceSortNone
	}
	if out.DiscountSort == "" {
		out.DiscountSort = DiscountSortNone
	}
	return out
}

// HasFacets reports whether any narrowing facet is set. Sort modes and the
// navigation marker do not narrow results.
func (s FilterSelection) HasFacets() bool {
	return len(s.CategoryFlags) > 0 ||
		len(s.Rooms) > 0 ||
		len(s.FurnitureTypes) > 0 ||
		len(s.Brands) > 0 ||
		s.MinPrice != nil ||
		s.MaxPrice != nil
}

// IsActive reports whether any facet, sort mode or price bound is set
func (s FilterSelection) IsActive() bool {
	return s.HasFacets() || s.PriceSortActive() || s.DiscountSortActive()
}

// PriceSortActive reports whether a price ordering is selected
func (s FilterSelection) PriceSortActive() bool {
	return s.PriceSort != "" && s.PriceSort != PriceSortNone
}

// DiscountSortActive reports whether a discount ordering is selected
func (s FilterSelection) DiscountSortActive() bool {
	return s.DiscountSort != "" && s.DiscountSort != DiscountSortNone
}

// AddCategory inserts c and reports whether the selection changed
func (s *FilterSelection) AddCategory(c CategoryFlag) bool {
	var ok bool
	s.CategoryFlags, ok = insertOrdered(s.CategoryFlags, c, categoryRank)
	return ok
}

// RemoveCategory deletes c and reports whether the selection changed
func (s *FilterSelection) RemoveCategory(c CategoryFlag) bool {
	var ok bool
	s.CategoryFlags, ok = removeValue(s.CategoryFlags, c)
	return ok
}

// AddRoom inserts r and reports whether the selection changed
func (s *FilterSelection) AddRoom(r Room) bool {
	var ok bool
	s.Rooms, ok = insertOrdered(s.Rooms, r, roomRank)
	return ok
}

// RemoveRoom deletes r and reports whether the selection changed
func (s *FilterSelection) RemoveRoom(r Room) bool {
	var ok bool
	s.Rooms, ok = removeValue(s.Rooms, r)
	return ok
}

// AddFurnitureType inserts t and reports whether the selection changed
func (s *FilterSelection) AddFurnitureType(t FurnitureType) bool {
	var ok bool
	s.FurnitureTypes, ok = insertOrdered(s.FurnitureTypes, t, furnitureTypeRank)
	return ok
}

// RemoveFurnitureType deletes t and reports whether the selection changed
func (s *FilterSelection) RemoveFurnitureType(t FurnitureType) bool {
	var ok bool
	s.FurnitureTypes, ok = removeValue(s.FurnitureTypes, t)
	return ok
}

// AddBrand inserts b and reports whether the selection changed
func (s *FilterSelection) AddBrand(b Brand) bool {
	var ok bool
	s.Brands, ok = insertOrdered(s.Brands, b, brandRank)
	return ok
}

// RemoveBrand deletes b and reports whether the selection changed
func (s *FilterSelection) RemoveBrand(b Brand) bool {
	var ok bool
	s.Brands, ok = removeValue(s.Brands, b)
	return ok
}

// SetPriceSort sets the price ordering. A non-none mode clears the
// discount ordering.
func (s *FilterSelection) SetPriceSort(mode PriceSort) bool {
	if mode == "" {
		mode = PriceSortNone
	}
	changed := s.PriceSort != mode
	s.PriceSort = mode
	if mode != PriceSortNone && s.DiscountSortActive() {
		s.DiscountSort = DiscountSortNone
		changed = true
	}
	return changed
}

// SetDiscountSort sets the discount ordering. A non-none mode clears the
// price ordering.
func (s *FilterSelection) SetDiscountSort(mode DiscountSort) bool {
	if mode == "" {
		mode = DiscountSortNone
	}
	changed := s.DiscountSort != mode
	s.DiscountSort = mode
	if mode != DiscountSortNone && s.PriceSortActive() {
		s.PriceSort = PriceSortNone
		changed = true
	}
	return changed
}

// ClearFilters resets facets and sort modes. Price bounds and the
// navigation marker are kept.
func (s *FilterSelection) ClearFilters() bool {
	before := s.Clone()
	nav, minP, maxP := s.Navigation, s.MinPrice, s.MaxPrice
	*s = NewFilterSelection()
	s.Navigation, s.MinPrice, s.MaxPrice = nav, minP, maxP
	return !before.Equal(*s)
}

// ClearAll resets every field
func (s *FilterSelection) ClearAll() bool {
	before := s.Clone()
	*s = NewFilterSelection()
	return !before.Equal(*s)
}

// Equal reports whether both selections hold the same values
func (s FilterSelection) Equal(o FilterSelection) bool {
	return slices.Equal(s.CategoryFlags, o.CategoryFlags) &&
		slices.Equal(s.Rooms, o.Rooms) &&
		slices.Equal(s.FurnitureTypes, o.FurnitureTypes) &&
		slices.Equal(s.Brands, o.Brands) &&
		PriceEqual(s.MinPrice, o.MinPrice) &&
		PriceEqual(s.MaxPrice, o.MaxPrice) &&
		s.PriceSortActive() == o.PriceSortActive() && (!s.PriceSortActive() || s.PriceSort == o.PriceSort) &&
		s.DiscountSortActive() == o.DiscountSortActive() && (!s.DiscountSortActive() || s.DiscountSort == o.DiscountSort) &&
		s.Navigation == o.Navigation
}

// Normalize restores the selection invariants on data that did not come
// through the mutators: unknown or duplicate facet values are dropped,
// multi-valued facets are reordered, out-of-range price bounds are discarded
// (a max below the min is dropped), and when both sort modes are set the
// price ordering wins.
func (s FilterSelection) Normalize() FilterSelection {
	out := NewFilterSelection()
	for _, c := range s.CategoryFlags {
		if parsed, err := ParseCategoryFlag(string(c)); err == nil {
			out.AddCategory(parsed)
		}
	}
	for _, r := range s.Rooms {
		if parsed, err := ParseRoom(string(r)); err == nil {
			out.AddRoom(parsed)
		}
	}
	for _, t := range s.FurnitureTypes {
		if parsed, err := ParseFurnitureType(string(t)); err == nil {
			out.AddFurnitureType(parsed)
		}
	}
	for _, b := range s.Brands {
		if parsed, err := ParseBrand(string(b)); err == nil {
			out.AddBrand(parsed)
		}
	}

	if validBound(s.MinPrice) {
		out.MinPrice = clonePrice(s.MinPrice)
	}
	if validBound(s.MaxPrice) && (out.MinPrice == nil || *s.MaxPrice >= *out.MinPrice) {
		out.MaxPrice = clonePrice(s.MaxPrice)
	}

	if ds, err := ParseDiscountSort(string(s.DiscountSort)); err == nil {
		out.SetDiscountSort(ds)
	}
	if ps, err := ParsePriceSort(string(s.PriceSort)); err == nil && ps != PriceSortNone {
		out.SetPriceSort(ps)
	}
	if nav, err := ParseNavigationMarker(string(s.Navigation)); err == nil {
		out.Navigation = nav
	}
	return out
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

func validBound(p *int) bool {
	return p != nil && *p >= 0 && *p <= MaxPriceBound
}

func clonePrice(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// PriceEqual reports whether two optional price bounds are the same
func PriceEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func insertOrdered[T comparable](set []T, v T, rank func(T) int) ([]T, bool) {
	r := rank(v)
	pos := len(set)
	for i, existing := range set {
		if existing == v {
			return set, false
		}
		if pos == len(set) && rank(existing) > r {
			pos = i
		}
	}
	out := make([]T, 0, len(set)+1)
	out = append(out, set[:pos]...)
	out = append(out, v)
	out = append(out, set[pos:]...)
	return out, true
}

func removeValue[T comparable](set []T, v T) ([]T, bool) {
	for i, existing := range set {
		if existing == v {
			out := make([]T, 0, len(set)-1)
			out = append(out, set[:i]...)
			return append(out, set[i+1:]...), true
		}
	}
	return set, false
}

var (
	categoryRanks      = rankIndex(categoryFlags)
	roomRanks          = rankIndex(rooms)
	furnitureTypeRanks = rankIndex(AllFurnitureTypes())
	brandRanks         = rankIndex(AllBrands())
)

func rankIndex[T comparable](values []T) map[T]int {
	m := make(map[T]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}

func rankOf[T comparable](ranks map[T]int, v T) int {
	if r, ok := ranks[v]; ok {
		return r
	}
	return len(ranks)
}

func categoryRank(c CategoryFlag) int {
	return rankOf(categoryRanks, c)
}

func roomRank(r Room) int {
	return rankOf(roomRanks, r)
}

func furnitureTypeRank(t FurnitureType) int {
	return rankOf(furnitureTypeRanks, t)
}

func brandRank(b Brand) int {
	return rankOf(brandRanks, b)
}
