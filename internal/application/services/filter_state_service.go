package services

import (
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	queryservices "github.com/zatekoja/furniturefinder/internal/query/services"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// SelectionSaver receives every committed selection for persistence. Save
// must not block.
type SelectionSaver interface {
	Save(sel entities.FilterSelection)
}

// SelectionListener is notified with the new selection after each change
type SelectionListener func(sel entities.FilterSelection)

// FilterStateService owns one shopper's filter selection. Mutators are the
// only way to change it. Each effective change is handed to the saver and
// then to subscribers. Under concurrent mutation an intermediate selection
// may be skipped, but an older selection is never delivered after a newer
// one. Listeners run synchronously and must not call mutators.
type FilterStateService struct {
	mu  sync.Mutex
	sel entities.FilterSelection
	seq uint64

	notifyMu  sync.Mutex
	delivered uint64

	listeners  map[int]SelectionListener
	nextListen int

	saver SelectionSaver
}

// NewFilterStateService creates a service seeded with initial. A nil saver
// disables persistence.
func NewFilterStateService(initial entities.FilterSelection, saver SelectionSaver) *FilterStateService {
	return &FilterStateService{
		sel:       initial.Normalize(),
		listeners: make(map[int]SelectionListener),
		saver:     saver,
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it
func (s *FilterStateService) Subscribe(fn SelectionListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Selection returns a copy of the current selection
func (s *FilterStateService) Selection() entities.FilterSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Clone()
}

// AddCategory selects a category flag
func (s *FilterStateService) AddCategory(c entities.CategoryFlag) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.AddCategory(c) })
}

// RemoveCategory deselects a category flag
func (s *FilterStateService) RemoveCategory(c entities.CategoryFlag) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.RemoveCategory(c) })
}

// AddRoom selects a room
func (s *FilterStateService) AddRoom(r entities.Room) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.AddRoom(r) })
}

// RemoveRoom deselects a room
func (s *FilterStateService) RemoveRoom(r entities.Room) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.RemoveRoom(r) })
}

// AddFurnitureType selects a furniture type
func (s *FilterStateService) AddFurnitureType(t entities.FurnitureType) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.AddFurnitureType(t) })
}

// RemoveFurnitureType deselects a furniture type
func (s *FilterStateService) RemoveFurnitureType(t entities.FurnitureType) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.RemoveFurnitureType(t) })
}

// AddBrand selects a brand
func (s *FilterStateService) AddBrand(b entities.Brand) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.AddBrand(b) })
}

// RemoveBrand deselects a brand
func (s *FilterStateService) RemoveBrand(b entities.Brand) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.RemoveBrand(b) })
}

// SetPriceSort sets the price ordering, clearing any discount ordering
func (s *FilterStateService) SetPriceSort(mode entities.PriceSort) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.SetPriceSort(mode) })
}

// SetDiscountSort sets the discount ordering, clearing any price ordering
func (s *FilterStateService) SetDiscountSort(mode entities.DiscountSort) {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.SetDiscountSort(mode) })
}

// ClearSorting resets both sort modes
func (s *FilterStateService) ClearSorting() {
	s.apply(func(sel *entities.FilterSelection) bool {
		changed := sel.SetPriceSort(entities.PriceSortNone)
		return sel.SetDiscountSort(entities.DiscountSortNone) || changed
	})
}

// SetNavigation records the active browse path
func (s *FilterStateService) SetNavigation(marker entities.NavigationMarker) {
	s.apply(func(sel *entities.FilterSelection) bool {
		if sel.Navigation == marker {
			return false
		}
		sel.Navigation = marker
		return true
	})
}

// SetMinPrice sets the lower price bound from user text. Non-digits are
// stripped and empty text clears the bound. Values above the maximum bound
// or above the current upper bound are rejected and the previous value is
// kept. The result reports whether the input was accepted.
func (s *FilterStateService) SetMinPrice(raw string) bool {
	v, err := parsePriceInput(raw)
	if err != nil {
		logRejectedPrice("min", raw, err)
		return false
	}
	return s.setBounds("min", raw, func(sel *entities.FilterSelection) (*int, *int) {
		return v, sel.MaxPrice
	})
}

// SetMaxPrice sets the upper price bound from user text, with the same rules
// as SetMinPrice
func (s *FilterStateService) SetMaxPrice(raw string) bool {
	v, err := parsePriceInput(raw)
	if err != nil {
		logRejectedPrice("max", raw, err)
		return false
	}
	return s.setBounds("max", raw, func(sel *entities.FilterSelection) (*int, *int) {
		return sel.MinPrice, v
	})
}

// SetPriceRange sets both bounds together. Either both are accepted or
// neither changes.
func (s *FilterStateService) SetPriceRange(rawMin, rawMax string) bool {
	minPrice, err := parsePriceInput(rawMin)
	if err != nil {
		logRejectedPrice("min", rawMin, err)
		return false
	}
	maxPrice, err := parsePriceInput(rawMax)
	if err != nil {
		logRejectedPrice("max", rawMax, err)
		return false
	}
	return s.setBounds("range", rawMin+"-"+rawMax, func(*entities.FilterSelection) (*int, *int) {
		return minPrice, maxPrice
	})
}

func (s *FilterStateService) setBounds(bound, raw string, next func(sel *entities.FilterSelection) (*int, *int)) bool {
	accepted := true
	s.apply(func(sel *entities.FilterSelection) bool {
		minPrice, maxPrice := next(sel)
		if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
			accepted = false
			return false
		}
		if entities.PriceEqual(sel.MinPrice, minPrice) && entities.PriceEqual(sel.MaxPrice, maxPrice) {
			return false
		}
		sel.MinPrice, sel.MaxPrice = minPrice, maxPrice
		return true
	})
	if !accepted {
		logRejectedPrice(bound, raw, apperrors.NewValidationError("minimum price exceeds maximum price"))
	}
	return accepted
}

// ClearPriceRange removes both price bounds
func (s *FilterStateService) ClearPriceRange() {
	s.apply(func(sel *entities.FilterSelection) bool {
		if sel.MinPrice == nil && sel.MaxPrice == nil {
			return false
		}
		sel.MinPrice, sel.MaxPrice = nil, nil
		return true
	})
}

// ClearFilters resets facets and sort modes, keeping the navigation marker
// and price bounds
func (s *FilterStateService) ClearFilters() {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.ClearFilters() })
}

// ClearAll resets the whole selection
func (s *FilterStateService) ClearAll() {
	s.apply(func(sel *entities.FilterSelection) bool { return sel.ClearAll() })
}

// Replace swaps in a complete selection, normalising it first
func (s *FilterStateService) Replace(next entities.FilterSelection) {
	next = next.Normalize()
	s.apply(func(sel *entities.FilterSelection) bool {
		if sel.Equal(next) {
			return false
		}
		*sel = next
		return true
	})
}

// HasActiveFilters reports whether any facet, sort mode or price bound is set
func (s *FilterStateService) HasActiveFilters() bool {
	return s.Selection().IsActive()
}

// FilterSummary returns the display labels for the current selection
func (s *FilterStateService) FilterSummary() []string {
	return Summarize(s.Selection())
}

// FilterData filters and sorts an in-memory product list with the current
// selection
func (s *FilterStateService) FilterData(items []*entities.Product) []*entities.Product {
	return queryservices.FilterProducts(items, s.Selection())
}

func (s *FilterStateService) apply(mutate func(sel *entities.FilterSelection) bool) {
	s.mu.Lock()
	if !mutate(&s.sel) {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	snapshot := s.sel.Clone()
	listeners := make([]SelectionListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq

	if s.saver != nil {
		s.saver.Save(snapshot)
	}
	for _, fn := range listeners {
		fn(snapshot.Clone())
	}
}

// parsePriceInput keeps the digits of raw. Empty input means no bound.
func parsePriceInput(raw string) (*int, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil || v > entities.MaxPriceBound {
		return nil, apperrors.NewValidationError("price must not exceed " + strconv.Itoa(entities.MaxPriceBound))
	}
	return &v, nil
}

func logRejectedPrice(bound, raw string, err error) {
	log.Warn().
		Err(err).
		Str("facet", "price").
		Str("bound", bound).
		Str("input", raw).
		Msg("price input rejected")
}
