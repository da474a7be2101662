package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/furniturefinder/internal/application/services"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

const maxSettleWait = 10 * time.Second

// SessionStore is the session lookup used by the handler
type SessionStore interface {
	Create(ctx context.Context) (*services.Session, error)
	Get(ctx context.Context, id string) (*services.Session, error)
	Delete(ctx context.Context, id string) error
}

// BrowseHandler serves filter state and paginated product results per
// shopper session
type BrowseHandler struct {
	sessions        SessionStore
	streamHeartbeat time.Duration
}

// NewBrowseHandler creates a new browse handler
func NewBrowseHandler(sessions SessionStore) *BrowseHandler {
	return &BrowseHandler{sessions: sessions}
}

// SetStreamHeartbeat overrides the interval between stream heartbeats
func (h *BrowseHandler) SetStreamHeartbeat(d time.Duration) {
	h.streamHeartbeat = d
}

type filterView struct {
	SessionID        string                   `json:"session_id"`
	Selection        entities.FilterSelection `json:"selection"`
	Summary          []string                 `json:"summary"`
	SummaryLine      string                   `json:"summary_line"`
	HasActiveFilters bool                     `json:"has_active_filters"`
	SearchText       string                   `json:"search_text"`
}

type productsView struct {
	SessionID string                   `json:"session_id"`
	Result    services.PaginatedResult `json:"result"`
}

type priceRequest struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type sortRequest struct {
	PriceSort    string `json:"price_sort"`
	DiscountSort string `json:"discount_sort"`
}

type navigationRequest struct {
	Navigation string `json:"navigation"`
}

type searchRequest struct {
	Text string `json:"text"`
}

func newFilterView(s *services.Session) filterView {
	sel := s.State.Selection()
	return filterView{
		SessionID:        s.ID,
		Selection:        sel,
		Summary:          services.Summarize(sel),
		SummaryLine:      services.SummaryLine(sel),
		HasActiveFilters: sel.IsActive(),
		SearchText:       s.Pagination.SearchText(),
	}
}

func (h *BrowseHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /api/sessions
func (h *BrowseHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newFilterView(s))
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *BrowseHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFilters handles GET /api/sessions/{id}/filters
func (h *BrowseHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// AddFilter handles POST /api/sessions/{id}/filters/{facet}/{value}
func (h *BrowseHandler) AddFilter(w http.ResponseWriter, r *http.Request) {
	h.toggleFilter(w, r, true)
}

// RemoveFilter handles DELETE /api/sessions/{id}/filters/{facet}/{value}
func (h *BrowseHandler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	h.toggleFilter(w, r, false)
}

func (h *BrowseHandler) toggleFilter(w http.ResponseWriter, r *http.Request, add bool) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	value := r.PathValue("value")
	var err error
	switch r.PathValue("facet") {
	case "category":
		var c entities.CategoryFlag
		if c, err = entities.ParseCategoryFlag(value); err == nil {
			if add {
				s.State.AddCategory(c)
			} else {
				s.State.RemoveCategory(c)
			}
		}
	case "room":
		var room entities.Room
		if room, err = entities.ParseRoom(value); err == nil {
			if add {
				s.State.AddRoom(room)
			} else {
				s.State.RemoveRoom(room)
			}
		}
	case "furniture-type":
		var t entities.FurnitureType
		if t, err = entities.ParseFurnitureType(value); err == nil {
			if add {
				s.State.AddFurnitureType(t)
			} else {
				s.State.RemoveFurnitureType(t)
			}
		}
	case "brand":
		var b entities.Brand
		if b, err = entities.ParseBrand(value); err == nil {
			if add {
				s.State.AddBrand(b)
			} else {
				s.State.RemoveBrand(b)
			}
		}
	default:
		err = apperrors.NewNotFoundError("unknown facet " + strconv.Quote(r.PathValue("facet")))
	}
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// SetPrice handles PUT /api/sessions/{id}/filters/price. Empty bounds clear.
func (h *BrowseHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload priceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if !s.State.SetPriceRange(payload.Min, payload.Max) {
		respondWithError(w, http.StatusBadRequest, "price range rejected")
		return
	}
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// SetSort handles PUT /api/sessions/{id}/filters/sort
func (h *BrowseHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload sortRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	priceSort, err := entities.ParsePriceSort(payload.PriceSort)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	discountSort, err := entities.ParseDiscountSort(payload.DiscountSort)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	switch {
	case priceSort != entities.PriceSortNone && discountSort != entities.DiscountSortNone:
		respondWithError(w, http.StatusBadRequest, "price and discount sorting are mutually exclusive")
		return
	case priceSort != entities.PriceSortNone:
		s.State.SetPriceSort(priceSort)
	case discountSort != entities.DiscountSortNone:
		s.State.SetDiscountSort(discountSort)
	default:
		s.State.ClearSorting()
	}
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// SetNavigation handles PUT /api/sessions/{id}/filters/navigation
func (h *BrowseHandler) SetNavigation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload navigationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	marker, err := entities.ParseNavigationMarker(payload.Navigation)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	s.State.SetNavigation(marker)
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// ClearFilters handles DELETE /api/sessions/{id}/filters. With all=true the
// navigation marker and price bounds are cleared as well.
func (h *BrowseHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		s.State.ClearAll()
	} else {
		s.State.ClearFilters()
	}
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// SetSearch handles PUT /api/sessions/{id}/search
func (h *BrowseHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload searchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	s.Pagination.SetSearchText(payload.Text)
	respondWithJSON(w, http.StatusOK, newFilterView(s))
}

// GetProducts handles GET /api/sessions/{id}/products. The first call starts
// loading; wait (a duration such as 2s) blocks until no fetch is running.
func (h *BrowseHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Pagination.Start()
	h.respondWithProducts(w, r, s, http.StatusOK)
}

// FetchNextPage handles POST /api/sessions/{id}/products/next
func (h *BrowseHandler) FetchNextPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondWithProducts(w, r, s, acceptedStatus(s.Pagination.FetchNextPage()))
}

// Refresh handles POST /api/sessions/{id}/products/refresh. With reset=true
// every page is discarded and page 1 is fetched again.
func (h *BrowseHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if reset, _ := strconv.ParseBool(r.URL.Query().Get("reset")); reset {
		s.Pagination.RefetchWithReset()
		h.respondWithProducts(w, r, s, http.StatusAccepted)
		return
	}
	h.respondWithProducts(w, r, s, acceptedStatus(s.Pagination.Refetch()))
}

// Retry handles POST /api/sessions/{id}/products/retry
func (h *BrowseHandler) Retry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondWithProducts(w, r, s, acceptedStatus(s.Pagination.Retry()))
}

func acceptedStatus(started bool) int {
	if started {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (h *BrowseHandler) respondWithProducts(w http.ResponseWriter, r *http.Request, s *services.Session, status int) {
	result := s.Pagination.Result()
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid wait duration")
			return
		}
		if d > maxSettleWait {
			d = maxSettleWait
		}
		result = waitSettled(r.Context(), s.Pagination, d)
		status = http.StatusOK
	}
	respondWithJSON(w, status, productsView{SessionID: s.ID, Result: result})
}

func settled(res services.PaginatedResult) bool {
	return !res.IsLoading && !res.IsFetchingNextPage && !res.IsRefreshing
}

// waitSettled blocks until no fetch is running, the timeout passes or ctx
// ends, and returns the latest snapshot
func waitSettled(ctx context.Context, p *services.PaginationService, timeout time.Duration) services.PaginatedResult {
	changed := make(chan struct{}, 1)
	unsubscribe := p.OnChange(func(services.PaginatedResult) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		res := p.Result()
		if settled(res) {
			return res
		}
		select {
		case <-changed:
		case <-timer.C:
			return p.Result()
		case <-ctx.Done():
			return p.Result()
		}
	}
}
