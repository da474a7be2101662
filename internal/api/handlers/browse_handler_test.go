package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/furniturefinder/internal/adapters/cache"
	"github.com/zatekoja/furniturefinder/internal/api/handlers"
	"github.com/zatekoja/furniturefinder/internal/api/routes"
	"github.com/zatekoja/furniturefinder/internal/application/services"
	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

type stubCatalog struct {
	mu    sync.Mutex
	total int
	last  *entities.QueryDescriptor
	calls int
}

func (c *stubCatalog) FetchPage(_ context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = desc
	c.calls++

	page := &entities.Page{Items: []*entities.Product{}, TotalCount: c.total}
	for i := req.Offset(); i < req.Offset()+req.Size && i < c.total; i++ {
		page.Items = append(page.Items, &entities.Product{ID: fmt.Sprintf("p-%d", i), Name: "Item"})
	}
	return page, nil
}

type filterResponse struct {
	SessionID        string                   `json:"session_id"`
	Selection        entities.FilterSelection `json:"selection"`
	Summary          []string                 `json:"summary"`
	SummaryLine      string                   `json:"summary_line"`
	HasActiveFilters bool                     `json:"has_active_filters"`
	SearchText       string                   `json:"search_text"`
}

type productsResponse struct {
	SessionID string                   `json:"session_id"`
	Result    services.PaginatedResult `json:"result"`
}

func newTestServer(t *testing.T) (http.Handler, *stubCatalog) {
	t.Helper()
	catalog := &stubCatalog{total: 25}
	registry := services.NewSessionRegistry(cache.NewMemoryKeyValueStore(), catalog, services.SessionRegistryConfig{})
	t.Cleanup(func() { registry.Close(context.Background()) })
	router := routes.NewRouter(handlers.NewBrowseHandler(registry), nil, nil)
	return router.SetupRoutes(), catalog
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[filterResponse](t, w)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, services.AllProductsLabel, resp.SummaryLine)
	return resp.SessionID
}

func TestBrowseHandler_Health(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestBrowseHandler_AddAndRemoveFilters(t *testing.T) {
	// Arrange
	h, _ := newTestServer(t)
	id := createSession(t, h)
	base := "/api/sessions/" + id + "/filters"

	// Act
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/brand/cb2", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/room/bedroom", "").Code)
	w := do(t, h, http.MethodPost, base+"/furniture-type/accent%20chairs", "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[filterResponse](t, w)
	assert.Equal(t, []entities.Room{entities.RoomBedroom}, resp.Selection.Rooms)
	assert.Equal(t, []entities.FurnitureType{"accent chairs"}, resp.Selection.FurnitureTypes)
	assert.Equal(t, []string{"Bedroom", "Accent Chairs", "CB2"}, resp.Summary)
	assert.True(t, resp.HasActiveFilters)

	w = do(t, h, http.MethodDelete, base+"/room/bedroom", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[filterResponse](t, w).Selection.Rooms)
}

func TestBrowseHandler_RejectsUnknownValues(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)
	base := "/api/sessions/" + id + "/filters"

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, base+"/brand/acme", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, base+"/colour/red", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/sessions/not-a-uuid/filters", "").Code)
}

func TestBrowseHandler_UnknownSessionIsNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	base := "/api/sessions/" + uuid.NewString()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/filters", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/products", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base+"/stream", "").Code)
}

func TestBrowseHandler_PriceRange(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)
	path := "/api/sessions/" + id + "/filters/price"

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, path, `{"min":"500","max":"100"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, path, `not json`).Code)

	w := do(t, h, http.MethodPut, path, `{"min":"$1,000","max":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	sel := decode[filterResponse](t, w).Selection
	require.NotNil(t, sel.MinPrice)
	assert.Equal(t, 1000, *sel.MinPrice)
	assert.Nil(t, sel.MaxPrice)
}

func TestBrowseHandler_SortModes(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)
	path := "/api/sessions/" + id + "/filters/sort"

	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPut, path, `{"price_sort":"high-to-low","discount_sort":"highest-first"}`).Code)

	w := do(t, h, http.MethodPut, path, `{"discount_sort":"highest-first"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entities.DiscountSortHighestFirst, decode[filterResponse](t, w).Selection.DiscountSort)

	w = do(t, h, http.MethodPut, path, `{"price_sort":"low-to-high"}`)
	sel := decode[filterResponse](t, w).Selection
	assert.Equal(t, entities.PriceSortLowToHigh, sel.PriceSort)
	assert.Equal(t, entities.DiscountSortNone, sel.DiscountSort)

	w = do(t, h, http.MethodPut, path, `{}`)
	assert.False(t, decode[filterResponse](t, w).Selection.PriceSortActive())
}

func TestBrowseHandler_ClearFiltersKeepsNavigationUnlessAll(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)
	base := "/api/sessions/" + id + "/filters"

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/navigation", `{"navigation":"room"}`).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/category/clearance", "").Code)

	w := do(t, h, http.MethodDelete, base, "")
	sel := decode[filterResponse](t, w).Selection
	assert.Empty(t, sel.CategoryFlags)
	assert.Equal(t, entities.NavigationRoom, sel.Navigation)

	w = do(t, h, http.MethodDelete, base+"?all=true", "")
	assert.Equal(t, entities.NavigationNone, decode[filterResponse](t, w).Selection.Navigation)
}

func TestBrowseHandler_ProductsPaginate(t *testing.T) {
	// Arrange
	h, catalog := newTestServer(t)
	id := createSession(t, h)
	base := "/api/sessions/" + id + "/products"

	// Act
	w := do(t, h, http.MethodGet, base+"?wait=2s", "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[productsResponse](t, w).Result
	assert.Equal(t, services.StatusLoaded, first.Status)
	assert.Len(t, first.Items, 10)
	assert.Equal(t, 25, first.TotalCount)
	assert.True(t, first.HasNextPage)

	w = do(t, h, http.MethodPost, base+"/next?wait=2s", "")
	second := decode[productsResponse](t, w).Result
	assert.Equal(t, 2, second.PagesLoaded)
	assert.Len(t, second.Items, 20)

	w = do(t, h, http.MethodPost, base+"/next?wait=2s", "")
	third := decode[productsResponse](t, w).Result
	assert.Len(t, third.Items, 25)
	assert.False(t, third.HasNextPage)

	w = do(t, h, http.MethodPost, base+"/next", "")
	assert.Equal(t, http.StatusOK, w.Code)

	catalog.mu.Lock()
	assert.Equal(t, 3, catalog.calls)
	catalog.mu.Unlock()
}

func TestBrowseHandler_SearchResetsResults(t *testing.T) {
	h, catalog := newTestServer(t)
	id := createSession(t, h)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/sessions/"+id+"/products?wait=2s", "").Code)

	w := do(t, h, http.MethodPut, "/api/sessions/"+id+"/search", `{"text":"velvet"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "velvet", decode[filterResponse](t, w).SearchText)

	w = do(t, h, http.MethodGet, "/api/sessions/"+id+"/products?wait=2s", "")
	assert.Equal(t, 1, decode[productsResponse](t, w).Result.PagesLoaded)

	catalog.mu.Lock()
	require.NotNil(t, catalog.last.Search)
	assert.Equal(t, "velvet", catalog.last.Search.Text)
	catalog.mu.Unlock()
}

func TestBrowseHandler_RefreshAndRetry(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)
	base := "/api/sessions/" + id + "/products"

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, base+"?wait=2s", "").Code)

	w := do(t, h, http.MethodPost, base+"/refresh?reset=true&wait=2s", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[productsResponse](t, w).Result.PagesLoaded)

	// nothing failed, so there is nothing to retry
	w = do(t, h, http.MethodPost, base+"/retry", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, base+"?wait=soon", "").Code)
}

func TestBrowseHandler_DeleteSession(t *testing.T) {
	h, _ := newTestServer(t)
	id := createSession(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/sessions/"+id, "").Code)
}
