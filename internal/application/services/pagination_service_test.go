package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

type fetchResponse struct {
	page *entities.Page
	err  error
}

type pendingFetch struct {
	desc *entities.QueryDescriptor
	req  entities.PageRequest
	resp chan fetchResponse
}

func (p *pendingFetch) resolve(page *entities.Page) {
	p.resp <- fetchResponse{page: page}
}

func (p *pendingFetch) fail(err error) {
	p.resp <- fetchResponse{err: err}
}

// controlledFetcher parks every request until the test resolves it
type controlledFetcher struct {
	requests chan *pendingFetch
}

func newControlledFetcher() *controlledFetcher {
	return &controlledFetcher{requests: make(chan *pendingFetch, 16)}
}

func (f *controlledFetcher) FetchPage(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	pf := &pendingFetch{desc: desc, req: req, resp: make(chan fetchResponse, 1)}
	f.requests <- pf
	select {
	case r := <-pf.resp:
		return r.page, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *controlledFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case pf := <-f.requests:
		return pf
	case <-time.After(2 * time.Second):
		t.Fatal("expected a page request")
		return nil
	}
}

func makePage(prefix string, n, total int) *entities.Page {
	items := make([]*entities.Product, n)
	for i := range items {
		items[i] = &entities.Product{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return &entities.Page{Items: items, TotalCount: total}
}

func waitForStatus(t *testing.T, p *PaginationService, status ResultStatus) PaginatedResult {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Result().Status == status
	}, 2*time.Second, time.Millisecond)
	return p.Result()
}

func hasFacet(desc *entities.QueryDescriptor, facet string) bool {
	for _, g := range desc.AnyOf {
		if g.Facet == facet {
			return true
		}
	}
	return false
}

func TestPaginationService_LoadsFirstPage(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	assert.Equal(t, StatusIdle, p.Result().Status)
	p.Start()
	assert.True(t, p.Result().IsLoading)

	req := fetcher.next(t)
	assert.Equal(t, entities.PageRequest{Page: 1, Size: entities.DefaultPageSize}, req.req)
	req.resolve(makePage("p", 10, 25))

	result := waitForStatus(t, p, StatusLoaded)
	assert.Len(t, result.Items, 10)
	assert.Equal(t, 25, result.TotalCount)
	assert.True(t, result.HasNextPage)
	assert.Equal(t, 1, result.PagesLoaded)
}

func TestPaginationService_AppendsNextPages(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	p.Start()
	fetcher.next(t).resolve(makePage("a", 10, 25))
	waitForStatus(t, p, StatusLoaded)

	require.True(t, p.FetchNextPage())
	assert.True(t, p.Result().IsFetchingNextPage)
	assert.False(t, p.FetchNextPage(), "a fetch is already in flight")
	req := fetcher.next(t)
	assert.Equal(t, 2, req.req.Page)
	req.resolve(makePage("b", 10, 25))
	waitForStatus(t, p, StatusLoaded)

	require.True(t, p.FetchNextPage())
	fetcher.next(t).resolve(makePage("c", 5, 25))
	result := waitForStatus(t, p, StatusLoaded)

	require.Len(t, result.Items, 25)
	assert.Equal(t, "a-0", result.Items[0].ID)
	assert.Equal(t, "b-0", result.Items[10].ID)
	assert.Equal(t, "c-4", result.Items[24].ID)
	assert.False(t, result.HasNextPage)
}

func TestPaginationService_FetchNextPageNoopWithoutNextPage(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})

	assert.False(t, p.FetchNextPage(), "not started")

	p.Start()
	fetcher.next(t).resolve(makePage("only", 4, 4))
	before := waitForStatus(t, p, StatusLoaded)
	require.False(t, before.HasNextPage)

	assert.False(t, p.FetchNextPage())
	p.Close()

	assert.Empty(t, fetcher.requests)
	assert.Equal(t, before.Items, p.Result().Items)
}

func TestPaginationService_DiscardsStaleResponse(t *testing.T) {
	for _, staleFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("stale_first=%v", staleFirst), func(t *testing.T) {
			// Arrange
			state := NewFilterStateService(entities.NewFilterSelection(), nil)
			state.AddRoom(entities.RoomBedroom)
			fetcher := newControlledFetcher()
			p := NewPaginationService(state, fetcher, PaginationOptions{})

			p.Start()
			fetcher.next(t).resolve(makePage("bedroom", 10, 25))
			waitForStatus(t, p, StatusLoaded)

			// Act
			require.True(t, p.FetchNextPage())
			stale := fetcher.next(t)
			require.Equal(t, 2, stale.req.Page)

			state.AddBrand("ikea")
			fresh := fetcher.next(t)
			require.Equal(t, 1, fresh.req.Page)
			require.True(t, hasFacet(fresh.desc, "brands"))
			assert.True(t, p.Result().IsLoading)
			assert.Empty(t, p.Result().Items)

			if staleFirst {
				stale.resolve(makePage("stale", 10, 25))
				fresh.resolve(makePage("ikea", 3, 3))
			} else {
				fresh.resolve(makePage("ikea", 3, 3))
				stale.resolve(makePage("stale", 10, 25))
			}
			waitForStatus(t, p, StatusLoaded)
			p.Close()

			// Assert
			result := p.Result()
			require.Len(t, result.Items, 3)
			for _, item := range result.Items {
				assert.Contains(t, item.ID, "ikea")
			}
			assert.Equal(t, 3, result.TotalCount)
			assert.False(t, result.HasNextPage)
			assert.Equal(t, 1, result.PagesLoaded)
		})
	}
}

func TestPaginationService_NoResetForEquivalentSelection(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})

	p.Start()
	fetcher.next(t).resolve(makePage("p", 10, 30))
	waitForStatus(t, p, StatusLoaded)

	state.SetNavigation(entities.NavigationRoom)
	p.Close()

	assert.Empty(t, fetcher.requests)
	assert.Len(t, p.Result().Items, 10)
}

func TestPaginationService_ErrorAndRetry(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	assert.False(t, p.Retry(), "nothing has failed")

	p.Start()
	fetcher.next(t).fail(errors.New("503 from catalog"))
	result := waitForStatus(t, p, StatusError)
	assert.True(t, apperrors.IsRemoteQuery(result.Err))
	assert.NotEmpty(t, result.Error)

	require.True(t, p.Retry())
	assert.True(t, p.Result().IsLoading)
	fetcher.next(t).resolve(makePage("p", 10, 12))
	result = waitForStatus(t, p, StatusLoaded)
	assert.Nil(t, result.Err)
	assert.Len(t, result.Items, 10)
}

func TestPaginationService_NextPageErrorKeepsItems(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	p.Start()
	fetcher.next(t).resolve(makePage("a", 10, 20))
	waitForStatus(t, p, StatusLoaded)

	require.True(t, p.FetchNextPage())
	fetcher.next(t).fail(apperrors.NewRemoteQueryError("timeout", nil))
	result := waitForStatus(t, p, StatusError)
	assert.Len(t, result.Items, 10)

	require.True(t, p.Retry())
	assert.True(t, p.Result().IsFetchingNextPage)
	req := fetcher.next(t)
	assert.Equal(t, 2, req.req.Page)
	req.resolve(makePage("b", 10, 20))
	result = waitForStatus(t, p, StatusLoaded)
	assert.Len(t, result.Items, 20)
}

func TestPaginationService_RefetchKeepsItemsVisible(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	p.Start()
	fetcher.next(t).resolve(makePage("old1", 10, 25))
	waitForStatus(t, p, StatusLoaded)
	require.True(t, p.FetchNextPage())
	fetcher.next(t).resolve(makePage("old2", 10, 25))
	waitForStatus(t, p, StatusLoaded)
	fingerprint := p.Result().Fingerprint

	require.True(t, p.Refetch())
	refreshing := p.Result()
	assert.True(t, refreshing.IsRefreshing)
	assert.Len(t, refreshing.Items, 20)

	first := fetcher.next(t)
	assert.Equal(t, 1, first.req.Page)
	first.resolve(makePage("new1", 10, 25))
	second := fetcher.next(t)
	assert.Equal(t, 2, second.req.Page)
	second.resolve(makePage("new2", 10, 25))

	result := waitForStatus(t, p, StatusLoaded)
	require.Len(t, result.Items, 20)
	assert.Equal(t, "new1-0", result.Items[0].ID)
	assert.Equal(t, "new2-9", result.Items[19].ID)
	assert.Equal(t, fingerprint, result.Fingerprint)
	assert.Equal(t, 2, result.PagesLoaded)
}

func TestPaginationService_RefetchWithResetClearsItems(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	p.Start()
	fetcher.next(t).resolve(makePage("old", 10, 25))
	waitForStatus(t, p, StatusLoaded)

	p.RefetchWithReset()
	result := p.Result()
	assert.True(t, result.IsLoading)
	assert.Empty(t, result.Items)

	req := fetcher.next(t)
	assert.Equal(t, 1, req.req.Page)
	req.resolve(makePage("new", 10, 25))
	result = waitForStatus(t, p, StatusLoaded)
	assert.Equal(t, "new-0", result.Items[0].ID)
}

func TestPaginationService_SearchTextChangesQuery(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	p.Start()
	fetcher.next(t).resolve(makePage("all", 10, 40))
	before := waitForStatus(t, p, StatusLoaded)

	p.SetSearchText("walnut")
	req := fetcher.next(t)
	require.NotNil(t, req.desc.Search)
	assert.Equal(t, "walnut", req.desc.Search.Text)
	assert.Equal(t, "walnut", p.SearchText())
	req.resolve(makePage("walnut", 2, 2))

	after := waitForStatus(t, p, StatusLoaded)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.Len(t, after.Items, 2)
}

func TestPaginationService_MutationsBeforeStartDoNotFetch(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	state.AddBrand("cb2")
	assert.Empty(t, fetcher.requests)

	p.Start()
	req := fetcher.next(t)
	assert.True(t, hasFacet(req.desc, "brands"))
	req.resolve(makePage("cb2", 1, 1))
	waitForStatus(t, p, StatusLoaded)
}

func TestPaginationService_OnChangeReportsTransitions(t *testing.T) {
	state := NewFilterStateService(entities.NewFilterSelection(), nil)
	fetcher := newControlledFetcher()
	p := NewPaginationService(state, fetcher, PaginationOptions{})
	defer p.Close()

	var mu sync.Mutex
	var statuses []ResultStatus
	unsubscribe := p.OnChange(func(r PaginatedResult) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, r.Status)
	})
	defer unsubscribe()

	p.Start()
	fetcher.next(t).resolve(makePage("p", 1, 1))
	waitForStatus(t, p, StatusLoaded)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []ResultStatus{StatusLoading, StatusLoaded}, statuses)
}
