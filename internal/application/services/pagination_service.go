package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	queryservices "github.com/zatekoja/furniturefinder/internal/query/services"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// PageFetcher loads one page of a compiled query
type PageFetcher interface {
	FetchPage(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error)
}

// ResultStatus is the state of the live query's results
type ResultStatus string

const (
	StatusIdle        ResultStatus = "idle"
	StatusLoading     ResultStatus = "loading"
	StatusLoaded      ResultStatus = "loaded"
	StatusLoadingMore ResultStatus = "loading_more"
	StatusRefreshing  ResultStatus = "refreshing"
	StatusError       ResultStatus = "error"
)

// PaginatedResult is a snapshot of every page fetched for the live query
type PaginatedResult struct {
	Fingerprint        string              `json:"fingerprint"`
	Status             ResultStatus        `json:"status"`
	Items              []*entities.Product `json:"items"`
	TotalCount         int                 `json:"total_count"`
	PagesLoaded        int                 `json:"pages_loaded"`
	HasNextPage        bool                `json:"has_next_page"`
	IsLoading          bool                `json:"is_loading"`
	IsFetchingNextPage bool                `json:"is_fetching_next_page"`
	IsRefreshing       bool                `json:"is_refreshing"`
	Err                error               `json:"-"`
	Error              string              `json:"error,omitempty"`
}

// ResultListener is notified with a snapshot after each state change
type ResultListener func(result PaginatedResult)

type fetchKind int

const (
	fetchFirst fetchKind = iota
	fetchNext
	fetchRefresh
)

// PaginationOptions tunes a PaginationService
type PaginationOptions struct {
	PageSize int
	Metrics  *observability.Metrics
}

// PaginationService drives page-by-page retrieval for one FilterStateService.
// Whenever the selection or search text changes the query fingerprint, the
// accumulated pages are discarded and page 1 is fetched again. Responses
// that arrive for a superseded query are dropped.
//
// Fetches run in the background; callers observe progress through Result
// and OnChange. Listeners must not call FilterStateService mutators.
type PaginationService struct {
	state    *FilterStateService
	fetcher  PageFetcher
	pageSize int
	metrics  *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	seq         uint64
	started     bool
	closed      bool
	searchText  string
	sel         entities.FilterSelection
	desc        *entities.QueryDescriptor
	fingerprint string
	generation  uint64
	status      ResultStatus
	items       []*entities.Product
	total       int
	pages       int
	hasNext     bool
	inFlight    bool
	err         error
	failed      fetchKind

	listeners  map[int]ResultListener
	nextListen int

	notifyMu  sync.Mutex
	delivered uint64

	unsubscribe func()
}

// NewPaginationService binds a paginator to state. Nothing is fetched until
// Start.
func NewPaginationService(state *FilterStateService, fetcher PageFetcher, opts PaginationOptions) *PaginationService {
	if opts.PageSize < 1 {
		opts.PageSize = entities.DefaultPageSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &PaginationService{
		state:     state,
		fetcher:   fetcher,
		pageSize:  opts.PageSize,
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusIdle,
		listeners: make(map[int]ResultListener),
	}
	s.sel = state.Selection()
	s.desc = queryservices.CompileQuery(s.sel, "")
	s.fingerprint = queryservices.Fingerprint(s.desc)
	s.unsubscribe = state.Subscribe(s.onSelection)
	return s
}

// Start fetches the first page of the current query. Later calls are no-ops.
func (s *PaginationService) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.resetLocked()
	s.commit()
}

// SetSearchText changes the free-text search, resetting results when the
// query changes
func (s *PaginationService) SetSearchText(text string) {
	s.mu.Lock()
	s.searchText = text
	s.requeryLocked(s.sel)
}

// SearchText returns the current free-text search
func (s *PaginationService) SearchText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchText
}

// FetchNextPage requests the page after the last loaded one. It returns
// false without doing anything when there is no next page or a fetch is
// already running.
func (s *PaginationService) FetchNextPage() bool {
	s.mu.Lock()
	if !s.started || s.closed || !s.hasNext || s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.status = StatusLoadingMore
	s.launchLocked(fetchNext)
	s.commit()
	return true
}

// Refetch reloads every loaded page of the current query while keeping the
// current items visible. It returns false when a fetch is already running.
func (s *PaginationService) Refetch() bool {
	s.mu.Lock()
	if !s.started || s.closed || s.inFlight {
		s.mu.Unlock()
		return false
	}
	if s.pages == 0 {
		s.resetLocked()
	} else {
		s.status = StatusRefreshing
		s.launchLocked(fetchRefresh)
	}
	s.commit()
	return true
}

// RefetchWithReset discards all pages of the current query and fetches
// page 1 again, superseding any running fetch
func (s *PaginationService) RefetchWithReset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.resetLocked()
	s.commit()
}

// Retry repeats the fetch that failed. It returns false when the results
// are not in the error state.
func (s *PaginationService) Retry() bool {
	s.mu.Lock()
	if s.closed || s.status != StatusError || s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.err = nil
	switch s.failed {
	case fetchNext:
		s.status = StatusLoadingMore
		s.launchLocked(fetchNext)
	case fetchRefresh:
		s.status = StatusRefreshing
		s.launchLocked(fetchRefresh)
	default:
		s.status = StatusLoading
		s.launchLocked(fetchFirst)
	}
	s.commit()
	return true
}

// Result returns a snapshot of the live query's results
func (s *PaginationService) Result() PaginatedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// OnChange registers fn for result updates and returns a function that
// removes it
func (s *PaginationService) OnChange(fn ResultListener) (unsubscribe func()) {
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

// Close stops listening to the filter state and waits for running fetches,
// whose results are discarded
func (s *PaginationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	s.wg.Wait()
}

func (s *PaginationService) onSelection(sel entities.FilterSelection) {
	s.mu.Lock()
	s.sel = sel
	s.requeryLocked(sel)
}

// requeryLocked recompiles the query and resets when its fingerprint
// changed. It releases s.mu.
func (s *PaginationService) requeryLocked(sel entities.FilterSelection) {
	desc := queryservices.CompileQuery(sel, s.searchText)
	fingerprint := queryservices.Fingerprint(desc)
	if fingerprint == s.fingerprint || s.closed {
		s.mu.Unlock()
		return
	}

	log.Debug().
		Str("fingerprint", fingerprint).
		Str("previous_fingerprint", s.fingerprint).
		Msg("query changed, resetting pagination")

	s.desc = desc
	s.fingerprint = fingerprint
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.commit()
}

func (s *PaginationService) resetLocked() {
	s.items = nil
	s.total = 0
	s.pages = 0
	s.hasNext = false
	s.err = nil
	s.status = StatusLoading
	s.launchLocked(fetchFirst)
}

// launchLocked starts a background fetch bound to a new generation
func (s *PaginationService) launchLocked(kind fetchKind) {
	s.generation++
	s.inFlight = true

	gen := s.generation
	desc := s.desc
	fingerprint := s.fingerprint
	loaded := s.pages

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		switch kind {
		case fetchNext:
			req := entities.PageRequest{Page: loaded + 1, Size: s.pageSize}
			page, err := s.fetcher.FetchPage(s.ctx, desc, req)
			s.complete(gen, fingerprint, kind, req.Page, page, err)
		case fetchRefresh:
			page, pages, err := s.fetchRange(desc, loaded)
			s.complete(gen, fingerprint, kind, pages, page, err)
		default:
			req := entities.PageRequest{Page: 1, Size: s.pageSize}
			page, err := s.fetcher.FetchPage(s.ctx, desc, req)
			s.complete(gen, fingerprint, kind, 1, page, err)
		}
	}()
}

// fetchRange reloads pages 1..n and merges them into one page
func (s *PaginationService) fetchRange(desc *entities.QueryDescriptor, n int) (*entities.Page, int, error) {
	merged := &entities.Page{}
	loaded := 0
	for i := 1; i <= n; i++ {
		req := entities.PageRequest{Page: i, Size: s.pageSize}
		page, err := s.fetcher.FetchPage(s.ctx, desc, req)
		if err != nil {
			return nil, 0, err
		}
		merged.Items = append(merged.Items, page.Items...)
		merged.TotalCount = page.TotalCount
		loaded = i
		if !page.HasNext(req) {
			break
		}
	}
	return merged, loaded, nil
}

func (s *PaginationService) complete(gen uint64, fingerprint string, kind fetchKind, pageNum int, page *entities.Page, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug().
			Str("fingerprint", fingerprint).
			Int("page", pageNum).
			Msg("discarding stale page response")
		observability.RecordStalePage(context.Background(), s.metrics, pageNum)
		return
	}

	s.inFlight = false
	if err == nil && page == nil {
		err = apperrors.NewRemoteQueryError("catalog returned no page", nil)
	}
	if err != nil {
		if !apperrors.IsRemoteQuery(err) {
			err = apperrors.NewRemoteQueryError("failed to fetch catalog page", err)
		}
		log.Warn().
			Err(err).
			Str("fingerprint", fingerprint).
			Int("page", pageNum).
			Msg("catalog page fetch failed")
		s.status = StatusError
		s.err = err
		s.failed = kind
		s.commit()
		return
	}

	switch kind {
	case fetchNext:
		s.items = append(s.items, page.Items...)
		s.pages = pageNum
	default:
		s.items = append([]*entities.Product(nil), page.Items...)
		s.pages = pageNum
	}
	s.total = page.TotalCount
	s.hasNext = s.pages*s.pageSize < s.total
	s.status = StatusLoaded
	s.err = nil
	s.commit()
}

func (s *PaginationService) snapshotLocked() PaginatedResult {
	r := PaginatedResult{
		Fingerprint:        s.fingerprint,
		Status:             s.status,
		Items:              append([]*entities.Product{}, s.items...),
		TotalCount:         s.total,
		PagesLoaded:        s.pages,
		HasNextPage:        s.hasNext,
		IsLoading:          s.status == StatusLoading,
		IsFetchingNextPage: s.status == StatusLoadingMore,
		IsRefreshing:       s.status == StatusRefreshing,
		Err:                s.err,
	}
	if s.err != nil {
		r.Error = s.err.Error()
	}
	return r
}

// commit publishes the current state to listeners. It must be called with
// s.mu held and releases it. A snapshot older than one already delivered is
// dropped.
func (s *PaginationService) commit() {
	s.seq++
	seq := s.seq
	snapshot := s.snapshotLocked()
	listeners := make([]ResultListener, 0, len(s.listeners))
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

	for _, fn := range listeners {
		fn(snapshot)
	}
}
