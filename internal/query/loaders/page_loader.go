package loaders

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/repositories"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
	"github.com/zatekoja/furniturefinder/pkg/retry"
)

// PageKey identifies one page of one compiled query
type PageKey struct {
	Query string
	Page  int
	Size  int
}

// Options tunes a PageLoader
type Options struct {
	// Backend names the remote catalog in spans and metrics
	Backend string
	// Wait is how long the loader collects keys before dispatching a batch
	Wait time.Duration
	// FetchTimeout bounds one batch, retries included
	FetchTimeout time.Duration
	Retry        retry.Config
	Metrics      *observability.Metrics
}

const defaultFetchTimeout = 30 * time.Second

// PageLoader fetches catalog pages through a dataloader so that concurrent
// loads of the same page of the same query share one remote request
type PageLoader struct {
	repo    repositories.ProductQueryRepository
	opts    Options
	loader  *dataloader.Loader[PageKey, *entities.Page]
	mu      sync.Mutex
	waiters map[PageKey]int
}

// NewPageLoader creates a page loader over repo
func NewPageLoader(repo repositories.ProductQueryRepository, opts Options) *PageLoader {
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = retry.FetchConfig(1)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = isTransient
	}

	l := &PageLoader{
		repo:    repo,
		opts:    opts,
		waiters: make(map[PageKey]int),
	}

	loaderOpts := []dataloader.Option[PageKey, *entities.Page]{}
	if opts.Wait > 0 {
		loaderOpts = append(loaderOpts, dataloader.WithWait[PageKey, *entities.Page](opts.Wait))
	}
	l.loader = dataloader.NewBatchedLoader(l.batch, loaderOpts...)
	return l
}

// FetchPage loads one page, joining an identical in-flight load if there is
// one
func (l *PageLoader) FetchPage(ctx context.Context, desc *entities.QueryDescriptor, req entities.PageRequest) (*entities.Page, error) {
	key := PageKey{Query: desc.CacheKey(), Page: req.Page, Size: req.Size}

	l.mu.Lock()
	if l.waiters[key] > 0 {
		observability.RecordCoalescedLoad(ctx, l.opts.Metrics, req.Page)
	}
	l.waiters[key]++
	l.mu.Unlock()

	defer l.release(ctx, key)

	return l.loader.Load(ctx, key)()
}

// release forgets a resolved key once its last waiter is done, so later
// loads reach the remote catalog again
func (l *PageLoader) release(ctx context.Context, key PageKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waiters[key]--
	if l.waiters[key] <= 0 {
		delete(l.waiters, key)
		l.loader.Clear(ctx, key)
	}
}

// batch runs under the context of the Load that opened it. Joined callers
// keep its values but not its cancellation.
func (l *PageLoader) batch(ctx context.Context, keys []PageKey) []*dataloader.Result[*entities.Page] {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.FetchTimeout)
	defer cancel()

	results := make([]*dataloader.Result[*entities.Page], len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key PageKey) {
			defer wg.Done()
			page, err := l.fetch(ctx, key)
			results[i] = &dataloader.Result[*entities.Page]{Data: page, Error: err}
		}(i, key)
	}
	wg.Wait()

	return results
}

func (l *PageLoader) fetch(ctx context.Context, key PageKey) (*entities.Page, error) {
	var desc entities.QueryDescriptor
	if err := json.Unmarshal([]byte(key.Query), &desc); err != nil {
		return nil, apperrors.NewInternalError("failed to decode query descriptor", err)
	}
	req := entities.PageRequest{Page: key.Page, Size: key.Size}

	ctx, span := observability.StartSpan(ctx, "catalog.FetchPage")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("catalog.backend", l.opts.Backend),
		attribute.Int("catalog.page", key.Page),
		attribute.Int("catalog.page_size", key.Size),
	)

	logger := observability.LoggerFromContext(ctx)

	var page *entities.Page
	start := time.Now()
	err := retry.DoWithLog(ctx, l.opts.Retry, "catalog", func() error {
		var err error
		page, err = l.repo.Query(ctx, &desc, req)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("page", key.Page).
			Dur("next_delay", nextDelay).
			Msg("catalog page fetch failed, retrying")
	})
	observability.RecordPageFetch(ctx, l.opts.Metrics, l.opts.Backend, key.Page, time.Since(start), err)

	if err != nil {
		observability.RecordError(span, err)
		if apperrors.IsRemoteQuery(err) {
			return nil, err
		}
		return nil, apperrors.NewRemoteQueryError("failed to fetch catalog page", err)
	}
	return page, nil
}

// isTransient reports whether a failed fetch is worth repeating. Missing
// data and rejected queries fail the same way every time.
func isTransient(err error) bool {
	return !apperrors.IsNotFound(err) && !apperrors.IsValidation(err)
}
