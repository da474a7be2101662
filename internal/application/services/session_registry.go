package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	evictFlushTimeout     = 5 * time.Second
)

// Session bundles the filter state, its persister and its paginator for
// one shopper
type Session struct {
	ID         string
	CreatedAt  time.Time
	State      *FilterStateService
	Persister  *FilterStatePersister
	Pagination *PaginationService

	lastUsed atomic.Int64
	holds    atomic.Int32
}

// Hold keeps the session open until the returned release is called, however
// long it sits idle
func (s *Session) Hold() (release func()) {
	s.holds.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { s.holds.Add(-1) })
	}
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

func (s *Session) close() {
	s.Pagination.Close()
	s.Persister.Close()
}

// SessionRegistryConfig configures a SessionRegistry
type SessionRegistryConfig struct {
	KeyPrefix string
	PageSize  int
	// IdleTTL is how long a session may go unused before it is closed.
	// Its selection stays in the store and is restored on the next Get.
	IdleTTL time.Duration
	// SweepInterval is how often idle sessions are looked for; it defaults
	// to half of IdleTTL
	SweepInterval time.Duration
	Metrics       *observability.Metrics
}

// SessionRegistry creates sessions and reopens stored ones on first use in
// this process. Sessions left idle longer than IdleTTL are closed.
type SessionRegistry struct {
	store   providers.KeyValueStore
	fetcher PageFetcher
	cfg     SessionRegistryConfig
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// NewSessionRegistry creates a registry and starts its idle sweeper
func NewSessionRegistry(store providers.KeyValueStore, fetcher PageFetcher, cfg SessionRegistryConfig) *SessionRegistry {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "product-filter-storage"
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultSessionIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTTL / 2
	}

	r := &SessionRegistry{
		store:    store,
		fetcher:  fetcher,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Create opens a new session with an empty selection and stores it, so the
// id stays valid after the session is evicted or the process restarts
func (r *SessionRegistry) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	s := r.newSession(id, NewFilterStatePersister(r.store, r.key(id)), entities.NewFilterSelection())
	s.Persister.Save(s.State.Selection())
	return r.insert(s)
}

// Get returns the session with id. A session this process has not opened is
// restored from the store; an id the store has never seen is NOT_FOUND.
func (r *SessionRegistry) Get(ctx context.Context, id string) (*Session, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid session id")
	}
	id = parsed.String()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errRegistryClosed()
	}
	if s, ok := r.sessions[id]; ok {
		s.touch(r.now())
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	persister := NewFilterStatePersister(r.store, r.key(id))
	sel, found, err := persister.Restore(ctx)
	if err != nil || !found {
		persister.Close()
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewNotFoundError("session not found")
	}

	return r.insert(r.newSession(id, persister, sel))
}

// Delete closes a session and removes its persisted selection
func (r *SessionRegistry) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return apperrors.NewValidationError("invalid session id")
	}
	id = parsed.String()

	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		session.close()
		session.Persister.Remove(ctx)
		return nil
	}

	// evicted or opened by another process
	if _, err := r.store.Get(ctx, r.key(id)); err != nil {
		if errors.Is(err, providers.ErrKeyNotFound) {
			return apperrors.NewNotFoundError("session not found")
		}
		return apperrors.NewPersistenceError("failed to read filter state", err)
	}
	if err := r.store.Remove(ctx, r.key(id)); err != nil {
		return apperrors.NewPersistenceError("failed to remove filter state", err)
	}
	return nil
}

// Len returns the number of open sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes every unheld session unused for longer than IdleTTL,
// flushing its selection first. It returns how many were closed.
func (r *SessionRegistry) EvictIdle(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.holds.Load() > 0 || s.idleSince(now) <= r.cfg.IdleTTL {
			continue
		}
		idle = append(idle, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.shutdown(ctx, s)
	}
	if len(idle) > 0 {
		log.Debug().Int("evicted", len(idle)).Msg("idle sessions closed")
	}
	return len(idle)
}

// Close stops the sweeper, then flushes and closes every session
func (r *SessionRegistry) Close(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	close(r.stop)
	<-r.done

	for _, s := range sessions {
		r.shutdown(ctx, s)
	}
}

func (r *SessionRegistry) sweep() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), evictFlushTimeout)
			r.EvictIdle(ctx)
			cancel()
		}
	}
}

func (r *SessionRegistry) shutdown(ctx context.Context, s *Session) {
	if err := s.Persister.Flush(ctx); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("filter state flush interrupted")
	}
	s.close()
}

func (r *SessionRegistry) key(id string) string {
	return r.cfg.KeyPrefix + ":" + id
}

func (r *SessionRegistry) newSession(id string, persister *FilterStatePersister, sel entities.FilterSelection) *Session {
	state := NewFilterStateService(sel, persister)
	s := &Session{
		ID:        id,
		CreatedAt: r.now(),
		State:     state,
		Persister: persister,
		Pagination: NewPaginationService(state, r.fetcher, PaginationOptions{
			PageSize: r.cfg.PageSize,
			Metrics:  r.cfg.Metrics,
		}),
	}
	s.touch(s.CreatedAt)
	return s
}

// insert adds s unless the registry closed or another caller opened the
// same id first, in which case s is discarded
func (r *SessionRegistry) insert(s *Session) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.close()
		return nil, errRegistryClosed()
	}
	if existing, ok := r.sessions[s.ID]; ok {
		existing.touch(r.now())
		r.mu.Unlock()
		s.close()
		return existing, nil
	}
	r.sessions[s.ID] = s
	r.mu.Unlock()

	log.Debug().Str("session_id", s.ID).Msg("session opened")
	return s, nil
}

func errRegistryClosed() error {
	return apperrors.NewInternalError("session registry is closed", nil)
}
