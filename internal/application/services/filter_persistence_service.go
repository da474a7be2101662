package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// FilterStateSchemaVersion is the version written with every persisted
// selection. Version 0 is the unversioned layout with camelCase fields.
const FilterStateSchemaVersion = 1

const persistWriteTimeout = 5 * time.Second

type persistedFilterState struct {
	Version int                      `json:"version"`
	State   entities.FilterSelection `json:"state"`
}

type persistedEnvelope struct {
	Version *int            `json:"version"`
	State   json.RawMessage `json:"state"`
}

// legacyFilterState is the unversioned layout
type legacyFilterState struct {
	FilterCategories       []string    `json:"filterCategories"`
	SelectedRooms          []string    `json:"selectedRooms"`
	SelectedFurnitureTypes []string    `json:"selectedFurnitureTypes"`
	SelectedBrands         []string    `json:"selectedBrands"`
	MinPrice               legacyPrice `json:"minPrice"`
	MaxPrice               legacyPrice `json:"maxPrice"`
	PriceSort              string      `json:"priceSort"`
	DiscountSort           string      `json:"discountSort"`
	NavigationType         string      `json:"navigationType"`
}

// legacyPrice accepts a number, a numeric string or null
type legacyPrice struct {
	Value *int
}

func (p *legacyPrice) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		p.Value = nil
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// unparseable bounds are dropped rather than failing the whole blob
		p.Value = nil
		return nil
	}
	v := int(f)
	p.Value = &v
	return nil
}

// FilterStatePersister saves selections to a KeyValueStore in the
// background and restores them on session start. Saves are coalesced: only
// the latest pending selection is written. Failures are logged and never
// reach the caller.
type FilterStatePersister struct {
	store    providers.KeyValueStore
	key      string
	validate *validator.Validate

	mu      sync.Mutex
	pending *entities.FilterSelection
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewFilterStatePersister creates a persister writing under key and starts
// its writer
func NewFilterStatePersister(store providers.KeyValueStore, key string) *FilterStatePersister {
	p := &FilterStatePersister{
		store:    store,
		key:      key,
		validate: validator.New(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Key returns the storage key
func (p *FilterStatePersister) Key() string {
	return p.key
}

// Load restores the persisted selection. Missing, unreadable or invalid
// data yields an empty selection.
func (p *FilterStatePersister) Load(ctx context.Context) entities.FilterSelection {
	sel, _, err := p.Restore(ctx)
	if err != nil {
		p.logFailure(err, "load")
	}
	return sel
}

// Restore reads the persisted selection and reports whether the key
// exists. A read failure is returned; data that exists but cannot be
// decoded is logged and restored as an empty selection.
func (p *FilterStatePersister) Restore(ctx context.Context) (entities.FilterSelection, bool, error) {
	raw, err := p.store.Get(ctx, p.key)
	if errors.Is(err, providers.ErrKeyNotFound) {
		return entities.NewFilterSelection(), false, nil
	}
	if err != nil {
		return entities.NewFilterSelection(), false, apperrors.NewPersistenceError("failed to read filter state", err)
	}

	sel, err := p.decode(raw)
	if err != nil {
		p.logFailure(err, "load")
		return entities.NewFilterSelection(), true, nil
	}
	return sel, true, nil
}

// Save schedules sel to be written. It never blocks.
func (p *FilterStatePersister) Save(sel entities.FilterSelection) {
	snapshot := sel.Clone()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.Debug().Str("key", p.key).Msg("filter state save after close ignored")
		return
	}
	p.pending = &snapshot
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Remove deletes the persisted selection
func (p *FilterStatePersister) Remove(ctx context.Context) {
	if err := p.store.Remove(ctx, p.key); err != nil {
		p.logFailure(apperrors.NewPersistenceError("failed to remove filter state", err), "remove")
	}
}

// Flush waits until every scheduled save has been written
func (p *FilterStatePersister) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.pending == nil && !p.busy {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending selection and stops the writer
func (p *FilterStatePersister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
}

func (p *FilterStatePersister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *FilterStatePersister) drain() {
	for {
		p.mu.Lock()
		if p.pending == nil {
			p.busy = false
			waiters := p.waiters
			p.waiters = nil
			p.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		sel := *p.pending
		p.pending = nil
		p.busy = true
		p.mu.Unlock()

		p.write(sel)
	}
}

func (p *FilterStatePersister) write(sel entities.FilterSelection) {
	data, err := json.Marshal(persistedFilterState{Version: FilterStateSchemaVersion, State: sel})
	if err != nil {
		p.logFailure(apperrors.NewPersistenceError("failed to encode filter state", err), "save")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistWriteTimeout)
	defer cancel()
	if err := p.store.Set(ctx, p.key, string(data)); err != nil {
		p.logFailure(apperrors.NewPersistenceError("failed to write filter state", err), "save")
	}
}

func (p *FilterStatePersister) decode(raw string) (entities.FilterSelection, error) {
	var env persistedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return entities.FilterSelection{}, apperrors.NewPersistenceError("filter state is not valid JSON", err)
	}

	version := 0
	if env.Version != nil {
		version = *env.Version
	}

	var sel entities.FilterSelection
	switch {
	case version > FilterStateSchemaVersion:
		return entities.FilterSelection{}, apperrors.NewPersistenceError(
			"filter state schema version "+strconv.Itoa(version)+" is newer than supported", nil)
	case version == 0:
		state := env.State
		if len(state) == 0 {
			// bare state object without an envelope
			state = json.RawMessage(raw)
		}
		migrated, err := migrateLegacyFilterState(state)
		if err != nil {
			return entities.FilterSelection{}, err
		}
		sel = migrated
	default:
		if err := json.Unmarshal(env.State, &sel); err != nil {
			return entities.FilterSelection{}, apperrors.NewPersistenceError("failed to decode filter state", err)
		}
		if err := p.validate.Struct(sel); err != nil {
			return entities.FilterSelection{}, apperrors.NewPersistenceError("persisted filter state failed validation", err)
		}
	}

	return sel.Normalize(), nil
}

// migrateLegacyFilterState maps the unversioned layout onto the current
// selection. The legacy "deals" category is clearance; values that no
// longer exist are dropped.
func migrateLegacyFilterState(data json.RawMessage) (entities.FilterSelection, error) {
	var legacy legacyFilterState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return entities.FilterSelection{}, apperrors.NewPersistenceError("failed to decode legacy filter state", err)
	}

	sel := entities.NewFilterSelection()
	for _, c := range legacy.FilterCategories {
		if strings.EqualFold(c, "deals") {
			c = string(entities.CategoryClearance)
		}
		if parsed, err := entities.ParseCategoryFlag(c); err == nil {
			sel.AddCategory(parsed)
		}
	}
	for _, r := range legacy.SelectedRooms {
		if parsed, err := entities.ParseRoom(r); err == nil {
			sel.AddRoom(parsed)
		}
	}
	for _, t := range legacy.SelectedFurnitureTypes {
		if parsed, err := entities.ParseFurnitureType(t); err == nil {
			sel.AddFurnitureType(parsed)
		}
	}
	for _, b := range legacy.SelectedBrands {
		if parsed, ok := legacyBrand(b); ok {
			sel.AddBrand(parsed)
		}
	}

	sel.MinPrice = legacy.MinPrice.Value
	sel.MaxPrice = legacy.MaxPrice.Value
	if ds, err := entities.ParseDiscountSort(legacy.DiscountSort); err == nil {
		sel.SetDiscountSort(ds)
	}
	if ps, err := entities.ParsePriceSort(legacy.PriceSort); err == nil && ps != entities.PriceSortNone {
		sel.SetPriceSort(ps)
	}
	if nav, err := entities.ParseNavigationMarker(legacy.NavigationType); err == nil {
		sel.Navigation = nav
	}
	return sel, nil
}

// legacyBrand accepts a brand id or its display title
func legacyBrand(v string) (entities.Brand, bool) {
	if b, err := entities.ParseBrand(v); err == nil {
		return b, true
	}
	for _, b := range entities.AllBrands() {
		if strings.EqualFold(b.Title(), strings.TrimSpace(v)) {
			return b, true
		}
	}
	return "", false
}

func (p *FilterStatePersister) logFailure(err error, op string) {
	log.Warn().
		Err(err).
		Str("key", p.key).
		Str("op", op).
		Msg("filter state persistence failed")
}
