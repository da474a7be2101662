package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// MockKeyValueStore is a testify mock of providers.KeyValueStore
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key string, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKeyValueStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// mapStore is a minimal in-memory KeyValueStore
type mapStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", providers.ErrKeyNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes++
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func flush(t *testing.T, p *FilterStatePersister) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Flush(ctx))
}

func TestFilterStatePersister_RoundTrip(t *testing.T) {
	store := newMapStore()
	p := NewFilterStatePersister(store, "product-filter-storage")
	defer p.Close()

	sel := entities.NewFilterSelection()
	sel.AddRoom(entities.RoomBedroom)
	sel.AddBrand("ikea")
	sel.MaxPrice = entities.IntPtr(750)
	sel.SetDiscountSort(entities.DiscountSortHighestFirst)
	sel.Navigation = entities.NavigationRoom

	p.Save(sel)
	flush(t, p)

	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(store.values["product-filter-storage"]), &blob))
	assert.JSONEq(t, "1", string(blob["version"]))

	loaded := p.Load(context.Background())
	assert.True(t, sel.Equal(loaded))
}

func TestFilterStatePersister_MissingKeyGivesDefaults(t *testing.T) {
	p := NewFilterStatePersister(newMapStore(), "k")
	defer p.Close()

	assert.False(t, p.Load(context.Background()).IsActive())
}

func TestFilterStatePersister_MigratesLegacyBlob(t *testing.T) {
	store := newMapStore()
	store.values["k"] = `{"state":{
		"filterCategories":["deals","new"],
		"selectedRooms":["living-room","garage"],
		"selectedFurnitureTypes":["sofas"],
		"selectedBrands":["West Elm","ikea"],
		"minPrice":"100",
		"maxPrice":2500,
		"priceSort":"high-to-low",
		"discountSort":"none",
		"navigationType":"brand"
	},"version":0}`
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	sel := p.Load(context.Background())

	assert.Equal(t, []entities.CategoryFlag{entities.CategoryNew, entities.CategoryClearance}, sel.CategoryFlags)
	assert.Equal(t, []entities.Room{entities.RoomLivingRoom}, sel.Rooms)
	assert.Equal(t, []entities.FurnitureType{"sofas"}, sel.FurnitureTypes)
	assert.Equal(t, []entities.Brand{"west-elm", "ikea"}, sel.Brands)
	require.NotNil(t, sel.MinPrice)
	assert.Equal(t, 100, *sel.MinPrice)
	require.NotNil(t, sel.MaxPrice)
	assert.Equal(t, 2500, *sel.MaxPrice)
	assert.Equal(t, entities.PriceSortHighToLow, sel.PriceSort)
	assert.Equal(t, entities.NavigationBrand, sel.Navigation)
}

func TestFilterStatePersister_MigratesBareLegacyObject(t *testing.T) {
	store := newMapStore()
	store.values["k"] = `{"selectedRooms":["office"],"minPrice":null}`
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	sel := p.Load(context.Background())
	assert.Equal(t, []entities.Room{entities.RoomOffice}, sel.Rooms)
	assert.Nil(t, sel.MinPrice)
}

func TestFilterStatePersister_DiscardsNewerSchema(t *testing.T) {
	store := newMapStore()
	store.values["k"] = `{"version":2,"state":{"rooms":["office"]}}`
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	assert.False(t, p.Load(context.Background()).IsActive())
}

func TestFilterStatePersister_RejectsInvalidCurrentSchema(t *testing.T) {
	store := newMapStore()
	store.values["k"] = `{"version":1,"state":{"rooms":["office"],"min_price":5000000}}`
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	assert.False(t, p.Load(context.Background()).IsActive())
}

func TestFilterStatePersister_CorruptBlobGivesDefaults(t *testing.T) {
	store := newMapStore()
	store.values["k"] = `{not json`
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	assert.False(t, p.Load(context.Background()).IsActive())
}

func TestFilterStatePersister_ReadFailureIsAbsorbed(t *testing.T) {
	store := new(MockKeyValueStore)
	store.On("Get", mock.Anything, "k").Return("", errors.New("connection refused"))
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	sel := p.Load(context.Background())

	assert.False(t, sel.IsActive())
	store.AssertExpectations(t)
}

func TestFilterStatePersister_WriteFailureIsAbsorbed(t *testing.T) {
	store := new(MockKeyValueStore)
	store.On("Set", mock.Anything, "k", mock.AnythingOfType("string")).Return(errors.New("read-only replica"))
	p := NewFilterStatePersister(store, "k")

	sel := entities.NewFilterSelection()
	sel.AddBrand("cb2")
	p.Save(sel)
	flush(t, p)
	p.Close()

	store.AssertCalled(t, "Set", mock.Anything, "k", mock.AnythingOfType("string"))
}

func TestFilterStatePersister_CloseWritesLatest(t *testing.T) {
	store := newMapStore()
	p := NewFilterStatePersister(store, "k")

	for _, b := range []entities.Brand{"ikea", "cb2", "burrow"} {
		sel := entities.NewFilterSelection()
		sel.AddBrand(b)
		p.Save(sel)
	}
	p.Close()
	p.Close()

	reloaded := NewFilterStatePersister(store, "k")
	defer reloaded.Close()
	assert.Equal(t, []entities.Brand{"burrow"}, reloaded.Load(context.Background()).Brands)
	assert.LessOrEqual(t, store.writes, 3)

	p.Save(entities.NewFilterSelection())
	assert.Equal(t, []entities.Brand{"burrow"}, reloaded.Load(context.Background()).Brands, "saves after close are ignored")
}

func TestFilterStatePersister_WithFilterState(t *testing.T) {
	store := newMapStore()
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	svc := NewFilterStateService(p.Load(context.Background()), p)
	svc.AddFurnitureType("desks")
	svc.SetDiscountSort(entities.DiscountSortHighestFirst)
	flush(t, p)

	restored := NewFilterStateService(p.Load(context.Background()), nil)
	assert.True(t, svc.Selection().Equal(restored.Selection()))
}

func TestFilterStatePersister_RestoreReportsPresence(t *testing.T) {
	store := newMapStore()
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	_, found, err := p.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	store.values["k"] = "{not json"
	sel, found, err := p.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, found, "unreadable data still marks the key as present")
	assert.False(t, sel.IsActive())
}

func TestFilterStatePersister_RestoreReturnsReadFailure(t *testing.T) {
	store := new(MockKeyValueStore)
	store.On("Get", mock.Anything, "k").Return("", errors.New("i/o timeout"))
	p := NewFilterStatePersister(store, "k")
	defer p.Close()

	_, found, err := p.Restore(context.Background())

	assert.False(t, found)
	assert.True(t, apperrors.IsPersistence(err))
	store.AssertExpectations(t)
}
