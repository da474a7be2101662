package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent(`{"id":"e1","event_type":"reindexed","products":12}`)
	require.NoError(t, err)
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, entities.CatalogEventReindexed, event.EventType)
	assert.Equal(t, 12, event.Products)
}

func TestDecodeEvent_RejectsMalformedPayloads(t *testing.T) {
	_, err := decodeEvent("not json")
	assert.Error(t, err)

	_, err = decodeEvent(`{"id":"e1"}`)
	assert.Error(t, err)
}

func TestBroadcast_SkipsFullSubscribers(t *testing.T) {
	bus := NewRedisEventBus(nil).(*RedisEventBus)
	defer bus.cancel()

	full := make(chan *entities.CatalogEvent)
	open := make(chan *entities.CatalogEvent, 1)
	bus.subscribers["catalog:updates"] = map[chan *entities.CatalogEvent]struct{}{full: {}, open: {}}

	event := entities.NewCatalogEvent(entities.CatalogEventReindexed, 1)
	bus.broadcast("catalog:updates", event)

	assert.Same(t, event, <-open)
}
