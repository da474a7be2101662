package providers

import (
	"context"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
)

// EventChannelCatalogUpdates carries catalog-wide change announcements
const EventChannelCatalogUpdates = "catalog:updates"

// EventBus fans catalog events out across processes
type EventBus interface {
	Publish(ctx context.Context, channel string, event *entities.CatalogEvent) error

	// Subscribe returns a channel of events that is closed once ctx ends
	// or the channel is unsubscribed
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error)

	Unsubscribe(ctx context.Context, channel string) error
	Close() error
}
