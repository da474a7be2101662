package entities

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEventType represents the type of catalog event
type CatalogEventType string

const (
	// CatalogEventReindexed is published after the search index is rebuilt
	CatalogEventReindexed CatalogEventType = "reindexed"
	// CatalogEventProductsChanged is published when product rows change
	CatalogEventProductsChanged CatalogEventType = "products_changed"
)

// CatalogEvent announces a change to the product catalog
type CatalogEvent struct {
	ID        string           `json:"id"`
	EventType CatalogEventType `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Products  int              `json:"products,omitempty"`
}

// NewCatalogEvent creates a new catalog event
func NewCatalogEvent(eventType CatalogEventType, products int) *CatalogEvent {
	return &CatalogEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now(),
		Products:  products,
	}
}
