package catalog

import (
	"encoding/hex"
	"strconv"

	"bazaar/core/types"
)

const (
	// EventTypeListingCreated is emitted when a seller publishes a listing.
	EventTypeListingCreated = "market.listing.created"
	// EventTypeListingUpdated is emitted when a listing is toggled.
	EventTypeListingUpdated = "market.listing.updated"
)

type listingEvent struct {
	evt *types.Event
}

func (e listingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e listingEvent) Event() *types.Event { return e.evt }

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(p *Product) *types.Event {
	return newListingEvent(EventTypeListingCreated, p)
}

// NewListingUpdatedEvent returns the canonical payload for a listing toggle.
func NewListingUpdatedEvent(p *Product) *types.Event {
	return newListingEvent(EventTypeListingUpdated, p)
}

func newListingEvent(eventType string, p *Product) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["productId"] = strconv.FormatUint(p.ID, 10)
	attrs["seller"] = hex.EncodeToString(p.Seller[:])
	if p.Price != nil {
		attrs["price"] = p.Price.String()
	}
	attrs["stock"] = strconv.FormatUint(p.Stock, 10)
	attrs["active"] = strconv.FormatBool(p.Active)
	return &types.Event{Type: eventType, Attributes: attrs}
}
