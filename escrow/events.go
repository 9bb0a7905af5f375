package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"bazaar/core/types"
)

const (
	EventTypeOrderCreated   = "market.order.created"
	EventTypeOrderShipped   = "market.order.shipped"
	EventTypeOrderDelivered = "market.order.delivered"
	EventTypeOrderCancelled = "market.order.cancelled"
	EventTypeFundsReleased  = "market.funds.released"
)

type orderEvent struct {
	evt *types.Event
}

func (e orderEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e orderEvent) Event() *types.Event { return e.evt }

// NewOrderCreatedEvent returns the canonical payload for a freshly escrowed
// purchase.
func NewOrderCreatedEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderCreated, o)
	if o != nil {
		evt.Attributes["productId"] = strconv.FormatUint(o.ProductID, 10)
		evt.Attributes["quantity"] = strconv.FormatUint(o.Quantity, 10)
	}
	return evt
}

// NewOrderShippedEvent returns the canonical payload for a shipment mark.
func NewOrderShippedEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderShipped, o)
}

// NewOrderDeliveredEvent returns the canonical payload for a confirmed
// delivery.
func NewOrderDeliveredEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderDelivered, o)
	if o != nil {
		evt.Attributes["deliveredAt"] = strconv.FormatInt(o.DeliveredAt, 10)
	}
	return evt
}

// NewOrderCancelledEvent returns the canonical payload for a cancelled order.
func NewOrderCancelledEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderCancelled, o)
}

// NewFundsReleasedEvent returns the canonical payload for the seller leg of a
// disbursement.
func NewFundsReleasedEvent(o *Order, amount *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeFundsReleased, o)
	if amount != nil {
		evt.Attributes["amount"] = amount.String()
	}
	return evt
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["orderId"] = strconv.FormatUint(o.ID, 10)
	attrs["buyer"] = hex.EncodeToString(o.Buyer[:])
	attrs["seller"] = hex.EncodeToString(o.Seller[:])
	if o.TotalPrice != nil {
		attrs["totalPrice"] = o.TotalPrice.String()
	}
	attrs["status"] = o.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
