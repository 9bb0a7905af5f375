package escrow

import (
	"fmt"
	"math/big"
)

// OrderStatus represents the lifecycle states of an escrowed order.
type OrderStatus uint8

const (
	OrderPending OrderStatus = iota
	OrderShipped
	OrderDelivered
	OrderCancelled
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderShipped:
		return "shipped"
	case OrderDelivered:
		return "delivered"
	case OrderCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Order captures one escrowed purchase. Everything except Status and
// DeliveredAt is immutable once created; the escrowed value equals TotalPrice
// until the order reaches a terminal state, at which point it has been fully
// disbursed to seller and platform or refunded to the buyer.
type Order struct {
	ID          uint64      `json:"id"`
	ProductID   uint64      `json:"productId"`
	Buyer       [20]byte    `json:"buyer"`
	Seller      [20]byte    `json:"seller"`
	Quantity    uint64      `json:"quantity"`
	TotalPrice  *big.Int    `json:"totalPrice"`
	Status      OrderStatus `json:"status"`
	CreatedAt   int64       `json:"createdAt"`
	DeliveredAt int64       `json:"deliveredAt,omitempty"`
}

// Clone returns a deep copy of the order so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.TotalPrice != nil {
		clone.TotalPrice = new(big.Int).Set(o.TotalPrice)
	} else {
		clone.TotalPrice = big.NewInt(0)
	}
	return &clone
}

// SanitizeOrder validates the supplied order and returns a cloned instance
// with a non-nil total. The original value is not mutated.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("escrow: nil order")
	}
	clone := o.Clone()
	if clone.Buyer == ([20]byte{}) || clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("escrow: buyer and seller required")
	}
	if clone.Buyer == clone.Seller {
		return nil, ErrSelfPurchase
	}
	if clone.Quantity == 0 {
		return nil, fmt.Errorf("escrow: quantity must be positive")
	}
	if clone.TotalPrice == nil || clone.TotalPrice.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: total price must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid order status: %d", clone.Status)
	}
	return clone, nil
}
