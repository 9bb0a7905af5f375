package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func validOrder() *Order {
	return &Order{
		ID:         1,
		ProductID:  7,
		Buyer:      newTestAddress(0x11),
		Seller:     newTestAddress(0x22),
		Quantity:   2,
		TotalPrice: big.NewInt(200),
		Status:     OrderPending,
		CreatedAt:  1_700_000_000,
	}
}

func TestOrderStatus(t *testing.T) {
	cases := []struct {
		status   OrderStatus
		str      string
		valid    bool
		terminal bool
	}{
		{OrderPending, "pending", true, false},
		{OrderShipped, "shipped", true, false},
		{OrderDelivered, "delivered", true, true},
		{OrderCancelled, "cancelled", true, true},
		{OrderStatus(9), "unknown(9)", false, false},
	}
	for _, tc := range cases {
		if got := tc.status.String(); got != tc.str {
			t.Fatalf("String() = %q, want %q", got, tc.str)
		}
		if got := tc.status.Valid(); got != tc.valid {
			t.Fatalf("%s: Valid() = %v, want %v", tc.str, got, tc.valid)
		}
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Fatalf("%s: Terminal() = %v, want %v", tc.str, got, tc.terminal)
		}
	}
}

func TestSanitizeOrder(t *testing.T) {
	if _, err := SanitizeOrder(nil); err == nil {
		t.Fatal("expected nil order rejection")
	}

	cases := []struct {
		name   string
		mutate func(*Order)
		want   error
	}{
		{"missing buyer", func(o *Order) { o.Buyer = [20]byte{} }, nil},
		{"missing seller", func(o *Order) { o.Seller = [20]byte{} }, nil},
		{"buyer is seller", func(o *Order) { o.Seller = o.Buyer }, ErrSelfPurchase},
		{"zero quantity", func(o *Order) { o.Quantity = 0 }, nil},
		{"nil total", func(o *Order) { o.TotalPrice = nil }, nil},
		{"zero total", func(o *Order) { o.TotalPrice = big.NewInt(0) }, nil},
		{"negative total", func(o *Order) { o.TotalPrice = big.NewInt(-1) }, nil},
		{"invalid status", func(o *Order) { o.Status = OrderStatus(42) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := validOrder()
			tc.mutate(order)
			_, err := SanitizeOrder(order)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	order := validOrder()
	sanitized, err := SanitizeOrder(order)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized == order {
		t.Fatal("expected a cloned instance")
	}
	sanitized.TotalPrice.SetInt64(1)
	if order.TotalPrice.Int64() != 200 {
		t.Fatal("sanitize mutated the input order")
	}
}

func TestOrderClone(t *testing.T) {
	order := validOrder()
	clone := order.Clone()
	clone.TotalPrice.SetInt64(5)
	clone.Status = OrderDelivered
	if order.TotalPrice.Int64() != 200 || order.Status != OrderPending {
		t.Fatal("clone shares state with the original")
	}

	var nilOrder *Order
	if nilOrder.Clone() != nil {
		t.Fatal("expected nil clone for nil order")
	}
	withNilTotal := &Order{}
	if got := withNilTotal.Clone().TotalPrice; got == nil || got.Sign() != 0 {
		t.Fatalf("expected zero total, got %v", got)
	}
}
