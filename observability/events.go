package observability

import (
	"math/big"
	"sync"

	"bazaar/core/events"
	"bazaar/core/types"
)

const (
	eventOrderCreated   = "market.order.created"
	eventOrderDelivered = "market.order.delivered"
	eventOrderCancelled = "market.order.cancelled"
)

// MeteredEmitter forwards events to the wrapped emitter while recording
// settlement outcomes and the running escrow vault balance in prometheus.
type MeteredEmitter struct {
	next events.Emitter

	mu       sync.Mutex
	escrowed big.Int
}

// NewMeteredEmitter decorates the supplied emitter. A nil inner emitter
// degrades to metrics-only.
func NewMeteredEmitter(next events.Emitter) *MeteredEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MeteredEmitter{next: next}
}

// Emit implements the events.Emitter interface.
func (m *MeteredEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case eventOrderCreated:
		m.adjustVault(evt, 1)
	case eventOrderDelivered:
		ModuleMetrics().ObserveSettlement("delivered")
		m.adjustVault(evt, -1)
	case eventOrderCancelled:
		ModuleMetrics().ObserveSettlement("cancelled")
		m.adjustVault(evt, -1)
	}
	m.next.Emit(evt)
}

// adjustVault tracks escrowed value across the order lifecycle: a created
// order locks its total in the vault, a terminal transition releases it.
func (m *MeteredEmitter) adjustVault(evt events.Event, sign int) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	inner := carrier.Event()
	if inner == nil {
		return
	}
	total, ok := new(big.Int).SetString(inner.Attributes["totalPrice"], 10)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sign < 0 {
		m.escrowed.Sub(&m.escrowed, total)
	} else {
		m.escrowed.Add(&m.escrowed, total)
	}
	units, _ := new(big.Float).SetInt(&m.escrowed).Float64()
	ModuleMetrics().SetVaultBalance(units)
}
