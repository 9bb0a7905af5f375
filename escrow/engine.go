package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/fees"
	"bazaar/ledger"
)

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilCatalog = errors.New("escrow engine: catalog not configured")
	errNilLedger  = errors.New("escrow engine: ledger not configured")
	errNilWallet  = errors.New("escrow engine: platform wallet not configured")
)

// engineState is the persistence surface the engine requires. The production
// implementation is Store; tests substitute an in-memory mock.
type engineState interface {
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, error)
	OrderCount() (uint64, error)
	NextOrderID() (uint64, error)
	OrderIndexAppend(buyer, seller [20]byte, id uint64) error
	OrdersByBuyer(addr [20]byte) ([]uint64, error)
	OrdersBySeller(addr [20]byte) ([]uint64, error)
}

// CatalogView is the read-and-reserve contract the engine consumes from the
// catalog collaborator. Reserve must be an atomic check-and-decrement.
type CatalogView interface {
	PricingAndOwner(productID uint64) (seller [20]byte, price *big.Int, exists bool)
	IsAvailable(productID, quantity uint64) bool
	Reserve(productID, quantity uint64) error
	Restock(productID, quantity uint64) error
}

// Settler executes value movements. A multi-leg batch applies fully or not at
// all, which the engine relies on for split payouts.
type Settler interface {
	Apply(legs ...ledger.Leg) error
}

// defaultVault is the module account holding escrowed value between purchase
// and disbursement.
var defaultVault = [20]byte{'b', 'a', 'z', 'a', 'a', 'r', '-', 'e', 's', 'c', 'r', 'o', 'w', '-', 'v', 'a', 'u', 'l', 't', 0}

// Engine owns the order table and enforces the settlement state machine:
// Pending -> Shipped -> Delivered, or Pending -> Cancelled. Every mutating
// operation runs under the engine mutex and is observed either fully applied
// or not at all.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	catalog CatalogView
	settler Settler
	emitter events.Emitter
	nowFn   func() int64

	vault          [20]byte
	platformWallet [20]byte
	authority      [20]byte
	feeRateBps     uint32
}

// NewEngine creates an engine with a no-op emitter, the default vault account
// and the default platform fee rate. Collaborators are attached via setters.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		vault:      defaultVault,
		feeRateBps: fees.DefaultPlatformBps,
	}
}

// SetState configures the persistence backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCatalog configures the catalog collaborator.
func (e *Engine) SetCatalog(c CatalogView) { e.catalog = c }

// SetSettler configures the value-transfer collaborator.
func (e *Engine) SetSettler(s Settler) { e.settler = s }

// SetPlatformWallet configures the address receiving platform fees.
func (e *Engine) SetPlatformWallet(addr [20]byte) { e.platformWallet = addr }

// SetAuthority configures the address allowed to retune the fee rate.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// Vault returns the module account escrowed value is held in.
func (e *Engine) Vault() [20]byte { return e.vault }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(orderEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ensureConfigured() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.catalog == nil:
		return errNilCatalog
	case e.settler == nil:
		return errNilLedger
	case e.platformWallet == ([20]byte{}):
		return errNilWallet
	default:
		return nil
	}
}

// SetFeeRateBps configures the platform fee rate at startup, alongside the
// other collaborator setters. Runtime changes go through SetFeeRate, which is
// authority-gated.
func (e *Engine) SetFeeRateBps(rateBps uint32) error {
	if !fees.ValidBps(rateBps) {
		return fmt.Errorf("escrow: fee bps out of range: %d", rateBps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeRateBps = rateBps
	return nil
}

// FeeRate returns the platform fee rate in basis points.
func (e *Engine) FeeRate() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeRateBps
}

// SetFeeRate retunes the platform fee rate. Only the configured authority may
// call it; the new rate applies to disbursements from this point on.
func (e *Engine) SetFeeRate(caller [20]byte, rateBps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.authority == ([20]byte{}) || caller != e.authority {
		return ErrUnauthorized
	}
	if !fees.ValidBps(rateBps) {
		return fmt.Errorf("escrow: fee bps out of range: %d", rateBps)
	}
	e.feeRateBps = rateBps
	return nil
}

// BuyProduct validates the purchase against the catalog, moves the payment
// into the escrow vault and persists a Pending order. The price and stock
// checks, the reservation and the debit all happen under the engine mutex so
// they observe one snapshot of product state. Any failure leaves stock,
// balances and the order table untouched.
func (e *Engine) BuyProduct(buyer [20]byte, productID, quantity uint64, payment *big.Int) (uint64, error) {
	if err := e.ensureConfigured(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	seller, price, exists := e.catalog.PricingAndOwner(productID)
	if !exists || seller == ([20]byte{}) {
		return 0, ErrProductNotFound
	}
	if buyer == seller {
		return 0, ErrSelfPurchase
	}
	if quantity == 0 || !e.catalog.IsAvailable(productID, quantity) {
		return 0, ErrUnavailable
	}
	total := new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))
	if payment == nil || payment.Cmp(total) != 0 {
		return 0, ErrPaymentMismatch
	}

	if err := e.catalog.Reserve(productID, quantity); err != nil {
		return 0, ErrUnavailable
	}
	if err := e.settler.Apply(ledger.Leg{From: buyer, To: e.vault, Amount: total}); err != nil {
		// Hand the reserved units back before surfacing the failure.
		if restockErr := e.catalog.Restock(productID, quantity); restockErr != nil {
			return 0, fmt.Errorf("%w: %v (restock failed: %v)", ErrTransferFailed, err, restockErr)
		}
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	id, err := e.state.NextOrderID()
	if err != nil {
		return 0, e.unwindPurchase(buyer, productID, quantity, total, err)
	}
	order := &Order{
		ID:         id,
		ProductID:  productID,
		Buyer:      buyer,
		Seller:     seller,
		Quantity:   quantity,
		TotalPrice: total,
		Status:     OrderPending,
		CreatedAt:  e.now(),
	}
	if err := e.state.OrderPut(order); err != nil {
		return 0, e.unwindPurchase(buyer, productID, quantity, total, err)
	}
	if err := e.state.OrderIndexAppend(buyer, seller, id); err != nil {
		return 0, e.unwindPurchase(buyer, productID, quantity, total, err)
	}
	e.emit(NewOrderCreatedEvent(order))
	return id, nil
}

// unwindPurchase compensates an already-applied reservation and debit after a
// persistence failure so the buyer observes no state change.
func (e *Engine) unwindPurchase(buyer [20]byte, productID, quantity uint64, total *big.Int, cause error) error {
	if err := e.settler.Apply(ledger.Leg{From: e.vault, To: buyer, Amount: total}); err != nil {
		return fmt.Errorf("escrow: persist order: %v (refund failed: %v)", cause, err)
	}
	if err := e.catalog.Restock(productID, quantity); err != nil {
		return fmt.Errorf("escrow: persist order: %v (restock failed: %v)", cause, err)
	}
	return fmt.Errorf("escrow: persist order: %w", cause)
}

// MarkShipped transitions a Pending order to Shipped. Seller only, no fund
// movement.
func (e *Engine) MarkShipped(caller [20]byte, orderID uint64) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.state.OrderGet(orderID)
	if err != nil {
		return err
	}
	if caller != order.Seller {
		return ErrNotSeller
	}
	if order.Status != OrderPending {
		return ErrInvalidTransition
	}
	order.Status = OrderShipped
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewOrderShippedEvent(order))
	return nil
}

// ConfirmDelivery transitions a Shipped order to Delivered and disburses the
// escrowed value: total - fee to the seller, fee to the platform wallet. The
// terminal status is committed before the transfers so a re-entrant call is
// rejected by the status precondition; if either payout leg fails the flip is
// rolled back and ErrTransferFailed surfaces with no balance change.
func (e *Engine) ConfirmDelivery(caller [20]byte, orderID uint64) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.state.OrderGet(orderID)
	if err != nil {
		return err
	}
	if caller != order.Buyer {
		return ErrNotBuyer
	}
	if order.Status != OrderShipped {
		return ErrInvalidTransition
	}

	order.Status = OrderDelivered
	order.DeliveredAt = e.now()
	if err := e.state.OrderPut(order); err != nil {
		return err
	}

	split := fees.Apply(order.TotalPrice, e.feeRateBps)
	err = e.settler.Apply(
		ledger.Leg{From: e.vault, To: order.Seller, Amount: split.SellerAmount},
		ledger.Leg{From: e.vault, To: e.platformWallet, Amount: split.Fee},
	)
	if err != nil {
		order.Status = OrderShipped
		order.DeliveredAt = 0
		if putErr := e.state.OrderPut(order); putErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, err, putErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewOrderDeliveredEvent(order))
	e.emit(NewFundsReleasedEvent(order, split.SellerAmount))
	return nil
}

// CancelOrder transitions a Pending order to Cancelled and refunds the full
// escrowed value to the buyer. Shipped orders cannot be cancelled; once goods
// are in transit the only paths are delivery or recourse outside this engine.
func (e *Engine) CancelOrder(caller [20]byte, orderID uint64) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.state.OrderGet(orderID)
	if err != nil {
		return err
	}
	if caller != order.Buyer {
		return ErrNotBuyer
	}
	if order.Status != OrderPending {
		return ErrInvalidTransition
	}

	order.Status = OrderCancelled
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	if err := e.settler.Apply(ledger.Leg{From: e.vault, To: order.Buyer, Amount: order.TotalPrice}); err != nil {
		order.Status = OrderPending
		if putErr := e.state.OrderPut(order); putErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, err, putErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	// Cancelled units go back on sale.
	if err := e.catalog.Restock(order.ProductID, order.Quantity); err != nil {
		return e.unwindCancel(order, err)
	}
	e.emit(NewOrderCancelledEvent(order))
	return nil
}

// unwindCancel takes back an already-applied refund after a restock failure so
// the caller observes no state change. The buyer still holds the refunded
// value while the engine mutex is held, so the re-debit cannot overdraw.
func (e *Engine) unwindCancel(order *Order, cause error) error {
	if err := e.settler.Apply(ledger.Leg{From: order.Buyer, To: e.vault, Amount: order.TotalPrice}); err != nil {
		return fmt.Errorf("escrow: restock: %v (refund rollback failed: %v)", cause, err)
	}
	order.Status = OrderPending
	if err := e.state.OrderPut(order); err != nil {
		return fmt.Errorf("escrow: restock: %v (status rollback failed: %v)", cause, err)
	}
	return fmt.Errorf("escrow: restock: %w", cause)
}

// GetOrder returns a copy of the order.
func (e *Engine) GetOrder(orderID uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	order, err := e.state.OrderGet(orderID)
	if err != nil {
		return nil, err
	}
	return order.Clone(), nil
}

// OrderStatus returns the current status of the order.
func (e *Engine) OrderStatus(orderID uint64) (OrderStatus, error) {
	order, err := e.GetOrder(orderID)
	if err != nil {
		return 0, err
	}
	return order.Status, nil
}

// OrdersByBuyer lists the order ids created by the buyer, oldest first.
func (e *Engine) OrdersByBuyer(addr [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.OrdersByBuyer(addr)
}

// OrdersBySeller lists the order ids addressed to the seller, oldest first.
func (e *Engine) OrdersBySeller(addr [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.OrdersBySeller(addr)
}

// OrderCount returns the number of persisted orders.
func (e *Engine) OrderCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.OrderCount()
}
