package catalog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/storage"
)

var (
	// ErrProductNotFound is returned when no listing exists for the id.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrNotSeller is returned when a caller other than the listing owner
	// attempts to manage it.
	ErrNotSeller = errors.New("catalog: caller is not the seller")
	// ErrInsufficientStock is returned by Reserve when the listing is
	// inactive or holds fewer units than requested.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

var (
	productPrefix = []byte("product:")
	productSeqKey = []byte("product:seq")
)

// Catalog owns the product table and the stock counters. Reserve is the only
// way stock decreases and Restock the only way it increases, both atomic under
// the catalog mutex so concurrent buyers cannot double-spend the last unit.
type Catalog struct {
	mu      sync.Mutex
	db      storage.Database
	emitter events.Emitter
}

// NewCatalog binds a catalog to the supplied key-value store.
func NewCatalog(db storage.Database) *Catalog {
	return &Catalog{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (c *Catalog) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func productKey(id uint64) []byte {
	key := append([]byte(nil), productPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(key, buf[:]...)
}

func (c *Catalog) loadProduct(id uint64) (*Product, error) {
	raw, err := c.db.Get(productKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	product := new(Product)
	if err := json.Unmarshal(raw, product); err != nil {
		return nil, fmt.Errorf("catalog: decode product: %w", err)
	}
	return product, nil
}

func (c *Catalog) storeProduct(product *Product) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("catalog: encode product: %w", err)
	}
	return c.db.Put(productKey(product.ID), raw)
}

func (c *Catalog) nextID() (uint64, error) {
	raw, err := c.db.Get(productSeqKey)
	next := uint64(1)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		next = binary.BigEndian.Uint64(raw) + 1
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := c.db.Put(productSeqKey, buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

// AddProduct persists a new active listing and returns its id. Product ids are
// assigned from a monotonic sequence owned by the catalog instance.
func (c *Catalog) AddProduct(seller [20]byte, price *big.Int, stock uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := SanitizeProduct(&Product{Seller: seller, Price: price, Stock: stock, Active: true})
	if err != nil {
		return 0, err
	}
	id, err := c.nextID()
	if err != nil {
		return 0, err
	}
	product.ID = id
	if err := c.storeProduct(product); err != nil {
		return 0, err
	}
	c.emit(NewListingCreatedEvent(product))
	return id, nil
}

// SetActive toggles a listing. Only the listing seller may call it.
func (c *Catalog) SetActive(caller [20]byte, id uint64, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return err
	}
	if product.Seller != caller {
		return ErrNotSeller
	}
	if product.Active == active {
		return nil
	}
	product.Active = active
	if err := c.storeProduct(product); err != nil {
		return err
	}
	c.emit(NewListingUpdatedEvent(product))
	return nil
}

// Get returns a copy of the listing.
func (c *Catalog) Get(id uint64) (*Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return nil, err
	}
	return product.Clone(), nil
}

// PricingAndOwner resolves the seller and unit price for the listing. The
// exists flag is false when the id is unknown; callers treat a zero seller the
// same way.
func (c *Catalog) PricingAndOwner(id uint64) (seller [20]byte, price *big.Int, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return [20]byte{}, nil, false
	}
	return product.Seller, new(big.Int).Set(product.Price), true
}

// IsAvailable reports whether the listing is active and holds at least the
// requested quantity.
func (c *Catalog) IsAvailable(id uint64, quantity uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return false
	}
	return product.Active && quantity > 0 && product.Stock >= quantity
}

// Reserve atomically checks availability and decrements stock. Exactly one of
// two concurrent reservations for the last unit succeeds.
func (c *Catalog) Reserve(id uint64, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return err
	}
	if !product.Active || quantity == 0 || product.Stock < quantity {
		return ErrInsufficientStock
	}
	product.Stock -= quantity
	return c.storeProduct(product)
}

// Restock returns previously reserved units to the listing. Used to
// compensate a failed purchase and to return stock from cancelled orders.
func (c *Catalog) Restock(id uint64, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, err := c.loadProduct(id)
	if err != nil {
		return err
	}
	product.Stock += quantity
	return c.storeProduct(product)
}

func (c *Catalog) emit(evt *types.Event) {
	if c == nil || c.emitter == nil || evt == nil {
		return
	}
	c.emitter.Emit(listingEvent{evt: evt})
}
