package escrow

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"bazaar/storage"
)

var (
	orderPrefix       = []byte("order:")
	orderSeqKey       = []byte("order:seq")
	orderCountKey     = []byte("order:count")
	buyerIndexPrefix  = []byte("orders:buyer:")
	sellerIndexPrefix = []byte("orders:seller:")
)

// Store is the production engineState backed by a key-value database. Orders
// are an append-only history: records are written, never deleted, and the
// buyer/seller indexes only grow.
type Store struct {
	db storage.Database
}

// NewStore binds an order store to the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func orderKey(id uint64) []byte {
	key := append([]byte(nil), orderPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(key, buf[:]...)
}

func indexKey(prefix []byte, addr [20]byte) []byte {
	return append(append([]byte(nil), prefix...), addr[:]...)
}

// OrderPut validates and persists the order. The first write of an id also
// advances the order count; updates do not.
func (s *Store) OrderPut(o *Order) error {
	sanitized, err := SanitizeOrder(o)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("escrow: encode order: %w", err)
	}
	key := orderKey(sanitized.ID)
	exists, err := s.db.Has(key)
	if err != nil {
		return err
	}
	if err := s.db.Put(key, raw); err != nil {
		return err
	}
	if !exists {
		return s.incrementCount()
	}
	return nil
}

// OrderGet loads a copy of the order. Absence surfaces as ErrOrderNotFound so
// callers can tell a missing order from a failing backend.
func (s *Store) OrderGet(id uint64) (*Order, error) {
	raw, err := s.db.Get(orderKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	order := new(Order)
	if err := json.Unmarshal(raw, order); err != nil {
		return nil, fmt.Errorf("escrow: decode order: %w", err)
	}
	return order, nil
}

// NextOrderID advances and returns the monotonic order sequence.
func (s *Store) NextOrderID() (uint64, error) {
	raw, err := s.db.Get(orderSeqKey)
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
	if err := s.db.Put(orderSeqKey, buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

// OrderCount returns the number of persisted orders. It is tracked separately
// from the id sequence: an id handed out for a purchase that failed to persist
// leaves a gap in the sequence but does not count as an order.
func (s *Store) OrderCount() (uint64, error) {
	raw, err := s.db.Get(orderCountKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store) incrementCount() error {
	count, err := s.OrderCount()
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count+1)
	return s.db.Put(orderCountKey, buf[:])
}

// OrderIndexAppend records the order id under both party indexes.
func (s *Store) OrderIndexAppend(buyer, seller [20]byte, id uint64) error {
	if err := s.appendIndex(indexKey(buyerIndexPrefix, buyer), id); err != nil {
		return err
	}
	return s.appendIndex(indexKey(sellerIndexPrefix, seller), id)
}

func (s *Store) appendIndex(key []byte, id uint64) error {
	ids, err := s.readIndex(key)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("escrow: encode index: %w", err)
	}
	return s.db.Put(key, raw)
}

func (s *Store) readIndex(key []byte) ([]uint64, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("escrow: decode index: %w", err)
	}
	return ids, nil
}

// OrdersByBuyer lists order ids created by the buyer, oldest first.
func (s *Store) OrdersByBuyer(addr [20]byte) ([]uint64, error) {
	return s.readIndex(indexKey(buyerIndexPrefix, addr))
}

// OrdersBySeller lists order ids addressed to the seller, oldest first.
func (s *Store) OrdersBySeller(addr [20]byte) ([]uint64, error) {
	return s.readIndex(indexKey(sellerIndexPrefix, addr))
}
