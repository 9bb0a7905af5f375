package catalog

import (
	"fmt"
	"math/big"
)

// Product is a single marketplace listing. Stock is only ever mutated through
// Reserve and Restock so it can never be observed negative.
type Product struct {
	ID     uint64   `json:"id"`
	Seller [20]byte `json:"seller"`
	Price  *big.Int `json:"price"`
	Stock  uint64   `json:"stock"`
	Active bool     `json:"active"`
}

// Clone returns a deep copy of the product so callers can safely mutate the
// copy without affecting the stored instance.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeProduct validates the supplied listing and returns a cloned instance
// with a non-nil price. The original value is not mutated.
func SanitizeProduct(p *Product) (*Product, error) {
	if p == nil {
		return nil, fmt.Errorf("catalog: nil product")
	}
	clone := p.Clone()
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("catalog: seller required")
	}
	if clone.Price == nil || clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("catalog: price must be positive")
	}
	return clone, nil
}
