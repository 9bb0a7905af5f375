package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"bazaar/core/types"
	"bazaar/storage"
)

var (
	// ErrInsufficientBalance is returned when a transfer leg would drive the
	// source account negative.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be non-negative")
)

var accountPrefix = []byte("acct:")

// Leg is a single value movement inside a staged batch.
type Leg struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// Ledger owns the account table. All balance mutations go through Transfer or
// Apply so a batch is observed either fully applied or not at all.
type Ledger struct {
	mu sync.Mutex
	db storage.Database
}

// NewLedger binds a ledger to the supplied key-value store.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func (l *Ledger) loadAccount(addr [20]byte) (*types.Account, error) {
	raw, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("ledger: decode account: %w", err)
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

func (l *Ledger) storeAccount(addr [20]byte, account *types.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("ledger: encode account: %w", err)
	}
	return l.db.Put(accountKey(addr), raw)
}

// GetAccount returns a copy of the account for the address. Unknown addresses
// resolve to a zero-balance account.
func (l *Ledger) GetAccount(addr [20]byte) (*types.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Balance is a convenience accessor for the account balance.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	account, err := l.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// Mint credits freshly issued value to the address. Used for genesis funding
// and the dev faucet; production deployments gate it behind the authority.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	account, err := l.loadAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return l.storeAccount(addr, account)
}

// Transfer moves amount from one account to another as a single-leg batch.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	return l.Apply(Leg{From: from, To: to, Amount: amount})
}

// Apply stages every leg against cloned accounts and persists the result only
// if all legs succeed. A failing leg leaves every balance untouched, which is
// what lets the escrow engine treat a split payout as one disbursement.
func (l *Ledger) Apply(legs ...Leg) error {
	if len(legs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[[20]byte]*types.Account)
	load := func(addr [20]byte) (*types.Account, error) {
		if account, ok := staged[addr]; ok {
			return account, nil
		}
		account, err := l.loadAccount(addr)
		if err != nil {
			return nil, err
		}
		staged[addr] = account
		return account, nil
	}

	for _, leg := range legs {
		if leg.Amount == nil || leg.Amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		if leg.Amount.Sign() == 0 {
			continue
		}
		from, err := load(leg.From)
		if err != nil {
			return err
		}
		to, err := load(leg.To)
		if err != nil {
			return err
		}
		if from.Balance.Cmp(leg.Amount) < 0 {
			return ErrInsufficientBalance
		}
		from.Balance = new(big.Int).Sub(from.Balance, leg.Amount)
		to.Balance = new(big.Int).Add(to.Balance, leg.Amount)
	}

	for addr, account := range staged {
		if err := l.storeAccount(addr, account); err != nil {
			return err
		}
	}
	return nil
}
