package ledger

import (
	"errors"
	"math/big"
	"testing"

	"bazaar/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func balance(t *testing.T, l *Ledger, a [20]byte) int64 {
	t.Helper()
	b, err := l.Balance(a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.Int64()
}

func TestUnknownAccountIsZero(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	account, err := l.GetAccount(addr(0x01))
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Sign() != 0 || account.Nonce != 0 {
		t.Fatalf("expected zero account, got %+v", account)
	}
}

func TestMint(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	a := addr(0x01)
	if err := l.Mint(a, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Mint(a, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := balance(t, l, a); got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
	if err := l.Mint(a, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Mint(a, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	from, to := addr(0x01), addr(0x02)
	if err := l.Mint(from, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(from, to, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, l, from); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
	if got := balance(t, l, to); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if err := l.Transfer(from, to, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := balance(t, l, from); got != 40 {
		t.Fatalf("failed transfer moved value: %d", got)
	}
}

func TestApplyBatchAtomicity(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	vault, seller, platform := addr(0x01), addr(0x02), addr(0x03)
	if err := l.Mint(vault, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// The second leg overdraws; the first must not stick.
	err := l.Apply(
		Leg{From: vault, To: seller, Amount: big.NewInt(95)},
		Leg{From: vault, To: platform, Amount: big.NewInt(10)},
	)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := balance(t, l, vault); got != 100 {
		t.Fatalf("expected vault untouched, got %d", got)
	}
	if got := balance(t, l, seller); got != 0 {
		t.Fatalf("expected seller untouched, got %d", got)
	}

	if err := l.Apply(
		Leg{From: vault, To: seller, Amount: big.NewInt(95)},
		Leg{From: vault, To: platform, Amount: big.NewInt(5)},
	); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := balance(t, l, vault); got != 0 {
		t.Fatalf("expected vault drained, got %d", got)
	}
	if got := balance(t, l, seller); got != 95 {
		t.Fatalf("expected seller 95, got %d", got)
	}
	if got := balance(t, l, platform); got != 5 {
		t.Fatalf("expected platform 5, got %d", got)
	}
}

func TestApplySkipsZeroLegs(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	from, to := addr(0x01), addr(0x02)
	if err := l.Mint(from, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Apply(
		Leg{From: from, To: to, Amount: big.NewInt(10)},
		Leg{From: from, To: to, Amount: big.NewInt(0)},
	); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := balance(t, l, to); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestApplyChainsIntermediateBalances(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	a, b, c := addr(0x01), addr(0x02), addr(0x03)
	if err := l.Mint(a, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// b has nothing until the first leg lands; the batch stages both.
	if err := l.Apply(
		Leg{From: a, To: b, Amount: big.NewInt(10)},
		Leg{From: b, To: c, Amount: big.NewInt(10)},
	); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := balance(t, l, c); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := balance(t, l, b); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
