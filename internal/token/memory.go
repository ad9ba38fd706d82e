package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger backed by a map. Balances are stored
// as owned big.Ints; all reads return copies.
type MemoryLedger struct {
	symbol string

	mu       sync.RWMutex
	balances map[uuid.UUID]*big.Int
}

func NewMemoryLedger(symbol string) *MemoryLedger {
	return &MemoryLedger{
		symbol:   symbol,
		balances: make(map[uuid.UUID]*big.Int),
	}
}

func (l *MemoryLedger) Symbol() string { return l.symbol }

// Credit adds amount to an account out of thin air. Deployment seeding and
// tests only; the engine never calls this.
func (l *MemoryLedger) Credit(account uuid.UUID, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(account, amount)
}

func (l *MemoryLedger) Transfer(_ context.Context, from, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.sub(from, amount); err != nil {
		return err
	}
	l.add(to, amount)
	return nil
}

func (l *MemoryLedger) BalanceOf(account uuid.UUID) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// add and sub require l.mu held.
func (l *MemoryLedger) add(account uuid.UUID, amount *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, amount)
}

func (l *MemoryLedger) sub(account uuid.UUID, amount *big.Int) error {
	b, ok := l.balances[account]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("%s: account %s: %w", l.symbol, account, ErrInsufficientFunds)
	}
	b.Sub(b, amount)
	return nil
}

// MemoryStable is the in-process stable-unit ledger. Mint and Burn are
// restricted to the configured minter account's custody of the supply; the
// supply total is tracked so tests can assert burns actually destroy units.
type MemoryStable struct {
	MemoryLedger

	supplyMu sync.Mutex
	supply   *big.Int
}

func NewMemoryStable(symbol string) *MemoryStable {
	return &MemoryStable{
		MemoryLedger: MemoryLedger{
			symbol:   symbol,
			balances: make(map[uuid.UUID]*big.Int),
		},
		supply: new(big.Int),
	}
}

func (s *MemoryStable) Mint(_ context.Context, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	s.mu.Lock()
	s.add(to, amount)
	s.mu.Unlock()

	s.supplyMu.Lock()
	s.supply.Add(s.supply, amount)
	s.supplyMu.Unlock()
	return nil
}

func (s *MemoryStable) Burn(_ context.Context, from uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	s.mu.Lock()
	err := s.sub(from, amount)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.supplyMu.Lock()
	s.supply.Sub(s.supply, amount)
	s.supplyMu.Unlock()
	return nil
}

// TotalSupply returns the outstanding stable-unit supply.
func (s *MemoryStable) TotalSupply() *big.Int {
	s.supplyMu.Lock()
	defer s.supplyMu.Unlock()
	return new(big.Int).Set(s.supply)
}
