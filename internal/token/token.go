// Package token defines the engine's view of the external fungible-token
// ledgers it collaborates with, plus in-memory reference implementations
// used by the local deployment and the test suite.
package token

import (
	"context"
	"errors"
	"math/big"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds is returned when a transfer or burn exceeds the
	// holder's balance.
	ErrInsufficientFunds = errors.New("insufficient token balance")

	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("token amount must be positive")
)

// Ledger is an external fungible-token ledger. The real asset contracts
// report success through booleans; implementations translate a false return
// into a non-nil error so the engine can treat both failure modes
// identically.
type Ledger interface {
	Symbol() string
	Transfer(ctx context.Context, from, to uuid.UUID, amount *big.Int) error
	BalanceOf(account uuid.UUID) *big.Int
}

// StableUnit is the synthetic-dollar ledger. The engine is its sole
// authorized minter and burner.
type StableUnit interface {
	Ledger
	Mint(ctx context.Context, to uuid.UUID, amount *big.Int) error
	Burn(ctx context.Context, from uuid.UUID, amount *big.Int) error
}
