package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientCollateral is returned when a decrement would take a
	// collateral balance negative. The balance is left unchanged.
	ErrInsufficientCollateral = errors.New("insufficient collateral balance")

	// ErrInsufficientDebt is returned when a decrement would take a debt
	// balance negative. The balance is left unchanged.
	ErrInsufficientDebt = errors.New("insufficient debt balance")

	// ErrNonPositiveAmount guards the ledgers against zero or negative
	// deltas slipping past the operation-level checks.
	ErrNonPositiveAmount = errors.New("ledger amount must be positive")
)

// CollateralKey addresses one (account, token) balance.
type CollateralKey struct {
	Account uuid.UUID
	Token   string
}

// CollateralLedger maps (account, token) to a non-negative deposited amount.
// Balances only increase via deposit and only decrease via redemption or
// liquidation seizure; a decrement past the balance fails without mutating.
type CollateralLedger struct {
	mu       sync.RWMutex
	balances map[CollateralKey]*big.Int
}

func NewCollateralLedger() *CollateralLedger {
	return &CollateralLedger{
		balances: make(map[CollateralKey]*big.Int),
	}
}

// Add credits amount to the (account, token) balance.
func (cl *CollateralLedger) Add(account uuid.UUID, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	key := CollateralKey{Account: account, Token: token}
	b, ok := cl.balances[key]
	if !ok {
		b = new(big.Int)
		cl.balances[key] = b
	}
	b.Add(b, amount)
	return nil
}

// Sub debits amount from the (account, token) balance, failing if the
// recorded balance is smaller.
func (cl *CollateralLedger) Sub(account uuid.UUID, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	key := CollateralKey{Account: account, Token: token}
	b, ok := cl.balances[key]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("account %s token %s: %w", account, token, ErrInsufficientCollateral)
	}
	b.Sub(b, amount)
	return nil
}

// Balance returns a copy of the (account, token) balance, zero if absent.
func (cl *CollateralLedger) Balance(account uuid.UUID, token string) *big.Int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	if b, ok := cl.balances[CollateralKey{Account: account, Token: token}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// DebtLedger maps account to outstanding stable-unit debt. Debt increases
// only via mint and decreases only via burn, including burn-on-behalf
// during liquidation.
type DebtLedger struct {
	mu    sync.RWMutex
	debts map[uuid.UUID]*big.Int
}

func NewDebtLedger() *DebtLedger {
	return &DebtLedger{
		debts: make(map[uuid.UUID]*big.Int),
	}
}

func (dl *DebtLedger) Add(account uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	b, ok := dl.debts[account]
	if !ok {
		b = new(big.Int)
		dl.debts[account] = b
	}
	b.Add(b, amount)
	return nil
}

func (dl *DebtLedger) Sub(account uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	b, ok := dl.debts[account]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("account %s: %w", account, ErrInsufficientDebt)
	}
	b.Sub(b, amount)
	return nil
}

// Debt returns a copy of the account's outstanding debt, zero if absent.
func (dl *DebtLedger) Debt(account uuid.UUID) *big.Int {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	if b, ok := dl.debts[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}
