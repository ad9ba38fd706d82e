package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"StableCore/internal/event"
)

// Deposit pulls amount of tok from the account into protocol custody and
// credits the collateral ledger. Deposits only improve solvency, so no
// health check runs, but the operation is still reentrancy-guarded.
func (e *Engine) Deposit(ctx context.Context, account uuid.UUID, tok string, amount *big.Int) error {
	return e.execute(ctx, "deposit", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.depositCollateral(ctx, tx, account, tok, amount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// Mint records amount of new debt for the account, asserts the account
// stays healthy, then asks the stable-unit ledger to issue the units. Debt
// is recorded before the external mint so a refused mint leaves no
// dangling debt — the whole operation unwinds.
func (e *Engine) Mint(ctx context.Context, account uuid.UUID, amount *big.Int) error {
	return e.execute(ctx, "mint", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.mintStable(ctx, tx, account, amount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// DepositAndMint is the atomic composite of Deposit then Mint: either both
// take effect or neither does.
func (e *Engine) DepositAndMint(ctx context.Context, account uuid.UUID, tok string, amount, mintAmount *big.Int) error {
	return e.execute(ctx, "deposit_and_mint", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.depositCollateral(ctx, tx, account, tok, amount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.mintStable(ctx, tx, account, mintAmount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// Redeem debits the collateral ledger, pushes the tokens back to the
// account, then asserts the account is still healthy. The transfer runs
// before the check on purpose: collateral must actually leave custody
// before the invariant is re-evaluated, which is exactly why the
// reentrancy guard exists.
func (e *Engine) Redeem(ctx context.Context, account uuid.UUID, tok string, amount *big.Int) error {
	return e.execute(ctx, "redeem", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.redeemCollateral(ctx, tx, account, account, tok, amount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.assertHealthy(ctx, account); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// Burn retires amount of the account's debt by pulling stable units from
// the account and destroying them. Burning only improves solvency; the
// final health assertion is kept regardless.
func (e *Engine) Burn(ctx context.Context, account uuid.UUID, amount *big.Int) error {
	return e.execute(ctx, "burn", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.burnStable(ctx, tx, account, account, amount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.assertHealthy(ctx, account); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// RedeemForBurn is the atomic composite of Burn then Redeem with a single
// final health check.
func (e *Engine) RedeemForBurn(ctx context.Context, account uuid.UUID, tok string, collateralAmount, burnAmount *big.Int) error {
	return e.execute(ctx, "redeem_for_burn", func(ctx context.Context) error {
		tx := &opTx{}
		if err := e.burnStable(ctx, tx, account, account, burnAmount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.redeemCollateral(ctx, tx, account, account, tok, collateralAmount); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.assertHealthy(ctx, account); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		e.commit(tx)
		return nil
	})
}

// --- primitives shared by operations and liquidation --------------------
//
// Each primitive mutates, registers its compensation, and queues its
// record. Records only reach the outside world on commit.

func (e *Engine) depositCollateral(ctx context.Context, tx *opTx, account uuid.UUID, tok string, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	tokLedger, ok := e.tokens[tok]
	if !ok {
		return fmt.Errorf("token %s: %w", tok, ErrNotAllowedToken)
	}

	if err := e.collateral.Add(account, tok, amount); err != nil {
		return err
	}
	tx.onRollback(func(context.Context) error {
		return e.collateral.Sub(account, tok, amount)
	})

	tx.record(&event.CollateralDeposited{
		ID:        uuid.New(),
		Account:   account,
		Token:     tok,
		Amount:    amount,
		Timestamp: e.clock(),
	})

	if err := tokLedger.Transfer(ctx, account, e.custody, amount); err != nil {
		return fmt.Errorf("pull %s from %s: %v: %w", tok, account, err, ErrTransferFailed)
	}
	tx.onRollback(func(ctx context.Context) error {
		return tokLedger.Transfer(ctx, e.custody, account, amount)
	})

	return nil
}

func (e *Engine) mintStable(ctx context.Context, tx *opTx, account uuid.UUID, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	if err := e.debt.Add(account, amount); err != nil {
		return err
	}
	tx.onRollback(func(context.Context) error {
		return e.debt.Sub(account, amount)
	})

	if err := e.assertHealthy(ctx, account); err != nil {
		return err
	}

	if err := e.stable.Mint(ctx, account, amount); err != nil {
		return fmt.Errorf("mint %s to %s: %v: %w", e.stable.Symbol(), account, err, ErrMintFailed)
	}
	tx.onRollback(func(ctx context.Context) error {
		return e.stable.Burn(ctx, account, amount)
	})

	tx.record(&event.StableMinted{
		ID:        uuid.New(),
		Account:   account,
		Amount:    amount,
		Timestamp: e.clock(),
	})

	return nil
}

// redeemCollateral moves collateral out of custody: ledger debit first
// (failing if the recorded balance is insufficient), external push second.
// During liquidation, from is the target and to is the liquidator.
func (e *Engine) redeemCollateral(ctx context.Context, tx *opTx, from, to uuid.UUID, tok string, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	tokLedger, ok := e.tokens[tok]
	if !ok {
		return fmt.Errorf("token %s: %w", tok, ErrNotAllowedToken)
	}

	if err := e.collateral.Sub(from, tok, amount); err != nil {
		return err
	}
	tx.onRollback(func(context.Context) error {
		return e.collateral.Add(from, tok, amount)
	})

	tx.record(&event.CollateralRedeemed{
		ID:         uuid.New(),
		Account:    from,
		RedeemedTo: to,
		Token:      tok,
		Amount:     amount,
		Timestamp:  e.clock(),
	})

	if err := tokLedger.Transfer(ctx, e.custody, to, amount); err != nil {
		return fmt.Errorf("push %s to %s: %v: %w", tok, to, err, ErrTransferFailed)
	}
	tx.onRollback(func(ctx context.Context) error {
		return tokLedger.Transfer(ctx, to, e.custody, amount)
	})

	return nil
}

// burnStable retires onBehalfOf's debt, funded by pulling stable units
// from paidBy into custody and destroying them.
func (e *Engine) burnStable(ctx context.Context, tx *opTx, onBehalfOf, paidBy uuid.UUID, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	if err := e.debt.Sub(onBehalfOf, amount); err != nil {
		return err
	}
	tx.onRollback(func(context.Context) error {
		return e.debt.Add(onBehalfOf, amount)
	})

	if err := e.stable.Transfer(ctx, paidBy, e.custody, amount); err != nil {
		return fmt.Errorf("pull %s from %s: %v: %w", e.stable.Symbol(), paidBy, err, ErrTransferFailed)
	}
	tx.onRollback(func(ctx context.Context) error {
		return e.stable.Transfer(ctx, e.custody, paidBy, amount)
	})

	if err := e.stable.Burn(ctx, e.custody, amount); err != nil {
		return fmt.Errorf("burn %s: %v: %w", e.stable.Symbol(), err, ErrTransferFailed)
	}
	tx.onRollback(func(ctx context.Context) error {
		return e.stable.Mint(ctx, e.custody, amount)
	})

	tx.record(&event.StableBurned{
		ID:        uuid.New(),
		Account:   onBehalfOf,
		PaidBy:    paidBy,
		Amount:    amount,
		Timestamp: e.clock(),
	})

	return nil
}
