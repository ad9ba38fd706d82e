package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"StableCore/internal/event"
	fpmath "StableCore/internal/math"
)

// Liquidate lets liquidator repay debtToCover of target's debt in exchange
// for the equivalent collateral in tok plus a bonus. The target must be
// below the minimum health factor before, and strictly healthier after;
// anything else unwinds the whole operation. The seizure never exceeds the
// target's recorded balance of tok: if the bonus-inflated amount does, the
// call fails and liquidators must cover a smaller slice of the debt.
func (e *Engine) Liquidate(ctx context.Context, liquidator uuid.UUID, tok string, target uuid.UUID, debtToCover *big.Int) error {
	return e.execute(ctx, "liquidate", func(ctx context.Context) error {
		if err := requirePositive(debtToCover); err != nil {
			return err
		}

		startHF, err := e.HealthFactor(ctx, target)
		if err != nil {
			return err
		}
		if startHF.Cmp(MinHealthFactor) >= 0 {
			return fmt.Errorf("target %s health factor %s: %w", target, startHF, ErrHealthFactorOk)
		}

		base, err := e.TokenAmountFromUsd(ctx, tok, debtToCover)
		if err != nil {
			return err
		}
		bonus := new(big.Int).Mul(base, big.NewInt(LiquidationBonus))
		bonus.Quo(bonus, big.NewInt(LiquidationPrecision))
		seize := new(big.Int).Add(base, bonus)

		tx := &opTx{}
		if err := e.redeemCollateral(ctx, tx, target, liquidator, tok, seize); err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if err := e.burnStable(ctx, tx, target, liquidator, debtToCover); err != nil {
			e.rollback(ctx, tx)
			return err
		}

		endHF, err := e.HealthFactor(ctx, target)
		if err != nil {
			e.rollback(ctx, tx)
			return err
		}
		if endHF.Cmp(startHF) <= 0 {
			e.rollback(ctx, tx)
			return fmt.Errorf("target %s health factor %s -> %s: %w", target, startHF, endHF, ErrHealthFactorNotImproved)
		}

		if err := e.assertHealthy(ctx, liquidator); err != nil {
			e.rollback(ctx, tx)
			return err
		}

		tx.record(&event.LiquidationExecuted{
			ID:               uuid.New(),
			Liquidator:       liquidator,
			Target:           target,
			Token:            tok,
			DebtCovered:      fpmath.Clone(debtToCover),
			CollateralSeized: fpmath.Clone(seize),
			Timestamp:        e.clock(),
		})
		e.commit(tx)
		if e.metrics != nil {
			e.metrics.Liquidations.Inc()
		}

		e.logger.Info().
			Str("liquidator", liquidator.String()).
			Str("target", target.String()).
			Str("token", tok).
			Str("debt_covered", debtToCover.String()).
			Str("collateral_seized", seize.String()).
			Str("health_factor_before", startHF.String()).
			Str("health_factor_after", endHF.String()).
			Msg("liquidation executed")
		return nil
	})
}
