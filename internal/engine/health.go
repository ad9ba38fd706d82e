package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	fpmath "StableCore/internal/math"
)

// HealthFactor returns the account's solvency ratio at the wad scale:
// haircut-adjusted collateral value divided by total debt. An account with
// zero debt gets InfiniteHealthFactor — it can never be
// under-collateralized, so the undefined division is defined away as
// always-healthy rather than failed.
func (e *Engine) HealthFactor(ctx context.Context, account uuid.UUID) (*big.Int, error) {
	debt := e.debt.Debt(account)
	if debt.Sign() == 0 {
		return new(big.Int).Set(InfiniteHealthFactor), nil
	}

	value, err := e.AccountCollateralValue(ctx, account)
	if err != nil {
		return nil, err
	}

	adjusted := fpmath.MulDiv(value, big.NewInt(LiquidationThreshold), big.NewInt(LiquidationPrecision))
	return fpmath.WadDiv(adjusted, debt), nil
}

// assertHealthy fails with ErrBreaksHealthFactor if the account sits below
// the minimum. Every state-changing operation calls this after mutating,
// never before: a failure here unwinds the whole operation, external
// transfers included.
func (e *Engine) assertHealthy(ctx context.Context, account uuid.UUID) error {
	hf, err := e.HealthFactor(ctx, account)
	if err != nil {
		return err
	}

	if hf.Cmp(MinHealthFactor) < 0 {
		return fmt.Errorf("account %s health factor %s below minimum: %w",
			account, hf, ErrBreaksHealthFactor)
	}
	return nil
}
