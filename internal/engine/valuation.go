package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	fpmath "StableCore/internal/math"
)

// priceWad reads a guarded quote for a registered token and extends it to
// the wad scale. The guard already rejects non-positive prices, so the
// returned price is safe to divide by.
func (e *Engine) priceWad(ctx context.Context, tok string) (*big.Int, error) {
	feedID, ok := e.registry.FeedFor(tok)
	if !ok {
		return nil, fmt.Errorf("token %s: %w", tok, ErrNotAllowedToken)
	}

	q, err := e.prices.FreshQuote(ctx, feedID)
	if err != nil {
		return nil, err
	}

	return new(big.Int).Mul(q.Price, fpmath.FeedToWad), nil
}

// UsdValue converts a wad-scale token amount to its wad-scale USD value.
// Side-effect-free; fails only on unregistered tokens or unusable quotes.
func (e *Engine) UsdValue(ctx context.Context, tok string, amount *big.Int) (*big.Int, error) {
	price, err := e.priceWad(ctx, tok)
	if err != nil {
		return nil, err
	}
	return fpmath.WadMul(price, amount), nil
}

// TokenAmountFromUsd converts a wad-scale USD value to the equivalent
// wad-scale token amount at the current guarded price.
func (e *Engine) TokenAmountFromUsd(ctx context.Context, tok string, usd *big.Int) (*big.Int, error) {
	price, err := e.priceWad(ctx, tok)
	if err != nil {
		return nil, err
	}
	return fpmath.WadDiv(usd, price), nil
}

// AccountCollateralValue sums the USD value of every registered token the
// account has deposited. Zero balances contribute zero without touching
// the oracle, so one dead feed only freezes accounts actually holding that
// token.
func (e *Engine) AccountCollateralValue(ctx context.Context, account uuid.UUID) (*big.Int, error) {
	total := new(big.Int)

	for _, tok := range e.registry.Tokens() {
		balance := e.collateral.Balance(account, tok)
		if balance.Sign() == 0 {
			continue
		}

		value, err := e.UsdValue(ctx, tok, balance)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}

	return total, nil
}
