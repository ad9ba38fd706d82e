package engine_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"StableCore/internal/engine"
	"StableCore/internal/event"
	"StableCore/internal/ledger"
	"StableCore/internal/oracle"
)

// setupUnderwater puts alice at 1 WETH collateral, 500 SUSD debt, then
// drops the price from $2000 to $800 so her health factor is 0.8. Bob is
// seeded with stable units to liquidate with.
func setupUnderwater(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.eng.DepositAndMint(ctx, env.alice, "WETH", wad(1), wad(500)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	env.store.Set("eth-usd", feedPrice(800), testTime)
	env.stable.Mint(ctx, env.bob, wad(500))
	env.drainRecords()

	return env
}

func TestLiquidate(t *testing.T) {
	env := setupUnderwater(t)
	ctx := context.Background()

	cover := wad(200)
	if err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, cover); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// The emitted record must not alias the caller's argument.
	cover.SetInt64(0)

	// $200 at $800 is 0.25 WETH, plus the 10% bonus: 0.275 seized.
	if got := env.eng.CollateralBalance(env.alice, "WETH"); got.Cmp(wadFrac(725, 1000)) != 0 {
		t.Errorf("target collateral = %s, want 0.725 WETH", got)
	}
	if got := env.weth.BalanceOf(env.bob); got.Cmp(new(big.Int).Add(wad(10), wadFrac(275, 1000))) != 0 {
		t.Errorf("liquidator WETH = %s, want 10.275", got)
	}
	if got := env.eng.Debt(env.alice); got.Cmp(wad(300)) != 0 {
		t.Errorf("target debt = %s, want 300", got)
	}
	if got := env.stable.BalanceOf(env.bob); got.Cmp(wad(300)) != 0 {
		t.Errorf("liquidator SUSD = %s, want 300", got)
	}
	// Alice's 500 minted plus bob's 500 seed, minus the 200 burned.
	if got := env.stable.TotalSupply(); got.Cmp(wad(800)) != 0 {
		t.Errorf("supply = %s, want 800", got)
	}

	// 0.725 WETH at $800 is $580, adjusted $290 against $300 of debt:
	// improved from 0.8 but still below the minimum — that is legal.
	hf, err := env.eng.HealthFactor(ctx, env.alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	want := wadFrac(290, 300)
	if hf.Cmp(want) != 0 {
		t.Errorf("target health factor = %s, want %s", hf, want)
	}

	recs := env.drainRecords()
	var liq *event.LiquidationExecuted
	for _, r := range recs {
		if l, ok := r.(*event.LiquidationExecuted); ok {
			liq = l
		}
	}
	if liq == nil {
		t.Fatalf("no LiquidationExecuted record in %d records", len(recs))
	}
	if liq.Liquidator != env.bob || liq.Target != env.alice || liq.Token != "WETH" {
		t.Errorf("unexpected record: %+v", liq)
	}
	if liq.DebtCovered.Cmp(wad(200)) != 0 || liq.CollateralSeized.Cmp(wadFrac(275, 1000)) != 0 {
		t.Errorf("record amounts: covered=%s seized=%s", liq.DebtCovered, liq.CollateralSeized)
	}
}

func TestLiquidate_HealthyTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.eng.DepositAndMint(ctx, env.alice, "WETH", wad(1), wad(500)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	env.stable.Mint(ctx, env.bob, wad(500))

	err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(100))
	if !errors.Is(err, engine.ErrHealthFactorOk) {
		t.Fatalf("got %v, want ErrHealthFactorOk", err)
	}
}

func TestLiquidate_ZeroDebtToCover(t *testing.T) {
	env := setupUnderwater(t)

	err := env.eng.Liquidate(context.Background(), env.bob, "WETH", env.alice, big.NewInt(0))
	if !errors.Is(err, engine.ErrNeedsMoreThanZero) {
		t.Fatalf("got %v, want ErrNeedsMoreThanZero", err)
	}
}

func TestLiquidate_StaleFeed(t *testing.T) {
	env := setupUnderwater(t)

	env.store.Set("eth-usd", feedPrice(800), testTime.Add(-oracle.StaleTimeout-time.Minute))

	err := env.eng.Liquidate(context.Background(), env.bob, "WETH", env.alice, wad(100))
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("got %v, want ErrStalePrice", err)
	}
}

// Covering too much debt on a deeply underwater position lowers the health
// factor instead of raising it; the whole liquidation must unwind.
func TestLiquidate_NotImprovedRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// $1000 of debt against 1 WETH that drops to $1000: collateral value
	// is below debt * (1 + bonus), so any seizure worsens the ratio.
	if err := env.eng.DepositAndMint(ctx, env.alice, "WETH", wad(1), wad(1000)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	env.store.Set("eth-usd", feedPrice(1000), testTime)
	env.stable.Mint(ctx, env.bob, wad(500))
	env.drainRecords()

	err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(200))
	if !errors.Is(err, engine.ErrHealthFactorNotImproved) {
		t.Fatalf("got %v, want ErrHealthFactorNotImproved", err)
	}

	if got := env.eng.CollateralBalance(env.alice, "WETH"); got.Cmp(wad(1)) != 0 {
		t.Errorf("target collateral not restored: %s", got)
	}
	if got := env.eng.Debt(env.alice); got.Cmp(wad(1000)) != 0 {
		t.Errorf("target debt not restored: %s", got)
	}
	if got := env.weth.BalanceOf(env.bob); got.Cmp(wad(10)) != 0 {
		t.Errorf("liquidator WETH not restored: %s", got)
	}
	if got := env.stable.BalanceOf(env.bob); got.Cmp(wad(500)) != 0 {
		t.Errorf("liquidator SUSD not restored: %s", got)
	}
	if got := env.stable.TotalSupply(); got.Cmp(wad(1500)) != 0 {
		t.Errorf("supply not restored: %s", got)
	}
	if len(env.drainRecords()) != 0 {
		t.Error("failed liquidation emitted records")
	}
}

// Seizing more than the target's recorded balance is not allowed: when
// base + bonus exceeds it the call fails outright instead of clamping, and
// nothing moves.
func TestLiquidate_SeizureBeyondBalanceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.eng.DepositAndMint(ctx, env.alice, "WETH", wad(1), wad(1000)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// Crash hard: 1 WETH is now worth $400 against $1000 of debt.
	env.store.Set("eth-usd", feedPrice(400), testTime)
	env.stable.Mint(ctx, env.bob, wad(1000))
	env.drainRecords()

	// Covering $500 of debt prices at 1.25 WETH + bonus = 1.375, past the
	// 1 WETH held.
	err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(500))
	if !errors.Is(err, ledger.ErrInsufficientCollateral) {
		t.Fatalf("got %v, want ErrInsufficientCollateral", err)
	}

	if got := env.eng.CollateralBalance(env.alice, "WETH"); got.Cmp(wad(1)) != 0 {
		t.Errorf("target collateral = %s, want 1", got)
	}
	if got := env.eng.Debt(env.alice); got.Cmp(wad(1000)) != 0 {
		t.Errorf("target debt = %s, want 1000", got)
	}
	if got := env.weth.BalanceOf(env.bob); got.Cmp(wad(10)) != 0 {
		t.Errorf("liquidator WETH = %s, want 10", got)
	}
	if got := env.stable.BalanceOf(env.bob); got.Cmp(wad(1000)) != 0 {
		t.Errorf("liquidator SUSD = %s, want 1000", got)
	}
	if len(env.drainRecords()) != 0 {
		t.Error("failed liquidation emitted records")
	}
}

// A liquidator whose own position is below the minimum cannot liquidate
// anyone, even when the target liquidation is otherwise valid.
func TestLiquidate_UnhealthyLiquidatorRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.eng.DepositAndMint(ctx, env.alice, "WETH", wad(1), wad(500)); err != nil {
		t.Fatalf("setup alice: %v", err)
	}
	if err := env.eng.DepositAndMint(ctx, env.bob, "WETH", wad(1), wad(500)); err != nil {
		t.Fatalf("setup bob: %v", err)
	}
	env.store.Set("eth-usd", feedPrice(800), testTime)
	env.drainRecords()

	err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(200))
	if !errors.Is(err, engine.ErrBreaksHealthFactor) {
		t.Fatalf("got %v, want ErrBreaksHealthFactor", err)
	}

	if got := env.eng.CollateralBalance(env.alice, "WETH"); got.Cmp(wad(1)) != 0 {
		t.Errorf("target collateral not restored: %s", got)
	}
	if got := env.eng.Debt(env.alice); got.Cmp(wad(500)) != 0 {
		t.Errorf("target debt not restored: %s", got)
	}
	if got := env.stable.BalanceOf(env.bob); got.Cmp(wad(500)) != 0 {
		t.Errorf("liquidator SUSD not restored: %s", got)
	}
}

// Two partial liquidations can work the same position down.
func TestLiquidate_SequentialPartials(t *testing.T) {
	env := setupUnderwater(t)
	ctx := context.Background()

	if err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(100)); err != nil {
		t.Fatalf("first liquidation: %v", err)
	}
	if err := env.eng.Liquidate(ctx, env.bob, "WETH", env.alice, wad(100)); err != nil {
		t.Fatalf("second liquidation: %v", err)
	}

	if got := env.eng.Debt(env.alice); got.Cmp(wad(300)) != 0 {
		t.Errorf("target debt = %s, want 300", got)
	}
	// Two seizures of 0.1375 WETH each.
	if got := env.eng.CollateralBalance(env.alice, "WETH"); got.Cmp(wadFrac(725, 1000)) != 0 {
		t.Errorf("target collateral = %s, want 0.725", got)
	}
}
