package oracle_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"StableCore/internal/oracle"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestStore_UnknownFeed(t *testing.T) {
	store := oracle.NewStore()
	_, err := store.LatestQuote(context.Background(), "eth-usd")
	if !errors.Is(err, oracle.ErrUnknownFeed) {
		t.Fatalf("got %v, want ErrUnknownFeed", err)
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	store := oracle.NewStore()
	store.Set("eth-usd", big.NewInt(100_00000000), testTime.Add(-time.Minute))
	store.Set("eth-usd", big.NewInt(200_00000000), testTime)

	q, err := store.LatestQuote(context.Background(), "eth-usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price.Cmp(big.NewInt(200_00000000)) != 0 {
		t.Errorf("got price %s, want 20000000000", q.Price)
	}
	if !q.UpdatedAt.Equal(testTime) {
		t.Errorf("got timestamp %s, want %s", q.UpdatedAt, testTime)
	}
}

func TestStore_QuoteIsCopied(t *testing.T) {
	store := oracle.NewStore()
	price := big.NewInt(100_00000000)
	store.Set("eth-usd", price, testTime)
	price.SetInt64(1)

	q, _ := store.LatestQuote(context.Background(), "eth-usd")
	if q.Price.Cmp(big.NewInt(100_00000000)) != 0 {
		t.Error("store aliased the caller's price")
	}

	q.Price.SetInt64(2)
	q2, _ := store.LatestQuote(context.Background(), "eth-usd")
	if q2.Price.Cmp(big.NewInt(100_00000000)) != 0 {
		t.Error("store handed out an aliased price")
	}
}

func TestGuard_FreshQuote(t *testing.T) {
	store := oracle.NewStore()
	store.Set("eth-usd", big.NewInt(2000_00000000), testTime.Add(-time.Hour))
	guard := oracle.NewGuardWithClock(store, fixedClock(testTime))

	q, err := guard.FreshQuote(context.Background(), "eth-usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price.Cmp(big.NewInt(2000_00000000)) != 0 {
		t.Errorf("got price %s, want 200000000000", q.Price)
	}
}

func TestGuard_ExactlyAtTimeoutIsFresh(t *testing.T) {
	store := oracle.NewStore()
	store.Set("eth-usd", big.NewInt(2000_00000000), testTime.Add(-oracle.StaleTimeout))
	guard := oracle.NewGuardWithClock(store, fixedClock(testTime))

	if _, err := guard.FreshQuote(context.Background(), "eth-usd"); err != nil {
		t.Fatalf("age == timeout should be accepted, got %v", err)
	}
}

func TestGuard_StalePrice(t *testing.T) {
	store := oracle.NewStore()
	store.Set("eth-usd", big.NewInt(2000_00000000), testTime.Add(-oracle.StaleTimeout-time.Second))
	guard := oracle.NewGuardWithClock(store, fixedClock(testTime))

	_, err := guard.FreshQuote(context.Background(), "eth-usd")
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("got %v, want ErrStalePrice", err)
	}
}

func TestGuard_NonPositivePrice(t *testing.T) {
	for _, price := range []*big.Int{big.NewInt(0), big.NewInt(-5)} {
		store := oracle.NewStore()
		store.Set("eth-usd", price, testTime)
		guard := oracle.NewGuardWithClock(store, fixedClock(testTime))

		_, err := guard.FreshQuote(context.Background(), "eth-usd")
		if !errors.Is(err, oracle.ErrInvalidPrice) {
			t.Fatalf("price %s: got %v, want ErrInvalidPrice", price, err)
		}
	}
}

func TestGuard_PropagatesFeedError(t *testing.T) {
	store := oracle.NewStore()
	guard := oracle.NewGuardWithClock(store, fixedClock(testTime))

	_, err := guard.FreshQuote(context.Background(), "nope")
	if !errors.Is(err, oracle.ErrUnknownFeed) {
		t.Fatalf("got %v, want ErrUnknownFeed", err)
	}
}
