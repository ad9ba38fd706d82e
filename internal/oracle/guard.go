package oracle

import (
	"context"
	"fmt"
	"time"
)

// StaleTimeout is the maximum quote age the guard accepts. Quotes past it
// freeze every valuation-dependent operation for that token until the feed
// resumes — losing availability is preferred to solvency accounting on dead
// prices.
const StaleTimeout = 3 * time.Hour

// Guard wraps a Feed and rejects quotes that are stale or carry a
// non-positive price. Price magnitude is otherwise trusted verbatim; there
// is no jump-size circuit breaker.
type Guard struct {
	feed Feed
	now  func() time.Time
}

func NewGuard(feed Feed) *Guard {
	return &Guard{feed: feed, now: time.Now}
}

// NewGuardWithClock injects the clock. Tests use this to age quotes past the
// timeout without sleeping.
func NewGuardWithClock(feed Feed, now func() time.Time) *Guard {
	return &Guard{feed: feed, now: now}
}

// FreshQuote reads the latest quote for a feed and validates it.
func (g *Guard) FreshQuote(ctx context.Context, feedID string) (Quote, error) {
	q, err := g.feed.LatestQuote(ctx, feedID)
	if err != nil {
		return Quote{}, err
	}

	if q.Price == nil || q.Price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("feed %s: %w", feedID, ErrInvalidPrice)
	}

	if age := g.now().Sub(q.UpdatedAt); age > StaleTimeout {
		return Quote{}, fmt.Errorf("feed %s: quote is %s old: %w", feedID, age, ErrStalePrice)
	}

	return q, nil
}
