// Package oracle provides the price-feed boundary: the Feed contract, an
// in-memory latest-quote store, and the staleness guard that gates every
// valuation performed by the engine.
package oracle

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrUnknownFeed is returned when no quote has ever been observed for a feed.
	ErrUnknownFeed = errors.New("unknown price feed")

	// ErrStalePrice is returned when a quote is older than the staleness timeout.
	ErrStalePrice = errors.New("stale price")

	// ErrInvalidPrice is returned when a quote carries a non-positive price.
	ErrInvalidPrice = errors.New("invalid price")
)

// Quote is a single oracle observation: an 8-decimal fixed-point price and
// the moment the feed last updated it. Quotes are read fresh on every
// valuation and never cached across operations.
type Quote struct {
	Price     *big.Int
	UpdatedAt time.Time
}

// Feed is a read-only price source keyed by feed ID.
type Feed interface {
	LatestQuote(ctx context.Context, feedID string) (Quote, error)
}
