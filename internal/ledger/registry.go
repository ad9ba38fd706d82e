// Package ledger holds the engine-owned state: the collateral registry, the
// per-(account, token) collateral ledger, and the per-account debt ledger.
// No other component mutates these; the engine threads them through as
// explicit handles.
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMismatch is returned when the construction-time token and
	// feed lists differ in length.
	ErrConfigMismatch = errors.New("collateral token and price feed lists differ in length")

	// ErrDuplicateToken is returned when a token appears twice in the
	// construction lists.
	ErrDuplicateToken = errors.New("duplicate collateral token")
)

// Registry is the immutable set of accepted collateral tokens, each mapped
// to exactly one price feed. It is validated once at construction and never
// mutated afterwards.
type Registry struct {
	feeds map[string]string
	order []string
}

// NewRegistry builds a registry from ordered, same-length token and feed
// lists. Every entry must carry a non-empty feed ID.
func NewRegistry(tokens, feeds []string) (*Registry, error) {
	if len(tokens) != len(feeds) {
		return nil, fmt.Errorf("%d tokens vs %d feeds: %w", len(tokens), len(feeds), ErrConfigMismatch)
	}

	r := &Registry{
		feeds: make(map[string]string, len(tokens)),
		order: make([]string, 0, len(tokens)),
	}

	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("empty token symbol at index %d", i)
		}
		if feeds[i] == "" {
			return nil, fmt.Errorf("token %s has no price feed", tok)
		}
		if _, dup := r.feeds[tok]; dup {
			return nil, fmt.Errorf("token %s: %w", tok, ErrDuplicateToken)
		}
		r.feeds[tok] = feeds[i]
		r.order = append(r.order, tok)
	}

	return r, nil
}

// FeedFor returns the price feed for a registered token.
func (r *Registry) FeedFor(token string) (string, bool) {
	feed, ok := r.feeds[token]
	return feed, ok
}

// IsRegistered reports whether the token is accepted as collateral.
func (r *Registry) IsRegistered(token string) bool {
	_, ok := r.feeds[token]
	return ok
}

// Tokens returns the accepted tokens in registration order.
func (r *Registry) Tokens() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
