package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Store holds the latest quote per feed ID. The NATS price subscriber writes
// into it; the engine reads from it through the Guard. Reads return copies,
// so a stored quote is never mutated after the fact.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStore() *Store {
	return &Store{
		quotes: make(map[string]Quote),
	}
}

// Set records a new observation for a feed, replacing any previous one.
func (s *Store) Set(feedID string, price *big.Int, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[feedID] = Quote{
		Price:     new(big.Int).Set(price),
		UpdatedAt: updatedAt,
	}
}

// LatestQuote implements Feed.
func (s *Store) LatestQuote(_ context.Context, feedID string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[feedID]
	if !ok {
		return Quote{}, fmt.Errorf("feed %s: %w", feedID, ErrUnknownFeed)
	}
	return Quote{
		Price:     new(big.Int).Set(q.Price),
		UpdatedAt: q.UpdatedAt,
	}, nil
}
