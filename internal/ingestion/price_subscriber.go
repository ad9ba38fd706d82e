package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"StableCore/internal/oracle"
)

// PriceSubscriber consumes oracle quotes from JetStream and keeps the
// in-memory price store current. Quotes are last-write-wins per feed, so
// a malformed message is acked and dropped rather than redelivered — the
// next good quote supersedes it anyway.
type PriceSubscriber struct {
	js        jetstream.JetStream
	store     *oracle.Store
	consumers []jetstream.ConsumeContext
}

func NewPriceSubscriber(js jetstream.JetStream, store *oracle.Store) *PriceSubscriber {
	return &PriceSubscriber{js: js, store: store}
}

// Subscribe creates a durable consumer over all price subjects and starts
// consuming. Explicit ACK, max_deliver=5, ack_wait=30s.
func (ps *PriceSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ps.js.CreateOrUpdateConsumer(ctx, PriceStreamName, jetstream.ConsumerConfig{
		Durable:       "stablecore-prices",
		FilterSubject: PriceSubjectRoot + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer stablecore-prices: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		update, err := ParsePriceUpdate(msg.Subject(), msg.Data())
		if err != nil {
			log.Printf("WARN: dropping bad price update on %s: %v", msg.Subject(), err)
			msg.Ack()
			return
		}

		ps.store.Set(update.FeedID, update.Price, update.Timestamp)
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume stablecore-prices: %w", err)
	}

	ps.consumers = append(ps.consumers, consumerContext)
	log.Printf("INFO: subscribed to %s.> (consumer=stablecore-prices)", PriceSubjectRoot)
	return nil
}

// Stop drains all consumers.
func (ps *PriceSubscriber) Stop() {
	for _, c := range ps.consumers {
		c.Stop()
	}
}
