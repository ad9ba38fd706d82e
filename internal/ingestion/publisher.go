package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go/jetstream"

	"StableCore/internal/event"
)

// RecordPublisher publishes committed operation records to NATS for
// downstream consumers. The engine's publish channel is best-effort: a
// full channel means the record is dropped here but still persisted, so
// consumers that need completeness read the record log instead.
// Subjects follow the pattern stablecore.records.{kind}.
type RecordPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Record
}

func NewRecordPublisher(js jetstream.JetStream, inputChan <-chan event.Record) *RecordPublisher {
	return &RecordPublisher{js: js, inputChan: inputChan}
}

// Run starts the publisher loop. Blocks until ctx is cancelled or the
// channel closes.
func (rp *RecordPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-rp.inputChan:
			if !ok {
				return nil
			}

			if err := rp.publish(ctx, rec); err != nil {
				log.Printf("WARN: outbound publish failed record=%s: %v", rec.RecordID(), err)
				// Non-fatal: the record log in Postgres is the source of truth
			}
		}
	}
}

func (rp *RecordPublisher) publish(ctx context.Context, rec event.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", RecordSubjectRoot, rec.RecordKind())
	_, err = rp.js.Publish(ctx, subject, data)
	return err
}
