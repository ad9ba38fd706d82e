package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Stream and subject layout. Inbound oracle quotes arrive on
// oracle.prices.{feed_id}; committed operation records go out on
// stablecore.records.{kind}.
const (
	PriceStreamName  = "ORACLE_PRICES"
	PriceSubjectRoot = "oracle.prices"

	RecordStreamName  = "STABLE_RECORDS"
	RecordSubjectRoot = "stablecore.records"
)

// ConnectNATS establishes a NATS connection with infinite reconnects and
// returns the JetStream handle.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// EnsureStreams creates the inbound price stream if it doesn't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      PriceStreamName,
		Subjects:  []string{PriceSubjectRoot + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", PriceStreamName, err)
	}
	log.Printf("INFO: ensured stream %s", PriceStreamName)
	return nil
}

// EnsureRecordStream creates the outbound record stream.
func EnsureRecordStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      RecordStreamName,
		Subjects:  []string{RecordSubjectRoot + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", RecordStreamName, err)
	}
	log.Printf("INFO: ensured stream %s", RecordStreamName)
	return nil
}
