package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"StableCore/internal/event"
)

// RecordLogWriter writes operation records to Postgres using batch inserts.
// Multi-row INSERT is used as a portable alternative to the COPY protocol;
// switch to pgx CopyFrom if write throughput ever becomes the bottleneck.
type RecordLogWriter struct {
	db *sql.DB
}

// RecordRow represents a row in stable_core.records.
type RecordRow struct {
	RecordID   string
	Kind       string
	Account    string
	Payload    []byte // JSON-encoded record
	OccurredAt time.Time
}

// RowFromRecord flattens a record into its storage shape. The full record
// is kept as JSON payload; the indexed columns are pulled out alongside.
func RowFromRecord(r event.Record) (RecordRow, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return RecordRow{}, fmt.Errorf("marshal record %s: %w", r.RecordID(), err)
	}
	return RecordRow{
		RecordID:   r.RecordID().String(),
		Kind:       string(r.RecordKind()),
		Account:    r.AccountID().String(),
		Payload:    payload,
		OccurredAt: r.OccurredAt(),
	}, nil
}

func NewRecordLogWriter(db *sql.DB) *RecordLogWriter {
	return &RecordLogWriter{db: db}
}

// WriteRecordBatch writes a batch of records inside the given transaction
// using a single multi-row INSERT. Replays are idempotent: conflicting
// record IDs are skipped.
func (w *RecordLogWriter) WriteRecordBatch(ctx context.Context, tx *sql.Tx, rows []RecordRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO stable_core.records
		(record_id, kind, account, payload, occurred_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*5)

	for i, r := range rows {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, r.RecordID, r.Kind, r.Account, r.Payload, r.OccurredAt)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (record_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload is a convenience wrapper for JSON-encoding record payloads.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
