package persistence_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/event"
	fpmath "StableCore/internal/math"
	"StableCore/internal/persistence"
	"StableCore/internal/testutil"
)

func TestRowFromRecord(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &event.CollateralDeposited{
		ID:        uuid.New(),
		Account:   uuid.New(),
		Token:     "WETH",
		Amount:    fpmath.FromUnits(1),
		Timestamp: occurred,
	}

	row, err := persistence.RowFromRecord(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if row.RecordID != rec.ID.String() {
		t.Errorf("record_id = %q", row.RecordID)
	}
	if row.Kind != string(event.KindCollateralDeposited) {
		t.Errorf("kind = %q", row.Kind)
	}
	if row.Account != rec.Account.String() {
		t.Errorf("account = %q", row.Account)
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Errorf("occurred_at = %s", row.OccurredAt)
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(row.Payload))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["token"] != "WETH" {
		t.Errorf("payload token = %v", payload["token"])
	}
	if amount, _ := payload["amount"].(json.Number); amount.String() != "1000000000000000000" {
		t.Errorf("payload amount = %v", payload["amount"])
	}
}

func TestWriteRecordBatch_Postgres(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewRecordLogWriter(db)

	rows := make([]persistence.RecordRow, 0, 3)
	for i := 0; i < 3; i++ {
		rec := &event.StableMinted{
			ID:        uuid.New(),
			Account:   uuid.New(),
			Amount:    fpmath.FromUnits(int64(i + 1)),
			Timestamp: time.Now().UTC(),
		}
		row, err := persistence.RowFromRecord(rec)
		if err != nil {
			t.Fatalf("row from record: %v", err)
		}
		rows = append(rows, row)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteRecordBatch(ctx, tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stable_core.records WHERE kind = $1`,
		string(event.KindStableMinted),
	).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d rows, want 3", count)
	}

	// Replaying the same batch is idempotent.
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := writer.WriteRecordBatch(ctx, tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("rewrite batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stable_core.records WHERE kind = $1`,
		string(event.KindStableMinted),
	).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("replay duplicated rows: got %d, want 3", count)
	}
}
