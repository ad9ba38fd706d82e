package ingestion_test

import (
	"math/big"
	"testing"
	"time"

	"StableCore/internal/ingestion"
)

func TestParsePriceUpdate(t *testing.T) {
	data := []byte(`{"price":"200000000000","timestamp_us":1748779200000000}`)

	update, err := ingestion.ParsePriceUpdate("oracle.prices.eth-usd", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if update.FeedID != "eth-usd" {
		t.Errorf("feed = %q, want eth-usd", update.FeedID)
	}
	if update.Price.Cmp(big.NewInt(200000000000)) != 0 {
		t.Errorf("price = %s, want 200000000000", update.Price)
	}
	if !update.Timestamp.Equal(time.UnixMicro(1748779200000000)) {
		t.Errorf("timestamp = %s", update.Timestamp)
	}
}

func TestParsePriceUpdate_NestedSubject(t *testing.T) {
	data := []byte(`{"price":"1","timestamp_us":1}`)

	update, err := ingestion.ParsePriceUpdate("oracle.prices.eth.usd", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.FeedID != "eth.usd" {
		t.Errorf("feed = %q, want eth.usd", update.FeedID)
	}
}

func TestParsePriceUpdate_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		data    string
	}{
		{"wrong subject root", "perp.prices.eth-usd", `{"price":"1","timestamp_us":1}`},
		{"missing feed id", "oracle.prices.", `{"price":"1","timestamp_us":1}`},
		{"malformed json", "oracle.prices.eth-usd", `{`},
		{"non-numeric price", "oracle.prices.eth-usd", `{"price":"12.5","timestamp_us":1}`},
		{"missing timestamp", "oracle.prices.eth-usd", `{"price":"1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ingestion.ParsePriceUpdate(tc.subject, []byte(tc.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
