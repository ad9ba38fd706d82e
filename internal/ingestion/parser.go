package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// PriceUpdate is a parsed oracle quote from NATS. Price carries the
// oracle's native 8-decimal scale.
type PriceUpdate struct {
	FeedID    string
	Price     *big.Int
	Timestamp time.Time
}

// priceJSON is the wire format published by upstream oracle relays.
// Field names use snake_case to match the producers; price is a decimal
// string because 8-decimal quotes can overflow float64 precision.
type priceJSON struct {
	Price       string `json:"price"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParsePriceUpdate converts a raw NATS message into a PriceUpdate. The
// feed ID is the subject suffix after the price subject root, e.g.
// oracle.prices.eth-usd carries feed "eth-usd".
func ParsePriceUpdate(subject string, data []byte) (PriceUpdate, error) {
	feedID := strings.TrimPrefix(subject, PriceSubjectRoot+".")
	if feedID == subject || feedID == "" {
		return PriceUpdate{}, fmt.Errorf("subject %q missing feed id", subject)
	}

	var j priceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return PriceUpdate{}, fmt.Errorf("parse price update: %w", err)
	}

	price, ok := new(big.Int).SetString(j.Price, 10)
	if !ok {
		return PriceUpdate{}, fmt.Errorf("parse price %q: not a decimal integer", j.Price)
	}
	if j.TimestampUs <= 0 {
		return PriceUpdate{}, fmt.Errorf("parse price update: missing timestamp_us")
	}

	return PriceUpdate{
		FeedID:    feedID,
		Price:     price,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
