// Package event defines the typed records emitted after each successful
// engine operation. Records flow to the persistence worker over a blocking
// channel (no record lost) and to the outbound publisher over a
// non-blocking channel (dropped on backpressure).
package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCollateralDeposited Kind = "CollateralDeposited"
	KindCollateralRedeemed  Kind = "CollateralRedeemed"
	KindStableMinted        Kind = "StableMinted"
	KindStableBurned        Kind = "StableBurned"
	KindLiquidationExecuted Kind = "LiquidationExecuted"
)

// Record is one immutable fact about a completed operation.
type Record interface {
	RecordID() uuid.UUID
	RecordKind() Kind
	AccountID() uuid.UUID
	OccurredAt() time.Time
}

// CollateralDeposited records collateral entering protocol custody.
type CollateralDeposited struct {
	ID        uuid.UUID `json:"id"`
	Account   uuid.UUID `json:"account"`
	Token     string    `json:"token"`
	Amount    *big.Int  `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *CollateralDeposited) RecordID() uuid.UUID   { return r.ID }
func (r *CollateralDeposited) RecordKind() Kind      { return KindCollateralDeposited }
func (r *CollateralDeposited) AccountID() uuid.UUID  { return r.Account }
func (r *CollateralDeposited) OccurredAt() time.Time { return r.Timestamp }

// CollateralRedeemed records collateral leaving custody. RedeemedTo differs
// from Account when a liquidator seizes on the account's behalf.
type CollateralRedeemed struct {
	ID         uuid.UUID `json:"id"`
	Account    uuid.UUID `json:"account"`
	RedeemedTo uuid.UUID `json:"redeemed_to"`
	Token      string    `json:"token"`
	Amount     *big.Int  `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

func (r *CollateralRedeemed) RecordID() uuid.UUID   { return r.ID }
func (r *CollateralRedeemed) RecordKind() Kind      { return KindCollateralRedeemed }
func (r *CollateralRedeemed) AccountID() uuid.UUID  { return r.Account }
func (r *CollateralRedeemed) OccurredAt() time.Time { return r.Timestamp }

// StableMinted records new stable units issued against an account's debt.
type StableMinted struct {
	ID        uuid.UUID `json:"id"`
	Account   uuid.UUID `json:"account"`
	Amount    *big.Int  `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *StableMinted) RecordID() uuid.UUID   { return r.ID }
func (r *StableMinted) RecordKind() Kind      { return KindStableMinted }
func (r *StableMinted) AccountID() uuid.UUID  { return r.Account }
func (r *StableMinted) OccurredAt() time.Time { return r.Timestamp }

// StableBurned records debt retired. PaidBy differs from Account when a
// liquidator funds the burn.
type StableBurned struct {
	ID        uuid.UUID `json:"id"`
	Account   uuid.UUID `json:"account"`
	PaidBy    uuid.UUID `json:"paid_by"`
	Amount    *big.Int  `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *StableBurned) RecordID() uuid.UUID   { return r.ID }
func (r *StableBurned) RecordKind() Kind      { return KindStableBurned }
func (r *StableBurned) AccountID() uuid.UUID  { return r.Account }
func (r *StableBurned) OccurredAt() time.Time { return r.Timestamp }

// LiquidationExecuted summarizes one liquidation call: debt covered by the
// liquidator and collateral seized, bonus included.
type LiquidationExecuted struct {
	ID               uuid.UUID `json:"id"`
	Liquidator       uuid.UUID `json:"liquidator"`
	Target           uuid.UUID `json:"target"`
	Token            string    `json:"token"`
	DebtCovered      *big.Int  `json:"debt_covered"`
	CollateralSeized *big.Int  `json:"collateral_seized"`
	Timestamp        time.Time `json:"timestamp"`
}

func (r *LiquidationExecuted) RecordID() uuid.UUID   { return r.ID }
func (r *LiquidationExecuted) RecordKind() Kind      { return KindLiquidationExecuted }
func (r *LiquidationExecuted) AccountID() uuid.UUID  { return r.Target }
func (r *LiquidationExecuted) OccurredAt() time.Time { return r.Timestamp }
