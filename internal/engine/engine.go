// Package engine implements the collateral accounting and health-factor
// core: the registry-backed ledgers, valuation over guarded oracle prices,
// the six position operations, and the liquidation path. All state-changing
// entry points are serialized and protected by a per-call-frame reentrancy
// guard; any failure rolls back every mutation the operation performed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StableCore/internal/event"
	"StableCore/internal/ledger"
	fpmath "StableCore/internal/math"
	"StableCore/internal/observability"
	"StableCore/internal/oracle"
	"StableCore/internal/token"
)

const (
	// LiquidationThreshold over LiquidationPrecision is the
	// overcollateralization haircut: accounts must hold 2x collateral
	// value versus debt to sit exactly at the minimum health factor.
	LiquidationThreshold = 50
	LiquidationPrecision = 100

	// LiquidationBonus over LiquidationPrecision is the extra collateral
	// share awarded to liquidators.
	LiquidationBonus = 10
)

var (
	// MinHealthFactor is 1.0 at the wad scale.
	MinHealthFactor = new(big.Int).Set(fpmath.Wad)

	// InfiniteHealthFactor stands in for the undefined division when an
	// account has zero debt: such an account can never be
	// under-collateralized, so it compares above any real factor.
	InfiniteHealthFactor = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Params are the configured engine constants, exposed read-only.
type Params struct {
	LiquidationThreshold int64         `json:"liquidation_threshold"`
	LiquidationPrecision int64         `json:"liquidation_precision"`
	LiquidationBonus     int64         `json:"liquidation_bonus"`
	MinHealthFactor      *big.Int      `json:"min_health_factor"`
	StaleTimeout         time.Duration `json:"stale_timeout"`
}

// Config wires an Engine. CollateralTokens and PriceFeeds are ordered,
// same-length lists; construction fails on a length mismatch.
type Config struct {
	CollateralTokens []token.Ledger
	PriceFeeds       []string
	Stable           token.StableUnit
	Feed             oracle.Feed

	// Custody is the engine's own account on the external token ledgers.
	Custody uuid.UUID

	Logger  zerolog.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time

	// PersistChan receives every committed record; sends block so no
	// record is lost. PublishChan is best-effort; full means dropped.
	PersistChan chan<- event.Record
	PublishChan chan<- event.Record
}

// Engine owns the collateral and debt ledgers exclusively. Operations
// execute as atomic, serialized units; reads go straight to the
// internally-synchronized ledgers and never block an operation.
type Engine struct {
	registry   *ledger.Registry
	collateral *ledger.CollateralLedger
	debt       *ledger.DebtLedger
	tokens     map[string]token.Ledger
	stable     token.StableUnit
	prices     *oracle.Guard
	custody    uuid.UUID

	mu      sync.Mutex
	clock   func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- event.Record
	publishChan chan<- event.Record
}

func New(cfg Config) (*Engine, error) {
	symbols := make([]string, len(cfg.CollateralTokens))
	tokens := make(map[string]token.Ledger, len(cfg.CollateralTokens))
	for i, tok := range cfg.CollateralTokens {
		symbols[i] = tok.Symbol()
		tokens[tok.Symbol()] = tok
	}

	registry, err := ledger.NewRegistry(symbols, cfg.PriceFeeds)
	if err != nil {
		return nil, fmt.Errorf("build collateral registry: %w", err)
	}

	if cfg.Stable == nil {
		return nil, fmt.Errorf("stable-unit ledger is required")
	}
	if cfg.Feed == nil {
		return nil, fmt.Errorf("price feed is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		registry:    registry,
		collateral:  ledger.NewCollateralLedger(),
		debt:        ledger.NewDebtLedger(),
		tokens:      tokens,
		stable:      cfg.Stable,
		prices:      oracle.NewGuardWithClock(cfg.Feed, clock),
		custody:     cfg.Custody,
		clock:       clock,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		persistChan: cfg.PersistChan,
		publishChan: cfg.PublishChan,
	}, nil
}

// Params returns the configured constants. Never fails, no side effects.
func (e *Engine) Params() Params {
	return Params{
		LiquidationThreshold: LiquidationThreshold,
		LiquidationPrecision: LiquidationPrecision,
		LiquidationBonus:     LiquidationBonus,
		MinHealthFactor:      new(big.Int).Set(MinHealthFactor),
		StaleTimeout:         oracle.StaleTimeout,
	}
}

// CollateralTokens returns the accepted tokens in registration order.
func (e *Engine) CollateralTokens() []string {
	return e.registry.Tokens()
}

// Custody returns the engine's custody account ID.
func (e *Engine) Custody() uuid.UUID {
	return e.custody
}

// CollateralBalance returns the recorded (account, token) deposit.
func (e *Engine) CollateralBalance(account uuid.UUID, tok string) *big.Int {
	return e.collateral.Balance(account, tok)
}

// Debt returns the account's outstanding stable-unit debt.
func (e *Engine) Debt(account uuid.UUID) *big.Int {
	return e.debt.Debt(account)
}

// --- reentrancy guard -------------------------------------------------

type guardKey struct{}

// begin acquires the operation scope. The returned context carries a
// per-call-frame token: a collaborator callback that re-enters a guarded
// entry point with this context fails with ErrReentrantCall before it ever
// touches the engine lock, so it cannot interleave with the outer
// operation. Fresh contexts from other goroutines serialize on e.mu
// instead. The release func runs on every exit path.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, func(), error) {
	if ctx.Value(guardKey{}) != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrReentrantCall)
	}
	e.mu.Lock()
	return context.WithValue(ctx, guardKey{}, op), e.mu.Unlock, nil
}

// execute wraps one top-level operation: guard entry, metrics, logging.
func (e *Engine) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := e.clock()

	ctx, release, err := e.begin(ctx, op)
	if err != nil {
		e.reject(op, err)
		return err
	}
	defer release()

	if err := fn(ctx); err != nil {
		e.reject(op, err)
		return err
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(e.clock().Sub(start).Seconds())
	}
	e.logger.Debug().Str("operation", op).Msg("operation committed")
	return nil
}

func (e *Engine) reject(op string, err error) {
	reason := rejectReason(err)
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
		switch reason {
		case "stale_price", "invalid_price", "unknown_feed":
			e.metrics.OracleFailures.WithLabelValues(reason).Inc()
		}
	}
	e.logger.Warn().Str("operation", op).Str("reason", reason).Err(err).Msg("operation rejected")
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNeedsMoreThanZero):
		return "needs_more_than_zero"
	case errors.Is(err, ErrNotAllowedToken):
		return "not_allowed_token"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrMintFailed):
		return "mint_failed"
	case errors.Is(err, ErrBreaksHealthFactor):
		return "breaks_health_factor"
	case errors.Is(err, ErrHealthFactorOk):
		return "health_factor_ok"
	case errors.Is(err, ErrHealthFactorNotImproved):
		return "health_factor_not_improved"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, ledger.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ledger.ErrInsufficientDebt):
		return "insufficient_debt"
	case errors.Is(err, oracle.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, oracle.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, oracle.ErrUnknownFeed):
		return "unknown_feed"
	default:
		return "other"
	}
}

// --- operation transaction --------------------------------------------

// opTx accumulates compensations for the mutations one operation has
// performed so far. On failure they run in reverse order, restoring both
// the engine ledgers and any external token balances already moved.
type opTx struct {
	undo []func(ctx context.Context) error
	recs []event.Record
}

func (tx *opTx) onRollback(f func(ctx context.Context) error) {
	tx.undo = append(tx.undo, f)
}

func (tx *opTx) record(r event.Record) {
	tx.recs = append(tx.recs, r)
}

func (e *Engine) rollback(ctx context.Context, tx *opTx) {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](ctx); err != nil {
			// A failed compensation means the ledgers may no longer match
			// custody balances; surface loudly, there is no automatic repair.
			e.logger.Error().Err(err).Msg("compensation failed during rollback")
		}
	}
}

// commit publishes the accumulated records. Persist sends block; outbound
// sends drop on a full channel.
func (e *Engine) commit(tx *opTx) {
	for _, rec := range tx.recs {
		if e.metrics != nil {
			e.metrics.RecordsEmitted.WithLabelValues(string(rec.RecordKind())).Inc()
		}
		if e.persistChan != nil {
			e.persistChan <- rec
		}
		if e.publishChan != nil {
			select {
			case e.publishChan <- rec:
			default:
				if e.metrics != nil {
					e.metrics.RecordsDropped.Inc()
				}
			}
		}
	}
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNeedsMoreThanZero
	}
	return nil
}
