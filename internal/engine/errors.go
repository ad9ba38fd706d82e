package engine

import "errors"

// Every failure below is terminal for the operation that raised it: the
// engine rolls back all ledger mutations and external transfers performed
// earlier in the same operation, and nothing is retried internally.
var (
	// ErrNeedsMoreThanZero is returned when a quantity argument is zero
	// or negative.
	ErrNeedsMoreThanZero = errors.New("amount must be more than zero")

	// ErrNotAllowedToken is returned when a token is not in the collateral
	// registry.
	ErrNotAllowedToken = errors.New("token not allowed as collateral")

	// ErrTransferFailed is returned when an external asset transfer did
	// not succeed.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrMintFailed is returned when the stable-unit ledger refuses a mint.
	ErrMintFailed = errors.New("stable unit mint failed")

	// ErrBreaksHealthFactor is returned when the post-mutation solvency
	// check fails for the acting account.
	ErrBreaksHealthFactor = errors.New("operation breaks health factor")

	// ErrHealthFactorOk is returned when liquidation is attempted on an
	// account that is not under-collateralized.
	ErrHealthFactorOk = errors.New("health factor above minimum")

	// ErrHealthFactorNotImproved is returned when a liquidation would not
	// raise the target's health factor.
	ErrHealthFactorNotImproved = errors.New("liquidation did not improve health factor")

	// ErrReentrantCall is returned when a collaborator re-enters a guarded
	// entry point during an in-flight operation.
	ErrReentrantCall = errors.New("reentrant call rejected")
)
