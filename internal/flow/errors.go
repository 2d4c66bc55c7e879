package flow

import (
	"errors"
	"fmt"

	"github.com/seenimoa/stackswap/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Common Errors
// ════════════════════════════════════════════════════════════════════

var (
	// ErrWrongState is returned when an action is not available in the
	// current state.
	ErrWrongState = errors.New("action not available in current state")

	// ErrNoBack is returned when the current state has no predecessor.
	ErrNoBack = errors.New("cannot go back from current state")

	// ErrSignaturePending is returned while a wallet prompt may be open.
	ErrSignaturePending = errors.New("waiting for wallet signature")

	// ErrBusy is returned when the same action is already in flight.
	ErrBusy = errors.New("request already in progress")

	// ErrStale is returned when an action's result arrived after the input
	// it was computed for had changed.
	ErrStale = errors.New("superseded by a newer input")

	// ErrNoRate is returned when no usable rate has been fetched yet.
	ErrNoRate = errors.New("rate unavailable")

	// ErrInvalidAmount is returned for a missing or non-positive amount.
	ErrInvalidAmount = errors.New("enter a valid amount")

	// ErrBuyLocked is returned when buy mode is not yet available.
	ErrBuyLocked = errors.New("buy is not available yet")

	// ErrUnsupportedAsset is returned for assets the controller cannot convert.
	ErrUnsupportedAsset = errors.New("unsupported asset")

	// ErrWalletRequired is returned when a wallet session is needed and
	// could not be established.
	ErrWalletRequired = errors.New("wallet connection required")

	// ErrInsufficientLiquidity is returned when the liquidity gate blocks.
	ErrInsufficientLiquidity = errors.New("insufficient platform liquidity")

	// ErrBankNotVerified is returned when the payout account is not verified.
	ErrBankNotVerified = errors.New("bank account not verified")

	// ErrContactRequired is returned when the buyer's email is missing.
	ErrContactRequired = errors.New("contact email required")

	// ErrOrderRejected is returned when the backend refuses to open an order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrUnknownOrder is returned when a reference does not match the
	// current order.
	ErrUnknownOrder = errors.New("unknown order reference")

	// ErrNoSuggestion is returned when there is no max amount to apply.
	ErrNoSuggestion = errors.New("no suggested amount")

	// ErrUnknownQuickAmount is returned for amounts not in the preset list.
	ErrUnknownQuickAmount = errors.New("not a preset amount")
)

// TransitionError reports a rejected state change.
type TransitionError struct {
	From models.FlowState
	To   models.FlowState
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }
