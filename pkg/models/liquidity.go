package models

import "github.com/shopspring/decimal"

// LiquidityCheckResult is the outcome of one liquidity gate run. It is
// only meaningful for CheckedAmount; any amount edit clears it.
type LiquidityCheckResult struct {
	Checked       bool             `json:"checked"`
	Sufficient    bool             `json:"sufficient"`
	FailedOpen    bool             `json:"failed_open,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	Payout        decimal.Decimal  `json:"payout"`
	Shortfall     decimal.Decimal  `json:"shortfall"`
	MaxAmount     *decimal.Decimal `json:"max_amount,omitempty"` // suggested asset amount
	CheckedAmount string           `json:"checked_amount"`
	Message       string           `json:"message,omitempty"`
}

// Blocked reports whether the result is a hard block.
func (r *LiquidityCheckResult) Blocked() bool {
	return r != nil && r.Checked && !r.Sufficient
}
