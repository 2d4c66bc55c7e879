package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a market quote for one asset in fiat (NGN) terms. It is always
// replaced as a whole; fields are never patched individually.
type Rate struct {
	Asset       Asset           `json:"asset"`
	MarketRate  decimal.Decimal `json:"market_rate"`  // fiat per one asset unit
	FlatFee     decimal.Decimal `json:"flat_fee"`     // fiat, per transaction
	PriceUSD    decimal.Decimal `json:"price_usd"`    // reference price
	Change24h   decimal.Decimal `json:"change_24h"`   // percent
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Usable reports whether the rate may be used as a divisor.
func (r Rate) Usable() bool {
	return r.MarketRate.IsPositive()
}

// RateSnapshot is what the rate cache exposes to readers: the last good
// rate (if any) plus its freshness.
type RateSnapshot struct {
	Rate        *Rate     `json:"rate,omitempty"`
	Stale       bool      `json:"stale"`        // last refresh failed, Rate is the previous good value
	Errored     bool      `json:"errored"`      // last refresh failed
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt"`
}

// HasRate reports whether a good rate was ever fetched.
func (s RateSnapshot) HasRate() bool {
	return s.Rate != nil
}
