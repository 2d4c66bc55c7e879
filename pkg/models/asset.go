package models

import "strings"

// Asset identifies a chain asset the platform can convert.
type Asset string

const (
	STX Asset = "STX"
)

// NormalizeAsset upper-cases and trims an asset symbol.
func NormalizeAsset(s string) Asset {
	return Asset(strings.ToUpper(strings.TrimSpace(s)))
}

// Mode is the conversion direction selected on the entry step.
type Mode string

const (
	// Sell converts the chain asset into a fiat bank payout (offramp).
	Sell Mode = "sell"
	// Buy converts fiat into the chain asset (onramp).
	Buy Mode = "buy"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Sell || m == Buy
}

// Network selects the chain a wallet signs for.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)
