// Package quote converts between asset and fiat amounts for a given rate.
//
// All functions are pure. The Editor tracks which of the two amount fields
// the user edited last; that field is authoritative and the other one is
// always derived from it, never the reverse.
package quote

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/stackswap/pkg/models"
)

// Precision is the number of decimal places shown for each side.
type Precision struct {
	Asset int32
	Fiat  int32
}

// DefaultPrecision is 4 places for the asset and 2 for fiat.
var DefaultPrecision = Precision{Asset: 4, Fiat: 2}

// SellNet returns floor(asset*rate - fee). ok is false when the result is
// not positive, in which case the payout must not be displayed.
func SellNet(asset decimal.Decimal, r models.Rate) (net decimal.Decimal, ok bool) {
	net = asset.Mul(r.MarketRate).Sub(r.FlatFee).Floor()
	if !net.IsPositive() {
		return decimal.Zero, false
	}
	return net, true
}

// SellGross returns asset*rate before the flat fee.
func SellGross(asset decimal.Decimal, r models.Rate) decimal.Decimal {
	return asset.Mul(r.MarketRate)
}

// SellAssetForNet returns the asset amount whose net payout is net:
// (net + fee) / rate, rounded to places.
func SellAssetForNet(net decimal.Decimal, r models.Rate, places int32) decimal.Decimal {
	return net.Add(r.FlatFee).DivRound(r.MarketRate, places+4).Round(places)
}

// BuyAsset returns fiat/rate rounded to places.
func BuyAsset(fiat decimal.Decimal, r models.Rate, places int32) decimal.Decimal {
	return fiat.DivRound(r.MarketRate, places+4).Round(places)
}

// BuyFiat returns asset*rate rounded to places.
func BuyFiat(asset decimal.Decimal, r models.Rate, places int32) decimal.Decimal {
	return asset.Mul(r.MarketRate).Round(places)
}

// TotalPayable returns fiat + fee.
func TotalPayable(fiat decimal.Decimal, r models.Rate) decimal.Decimal {
	return fiat.Add(r.FlatFee)
}

// MaxSellAmount is the largest asset amount a balance can pay out:
// (balance + fee) / rate, truncated to places so the suggestion never
// exceeds the balance.
func MaxSellAmount(balance decimal.Decimal, r models.Rate, places int32) decimal.Decimal {
	return balance.Add(r.FlatFee).DivRound(r.MarketRate, places+4).RoundDown(places)
}

// ToMicro converts an asset amount to atomic units, rounding half away
// from zero.
func ToMicro(asset decimal.Decimal, microUnits int64) int64 {
	return asset.Mul(decimal.NewFromInt(microUnits)).Round(0).IntPart()
}

// ParseAmount parses user input leniently: surrounding spaces and thousands
// separators are ignored, and anything unparsable reads as zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
