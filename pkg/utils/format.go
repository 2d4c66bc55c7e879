// Package utils provides display helpers shared by the CLI and the API.
package utils

import (
	"fmt"
	"strings"

	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

var naira = accounting.Accounting{Symbol: "₦", Precision: 2, Thousand: ",", Decimal: "."}

// FormatNGN formats an amount as Nigerian Naira (₦1,234,567.89).
func FormatNGN(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-" + naira.FormatMoneyDecimal(amount.Abs())
	}
	return naira.FormatMoneyDecimal(amount)
}

// FormatAsset formats an asset amount with a fixed number of decimals and
// its symbol, e.g. "27.1199 STX".
func FormatAsset(amount decimal.Decimal, symbol string, places int32) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(places), symbol)
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct decimal.Decimal) string {
	if pct.IsNegative() {
		return pct.StringFixed(2) + "%"
	}
	return "+" + pct.StringFixed(2) + "%"
}

// ShortAddress abbreviates a chain address to its first six and last four
// characters. Short inputs are returned unchanged.
func ShortAddress(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// ExplorerURL builds the block explorer link for a broadcast transaction.
func ExplorerURL(base, txID, network string) string {
	if txID == "" {
		return ""
	}
	return fmt.Sprintf("%s/txid/%s?chain=%s", strings.TrimRight(base, "/"), txID, network)
}
