package quote

import (
	"github.com/shopspring/decimal"

	"github.com/seenimoa/stackswap/pkg/models"
)

// Field names one of the two amount inputs.
type Field string

const (
	FieldAsset Field = "asset"
	FieldFiat  Field = "fiat"
)

// Valid reports whether f is a known field.
func (f Field) Valid() bool { return f == FieldAsset || f == FieldFiat }

// Quote is the derived view of the amount inputs for one rate. It is never
// stored; recompute it whenever the inputs or the rate change.
type Quote struct {
	Mode          models.Mode     `json:"mode"`
	Authoritative Field           `json:"authoritative"`
	AssetText     string          `json:"asset_text"`
	FiatText      string          `json:"fiat_text"`
	Asset         decimal.Decimal `json:"asset"`
	Fiat          decimal.Decimal `json:"fiat"`  // net payout (sell) or amount paid (buy)
	Gross         decimal.Decimal `json:"gross"` // sell: asset*rate
	Fee           decimal.Decimal `json:"fee"`
	TotalPayable  decimal.Decimal `json:"total_payable"` // buy: fiat + fee
	Priced        bool            `json:"priced"`        // a usable rate was applied
}

// Editor holds the raw text of the authoritative amount field.
type Editor struct {
	mode      models.Mode
	field     Field
	raw       string
	precision Precision
}

// NewEditor starts in mode with the asset field holding defaultAmount.
func NewEditor(mode models.Mode, defaultAmount string, p Precision) *Editor {
	return &Editor{mode: mode, field: FieldAsset, raw: defaultAmount, precision: p}
}

// Edit records raw as the new value of field and makes it authoritative.
func (e *Editor) Edit(field Field, raw string) {
	e.field = field
	e.raw = raw
}

// SetMode switches direction; the authoritative raw value is kept and will
// be reapplied under the new direction.
func (e *Editor) SetMode(m models.Mode) { e.mode = m }

// Mode returns the current direction.
func (e *Editor) Mode() models.Mode { return e.mode }

// Authoritative returns the last edited field and its raw text.
func (e *Editor) Authoritative() (Field, string) { return e.field, e.raw }

// Quote derives both fields from the authoritative one. With no usable rate
// the paired field is left empty.
func (e *Editor) Quote(r *models.Rate) Quote {
	q := Quote{Mode: e.mode, Authoritative: e.field}
	v := ParseAmount(e.raw)
	if e.field == FieldAsset {
		q.AssetText = e.raw
		q.Asset = v
	} else {
		q.FiatText = e.raw
		q.Fiat = v
	}

	if r == nil || !r.Usable() {
		return q
	}
	q.Priced = true
	q.Fee = r.FlatFee

	switch {
	case e.mode == models.Sell && e.field == FieldAsset:
		q.Gross = SellGross(v, *r)
		if net, ok := SellNet(v, *r); ok && v.IsPositive() {
			q.Fiat = net
			q.FiatText = net.String()
		}
	case e.mode == models.Sell && e.field == FieldFiat:
		if v.IsPositive() {
			q.Asset = SellAssetForNet(v, *r, e.precision.Asset)
			q.AssetText = q.Asset.StringFixed(e.precision.Asset)
			q.Gross = SellGross(q.Asset, *r)
		}
	case e.mode == models.Buy && e.field == FieldFiat:
		if v.IsPositive() {
			q.Asset = BuyAsset(v, *r, e.precision.Asset)
			q.AssetText = q.Asset.StringFixed(e.precision.Asset)
			q.TotalPayable = TotalPayable(v, *r)
		}
	case e.mode == models.Buy && e.field == FieldAsset:
		if v.IsPositive() {
			q.Fiat = BuyFiat(v, *r, e.precision.Fiat)
			q.FiatText = q.Fiat.StringFixed(e.precision.Fiat)
			q.TotalPayable = TotalPayable(q.Fiat, *r)
		}
	}
	return q
}
