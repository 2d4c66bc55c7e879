package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/stackswap/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Rates & Reference Data
// ════════════════════════════════════════════════════════════════════

type rateData struct {
	MarketRateNGN decimal.Decimal  `json:"marketRateNGN"`
	FlatFeeNGN    decimal.Decimal  `json:"flatFeeNGN"`
	PriceUSD      decimal.Decimal  `json:"priceUSD"`
	Change24h     *decimal.Decimal `json:"change24h"`
}

// GetRate fetches the current market rate and flat fee for asset.
func (c *Client) GetRate(ctx context.Context, asset models.Asset) (*models.Rate, error) {
	var data rateData
	q := url.Values{"token": {string(asset)}}
	if err := c.get(ctx, "rate", "/api/offramp/rate", q, &data); err != nil {
		return nil, err
	}
	if !data.MarketRateNGN.IsPositive() || data.FlatFeeNGN.IsNegative() {
		return nil, fmt.Errorf("rate: %w: rate %s fee %s", ErrMalformed, data.MarketRateNGN, data.FlatFeeNGN)
	}

	r := &models.Rate{
		Asset:      asset,
		MarketRate: data.MarketRateNGN,
		FlatFee:    data.FlatFeeNGN,
		PriceUSD:   data.PriceUSD,
		FetchedAt:  time.Now(),
	}
	if data.Change24h != nil {
		r.Change24h = *data.Change24h
	}
	return r, nil
}

// ListBanks returns the payout banks the backend supports.
func (c *Client) ListBanks(ctx context.Context) ([]models.Bank, error) {
	var banks []models.Bank
	if err := c.get(ctx, "banks", "/api/offramp/banks", nil, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

// VerifyAccount resolves the holder name of a bank account. A rejected
// account comes back as *APIError.
func (c *Client) VerifyAccount(ctx context.Context, bankCode, accountNumber string) (string, error) {
	payload := map[string]string{
		"bankCode":      bankCode,
		"accountNumber": accountNumber,
	}
	var data struct {
		AccountName string `json:"accountName"`
	}
	if err := c.post(ctx, "verify", "/api/offramp/verify-account", payload, &data); err != nil {
		return "", err
	}
	name := strings.TrimSpace(data.AccountName)
	if name == "" {
		return "", fmt.Errorf("verify: %w: empty account name", ErrMalformed)
	}
	return name, nil
}

// GetLiquidity returns the platform's available fiat settlement balance.
func (c *Client) GetLiquidity(ctx context.Context) (decimal.Decimal, error) {
	var data struct {
		BalanceNGN *decimal.Decimal `json:"balanceNGN"`
	}
	if err := c.get(ctx, "liquidity", "/api/offramp/liquidity", nil, &data); err != nil {
		return decimal.Zero, err
	}
	if data.BalanceNGN == nil {
		return decimal.Zero, fmt.Errorf("liquidity: %w: missing balanceNGN", ErrMalformed)
	}
	return *data.BalanceNGN, nil
}

// ════════════════════════════════════════════════════════════════════
// Orders
// ════════════════════════════════════════════════════════════════════

// OfframpRequest is the sell order the controller asks the backend to open.
type OfframpRequest struct {
	Asset         models.Asset
	AssetAmount   decimal.Decimal
	Address       string
	BankCode      string
	AccountNumber string
	AccountName   string
}

// InitializeOfframp opens a sell order and returns its deposit instructions.
func (c *Client) InitializeOfframp(ctx context.Context, req OfframpRequest) (*models.OfframpOrder, error) {
	payload := struct {
		Token         string      `json:"token"`
		TokenAmount   json.Number `json:"tokenAmount"`
		StacksAddress string      `json:"stacksAddress"`
		BankCode      string      `json:"bankCode"`
		AccountNumber string      `json:"accountNumber"`
		AccountName   string      `json:"accountName"`
	}{
		Token:         string(req.Asset),
		TokenAmount:   json.Number(req.AssetAmount.String()),
		StacksAddress: req.Address,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
	}

	var order models.OfframpOrder
	if err := c.post(ctx, "offramp_initialize", "/api/offramp/initialize", payload, &order); err != nil {
		return nil, err
	}
	if order.Reference == "" || order.Deposit.SendTo == "" {
		return nil, fmt.Errorf("offramp_initialize: %w: missing reference or deposit address", ErrMalformed)
	}
	if order.AssetAmount.IsZero() {
		order.AssetAmount = req.AssetAmount
	}
	order.Status = models.OrderAwaitingDeposit
	order.CreatedAt = time.Now()
	return &order, nil
}

// OnrampRequest is the buy order the controller asks the backend to open.
type OnrampRequest struct {
	Asset      models.Asset
	FiatAmount decimal.Decimal
	Address    string
	Contact    models.Contact
}

// InitializeOnramp opens a buy order and returns its payment configuration.
func (c *Client) InitializeOnramp(ctx context.Context, req OnrampRequest) (*models.OnrampOrder, error) {
	payload := struct {
		Token         string      `json:"token"`
		AmountNGN     json.Number `json:"amountNGN"`
		StacksAddress string      `json:"stacksAddress"`
		CustomerEmail string      `json:"customerEmail"`
		CustomerPhone string      `json:"customerPhone"`
	}{
		Token:         string(req.Asset),
		AmountNGN:     json.Number(req.FiatAmount.String()),
		StacksAddress: req.Address,
		CustomerEmail: req.Contact.Email,
		CustomerPhone: req.Contact.Phone,
	}

	var order models.OnrampOrder
	if err := c.post(ctx, "onramp_initialize", "/api/onramp/initialize", payload, &order); err != nil {
		return nil, err
	}
	if order.Payment.Reference == "" {
		return nil, fmt.Errorf("onramp_initialize: %w: missing payment reference", ErrMalformed)
	}
	order.Status = models.OrderAwaitingPayment
	order.CreatedAt = time.Now()
	return &order, nil
}
