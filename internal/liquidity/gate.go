// Package liquidity checks that the platform can cover a sell payout before
// the user commits to the sell flow.
package liquidity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/pkg/models"
	"github.com/seenimoa/stackswap/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Liquidity Gate
// ════════════════════════════════════════════════════════════════════

// BalanceSource reports the platform's available fiat balance.
// *backend.Client satisfies it.
type BalanceSource interface {
	GetLiquidity(ctx context.Context) (decimal.Decimal, error)
}

// Config holds gate parameters.
type Config struct {
	// FailOpen lets progression continue when the balance cannot be read.
	// This trades strictness for availability and is a product decision.
	FailOpen    bool
	AssetPlaces int32  // precision of the suggested max amount (default: 4)
	AssetSymbol string // used in messages (default: "STX")
}

// DefaultConfig returns the production policy: fail open, 4 places.
func DefaultConfig() Config {
	return Config{FailOpen: true, AssetPlaces: 4, AssetSymbol: string(models.STX)}
}

// Gate compares the platform balance against a requested payout.
type Gate struct {
	source  BalanceSource
	config  Config
	logger  *logrus.Logger
	metrics *infra.Metrics
}

// NewGate creates a liquidity gate.
func NewGate(source BalanceSource, cfg Config, logger *logrus.Logger, metrics *infra.Metrics) *Gate {
	if cfg.AssetPlaces <= 0 {
		cfg.AssetPlaces = 4
	}
	if cfg.AssetSymbol == "" {
		cfg.AssetSymbol = string(models.STX)
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Gate{source: source, config: cfg, logger: logger, metrics: metrics}
}

// Config returns the gate's policy.
func (g *Gate) Config() Config { return g.config }

// Check runs the gate for the sell amount typed as amountText. The result is
// only valid for that exact text.
func (g *Gate) Check(ctx context.Context, amountText string, rate models.Rate) *models.LiquidityCheckResult {
	asset := quote.ParseAmount(amountText)
	payout, _ := quote.SellNet(asset, rate)
	res := &models.LiquidityCheckResult{
		CheckedAmount: amountText,
		Payout:        payout,
	}

	balance, err := g.source.GetLiquidity(ctx)
	if err != nil {
		return g.unavailable(res, err)
	}

	res.Checked = true
	res.Balance = &balance

	if balance.GreaterThanOrEqual(payout) {
		res.Sufficient = true
		g.metrics.LiquidityCheck("pass")
		g.logger.WithFields(logrus.Fields{
			"amount":  amountText,
			"payout":  payout.String(),
			"balance": balance.String(),
		}).Debug("liquidity check passed")
		return res
	}

	max := quote.MaxSellAmount(balance, rate, g.config.AssetPlaces)
	if max.IsNegative() {
		max = decimal.Zero
	}
	res.Shortfall = payout.Sub(balance)
	res.MaxAmount = &max
	res.Message = fmt.Sprintf(
		"Platform balance is less than your order (%s). Reduce your %s amount to %s or try again later.",
		utils.FormatNGN(payout), g.config.AssetSymbol, max.StringFixed(g.config.AssetPlaces),
	)

	g.metrics.LiquidityCheck("blocked")
	g.logger.WithFields(logrus.Fields{
		"amount":    amountText,
		"payout":    payout.String(),
		"balance":   balance.String(),
		"shortfall": res.Shortfall.String(),
		"max":       max.String(),
	}).Info("liquidity check blocked order")
	return res
}

func (g *Gate) unavailable(res *models.LiquidityCheckResult, err error) *models.LiquidityCheckResult {
	fields := logrus.Fields{"amount": res.CheckedAmount, "payout": res.Payout.String()}

	if g.config.FailOpen {
		res.FailedOpen = true
		res.Message = "Liquidity could not be checked; continuing."
		g.metrics.LiquidityCheck("fail_open")
		g.logger.WithFields(fields).WithError(err).Warn("liquidity service unavailable, failing open")
		return res
	}

	res.Checked = true
	res.Message = "Could not check platform liquidity. Please try again."
	g.metrics.LiquidityCheck("fail_closed")
	g.logger.WithFields(fields).WithError(err).Warn("liquidity service unavailable, blocking")
	return res
}
