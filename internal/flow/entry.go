package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Entry Step
// ════════════════════════════════════════════════════════════════════

// SetMode switches between sell and buy. Buy is refused before launch.
func (c *Controller) SetMode(m models.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("mode %q: %w", m, ErrWrongState)
	}
	if m == models.Buy && c.now().Before(c.opts.BuyLaunchAt) {
		c.mu.Lock()
		c.notice = MsgBuyLocked
		c.mu.Unlock()
		return ErrBuyLocked
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStateLocked(models.StateEntry); err != nil {
		return err
	}
	if c.editor.Mode() == m {
		return nil
	}
	c.editor.SetMode(m)
	c.invalidateEntryLocked()
	return nil
}

// SetAsset selects the asset to convert and refreshes its rate in the
// background.
func (c *Controller) SetAsset(symbol string) error {
	asset := models.NormalizeAsset(symbol)
	supported := false
	for _, a := range c.opts.Assets {
		if a == asset {
			supported = true
			break
		}
	}
	if !supported {
		c.mu.Lock()
		c.notice = MsgUnsupportedAsset
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", asset, ErrUnsupportedAsset)
	}

	c.mu.Lock()
	if err := c.requireStateLocked(models.StateEntry); err != nil {
		c.mu.Unlock()
		return err
	}
	changed := c.asset != asset
	c.asset = asset
	if changed {
		c.invalidateEntryLocked()
	}
	ctx := c.baseCtx
	c.mu.Unlock()

	if changed && c.rates != nil {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			c.rates.Refresh(ctx, asset)
		}()
	}
	return nil
}

// EditAmount records raw as the value of field. The other field is derived
// from it on every read.
func (c *Controller) EditAmount(field quote.Field, raw string) error {
	if !field.Valid() {
		return fmt.Errorf("field %q: %w", field, ErrWrongState)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStateLocked(models.StateEntry); err != nil {
		return err
	}
	c.editor.Edit(field, raw)
	c.invalidateEntryLocked()
	return nil
}

// ApplyQuickAmount fills the asset field with one of the preset amounts.
func (c *Controller) ApplyQuickAmount(amount string) error {
	for _, q := range c.opts.QuickAmounts {
		if q == amount {
			return c.EditAmount(quote.FieldAsset, amount)
		}
	}
	return fmt.Errorf("%s: %w", amount, ErrUnknownQuickAmount)
}

// ApplyMaxAmount replaces the asset amount with the liquidity gate's
// suggestion.
func (c *Controller) ApplyMaxAmount() error {
	c.mu.Lock()
	res := c.validLiquidityLocked()
	c.mu.Unlock()
	if res == nil || res.MaxAmount == nil || !res.MaxAmount.IsPositive() {
		return ErrNoSuggestion
	}
	return c.EditAmount(quote.FieldAsset, res.MaxAmount.StringFixed(c.opts.Precision.Asset))
}

// invalidateEntryLocked drops anything computed for the previous inputs.
func (c *Controller) invalidateEntryLocked() {
	c.entryGen++
	c.liquidity = nil
	c.notice = ""
}

// Proceed leaves the entry step. It connects the wallet if needed, and for
// a sell runs the liquidity gate against the amount as it stood when
// Proceed was called.
func (c *Controller) Proceed(ctx context.Context) error {
	c.mu.Lock()
	if err := c.requireStateLocked(models.StateEntry); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.proceeding {
		c.mu.Unlock()
		return ErrBusy
	}
	mode := c.editor.Mode()
	asset := c.asset
	gen := c.entryGen
	c.proceeding = true
	c.notice = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.proceeding = false
		c.mu.Unlock()
	}()

	if mode == models.Buy && c.now().Before(c.opts.BuyLaunchAt) {
		return c.fail(ErrBuyLocked, MsgBuyLocked)
	}
	if _, err := c.ensureWallet(ctx); err != nil {
		return err
	}

	r := c.rate(asset)
	if r == nil {
		return c.fail(ErrNoRate, MsgRateUnavailable)
	}
	c.mu.Lock()
	q := c.editor.Quote(r)
	c.mu.Unlock()
	if !q.Asset.IsPositive() || !q.Fiat.IsPositive() {
		return c.fail(ErrInvalidAmount, MsgAmountRequired)
	}

	if mode == models.Buy {
		return c.advanceFromEntry(gen, models.StateBuyDetails, nil)
	}

	var res *models.LiquidityCheckResult
	if c.gate != nil {
		res = c.gate.Check(ctx, q.AssetText, *r)
	}
	return c.advanceFromEntry(gen, models.StateSellBankDetails, res)
}

// advanceFromEntry applies a Proceed outcome if the inputs have not moved
// since it started.
func (c *Controller) advanceFromEntry(gen uint64, to models.FlowState, res *models.LiquidityCheckResult) error {
	var evs []events.Event

	c.mu.Lock()
	if c.entryGen != gen || c.state != models.StateEntry {
		c.mu.Unlock()
		c.metrics.Stale("proceed")
		c.logger.WithField("to", to).Debug("discarding stale proceed result")
		return ErrStale
	}

	if res != nil {
		c.liquidity = res
		c.liqGen = gen
		evs = append(evs, c.eventLocked(events.LiquidityChecked, res))
		if res.FailedOpen {
			evs = append(evs, c.eventLocked(events.LiquidityFailedOpen, res))
		}
		if res.Blocked() {
			c.notice = res.Message
			c.mu.Unlock()
			c.publish(evs...)
			return ErrInsufficientLiquidity
		}
	}

	ev, err := c.transitionLocked(to, "proceed")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(append(evs, ev)...)

	if to == models.StateSellBankDetails {
		c.loadBanksAsync()
	}
	return nil
}

// fail sets a notice and returns err.
func (c *Controller) fail(err error, notice string) error {
	c.mu.Lock()
	c.notice = notice
	c.mu.Unlock()
	return err
}

// ════════════════════════════════════════════════════════════════════
// Wallet
// ════════════════════════════════════════════════════════════════════

// ConnectWallet opens a wallet session, or returns the existing one.
func (c *Controller) ConnectWallet(ctx context.Context) (models.Session, error) {
	return c.ensureWallet(ctx)
}

// DisconnectWallet drops the session. It is refused while a transfer
// prompt may be open.
func (c *Controller) DisconnectWallet(ctx context.Context) error {
	if c.wallet == nil {
		return nil
	}
	c.mu.Lock()
	if c.state == models.StateSellAwaitingSignature {
		c.mu.Unlock()
		return ErrSignaturePending
	}
	c.walletErr = ""
	c.mu.Unlock()

	prev := c.wallet.Session()
	c.wallet.Disconnect(ctx)

	c.mu.Lock()
	ev := c.eventLocked(events.WalletDisconnected, prev)
	c.mu.Unlock()
	c.publish(ev)
	return nil
}

func (c *Controller) ensureWallet(ctx context.Context) (models.Session, error) {
	if c.wallet == nil {
		return models.Session{}, c.fail(ErrWalletRequired, MsgWalletRequired)
	}
	if c.wallet.Connected() {
		return c.wallet.Session(), nil
	}

	c.mu.Lock()
	prompt := c.eventLocked(events.WalletConnectPrompt, nil)
	c.mu.Unlock()
	c.publish(prompt)

	s, err := c.wallet.Connect(ctx)
	if err != nil {
		msg := MsgConnectFailed
		if errors.Is(err, wallet.ErrNoAddress) {
			msg = MsgNoAddress
		}
		c.mu.Lock()
		c.walletErr = msg
		c.mu.Unlock()
		return models.Session{}, fmt.Errorf("%w: %v", ErrWalletRequired, err)
	}

	c.mu.Lock()
	c.walletErr = ""
	ev := c.eventLocked(events.WalletConnected, s)
	c.mu.Unlock()
	c.publish(ev)
	return s, nil
}

// ════════════════════════════════════════════════════════════════════
// Bank List
// ════════════════════════════════════════════════════════════════════

// LoadBanks fetches the bank list into the directory cache.
func (c *Controller) LoadBanks(ctx context.Context) error {
	if c.banks == nil {
		return nil
	}
	c.mu.Lock()
	if c.banksBusy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.banksBusy = true
	c.banksErr = ""
	c.mu.Unlock()

	banks, err := c.banks.Banks(ctx)

	c.mu.Lock()
	c.banksBusy = false
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			c.banksErr = backend.MessageOf(err, bankverify.MsgBanksFailed)
		} else {
			c.banksErr = bankverify.MsgBanksUnreachable
		}
		c.mu.Unlock()
		c.logger.WithError(err).Warn("bank list unavailable")
		return err
	}
	ev := c.eventLocked(events.BanksLoaded, map[string]any{"count": len(banks)})
	c.mu.Unlock()
	c.publish(ev)
	return nil
}

func (c *Controller) loadBanksAsync() {
	if c.banks == nil || c.banks.Cached() != nil {
		return
	}
	c.mu.Lock()
	ctx := c.baseCtx
	c.mu.Unlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		_ = c.LoadBanks(ctx)
	}()
}
