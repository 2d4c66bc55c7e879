package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
	"github.com/seenimoa/stackswap/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Bank Details
// ════════════════════════════════════════════════════════════════════

// SetBankDetails records the payout account. Any change clears the
// verified name at once; when the claim is complete a verification starts
// after the debounce interval. Only the answer for the latest claim is
// applied.
func (c *Controller) SetBankDetails(bankCode, accountNumber string) error {
	c.mu.Lock()
	if err := c.requireStateLocked(models.StateSellBankDetails); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.claim.BankCode == bankCode && c.claim.AccountNumber == accountNumber {
		c.mu.Unlock()
		return nil
	}
	c.claimGen++
	c.claim = models.BankAccountClaim{BankCode: bankCode, AccountNumber: accountNumber}
	if !bankverify.ShouldVerify(c.claim) {
		c.mu.Unlock()
		return nil
	}
	c.claim.Verifying = true
	gen, claim, ctx := c.claimGen, c.claim, c.baseCtx
	c.mu.Unlock()

	c.startVerify(ctx, gen, claim, c.opts.VerifyDebounce)
	return nil
}

// RetryVerification re-runs verification for the current claim.
func (c *Controller) RetryVerification() error {
	c.mu.Lock()
	if err := c.requireStateLocked(models.StateSellBankDetails); err != nil {
		c.mu.Unlock()
		return err
	}
	if !bankverify.ShouldVerify(c.claim) {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", bankverify.MsgInvalidInput, ErrBankNotVerified)
	}
	c.claimGen++
	c.claim.Verifying = true
	c.claim.Error = ""
	gen, claim, ctx := c.claimGen, c.claim, c.baseCtx
	c.mu.Unlock()

	c.startVerify(ctx, gen, claim, 0)
	return nil
}

func (c *Controller) startVerify(ctx context.Context, gen uint64, claim models.BankAccountClaim, debounce time.Duration) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if debounce > 0 {
			t := time.NewTimer(debounce)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		if !c.claimCurrent(gen) {
			return
		}

		var out bankverify.Outcome
		if c.verify != nil {
			out = c.verify.Verify(ctx, claim.BankCode, claim.AccountNumber)
		} else {
			out = bankverify.Outcome{Message: bankverify.MsgUnreachable}
		}
		c.applyVerification(gen, out)
	}()
}

func (c *Controller) claimCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimGen == gen
}

func (c *Controller) applyVerification(gen uint64, out bankverify.Outcome) {
	c.mu.Lock()
	if c.claimGen != gen {
		c.mu.Unlock()
		c.metrics.Stale("bank_verification")
		c.logger.Debug("discarding stale bank verification")
		return
	}
	c.claim.Verifying = false
	c.claim.Verified = out.Verified
	c.claim.AccountName = out.AccountName
	c.claim.Error = out.Message
	ev := c.eventLocked(events.BankVerified, c.claim)
	c.mu.Unlock()
	c.publish(ev)
}

// ConfirmBank moves to the confirmation step once the account is verified
// and a wallet session is held.
func (c *Controller) ConfirmBank() error {
	connected := c.wallet != nil && c.wallet.Connected()

	c.mu.Lock()
	if err := c.requireStateLocked(models.StateSellBankDetails); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.claim.Verified {
		c.notice = MsgBankNotVerified
		c.mu.Unlock()
		return ErrBankNotVerified
	}
	if !connected {
		c.notice = MsgWalletRequired
		c.mu.Unlock()
		return ErrWalletRequired
	}
	c.notice = ""
	ev, err := c.transitionLocked(models.StateSellConfirm, "bank verified")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(ev)
	return nil
}

// ════════════════════════════════════════════════════════════════════
// Order and Signature
// ════════════════════════════════════════════════════════════════════

// SubmitOfframp opens the sell order and asks the wallet to sign the
// deposit transfer. A rejected order leaves the flow on confirm with the
// backend's message.
func (c *Controller) SubmitOfframp(ctx context.Context) error {
	asset := c.currentAsset()
	r := c.rate(asset)
	var session models.Session
	if c.wallet != nil {
		session = c.wallet.Session()
	}

	c.mu.Lock()
	if err := c.requireStateLocked(models.StateSellConfirm); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.claim.Verified {
		c.notice = MsgBankNotVerified
		c.mu.Unlock()
		return ErrBankNotVerified
	}
	if !session.Connected || session.Address == "" {
		c.notice = MsgWalletRequired
		c.mu.Unlock()
		return ErrWalletRequired
	}
	if r == nil {
		c.notice = MsgRateUnavailable
		c.mu.Unlock()
		return ErrNoRate
	}
	q := c.editor.Quote(r)
	if !q.Asset.IsPositive() {
		c.notice = MsgAmountRequired
		c.mu.Unlock()
		return ErrInvalidAmount
	}
	req := backend.OfframpRequest{
		Asset:         asset,
		AssetAmount:   q.Asset,
		Address:       session.Address,
		BankCode:      c.claim.BankCode,
		AccountNumber: c.claim.AccountNumber,
		AccountName:   c.claim.AccountName,
	}
	c.submitGen++
	gen := c.submitGen
	c.submitting = true
	c.notice = ""
	c.mu.Unlock()

	order, err := c.orders.InitializeOfframp(ctx, req)

	c.mu.Lock()
	c.submitting = false
	if gen != c.submitGen || c.state != models.StateSellConfirm {
		c.mu.Unlock()
		c.metrics.Stale("offramp")
		c.logger.Debug("discarding stale offramp result")
		return ErrStale
	}
	if err != nil {
		c.notice = orderMessage(err, MsgOfframpFailed)
		ev := c.eventLocked(events.OrderRejected, map[string]any{"mode": models.Sell, "message": c.notice})
		c.mu.Unlock()
		c.metrics.Order(string(models.Sell), "rejected")
		c.logger.WithError(err).Warn("offramp order rejected")
		c.publish(ev)
		return fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	if order.Bank.AccountName == "" {
		order.Bank = models.PayoutAccount{
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			BankName:      c.bankName(req.BankCode),
		}
	}
	memo := order.Deposit.Memo
	if memo == "" {
		memo = order.Reference
	}
	transfer := wallet.TransferRequest{
		Token:       uuid.NewString(),
		Recipient:   order.Deposit.SendTo,
		AmountMicro: quote.ToMicro(q.Asset, c.opts.MicroUnits),
		Memo:        memo,
		Network:     c.opts.Network,
	}
	c.offramp = order
	c.signReq = &transfer

	created := c.eventLocked(events.OrderCreated, order)
	moved, err := c.transitionLocked(models.StateSellAwaitingSignature, "order created")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.startExpiryLocked(c.depositDeadline(order.Deposit))
	requested := c.eventLocked(events.SignRequested, transfer)
	base := c.baseCtx
	c.mu.Unlock()

	c.metrics.Order(string(models.Sell), "created")
	c.logger.WithFields(logrus.Fields{
		"reference": order.Reference,
		"amount":    q.Asset.String(),
		"micro":     transfer.AmountMicro,
	}).Info("offramp order created")
	c.publish(created, moved, requested)

	c.wallet.Provider().RequestTransfer(base, transfer, c.handleTransfer)
	return nil
}

func (c *Controller) depositDeadline(d models.DepositInstructions) time.Time {
	if !d.ExpiresAt.IsZero() {
		return d.ExpiresAt
	}
	if d.ExpiresInMinutes > 0 {
		return c.now().Add(time.Duration(d.ExpiresInMinutes) * time.Minute)
	}
	return time.Time{}
}

func (c *Controller) bankName(code string) string {
	if c.banks == nil {
		return ""
	}
	return c.banks.Name(code)
}

// handleTransfer applies the wallet's answer for the transfer it was asked
// to sign. Answers for any other token are dropped.
func (c *Controller) handleTransfer(res wallet.TransferResult) {
	c.mu.Lock()
	if c.signReq == nil || c.signReq.Token != res.Token || c.state != models.StateSellAwaitingSignature {
		c.mu.Unlock()
		c.metrics.Stale("signature")
		c.logger.WithField("token", res.Token).Debug("discarding stale transfer result")
		return
	}
	c.signReq = nil

	var evs []events.Event
	if res.Succeeded() {
		c.offramp.Status = models.OrderBroadcast
		c.offramp.TxID = res.TxID
		moved, err := c.transitionLocked(models.StateSellOnChainPending, "transfer broadcast")
		if err != nil {
			c.mu.Unlock()
			c.logger.WithError(err).Error("apply transfer result")
			return
		}
		evs = append(evs, c.eventLocked(events.SignCompleted, map[string]any{
			"reference":    c.offramp.Reference,
			"tx_id":        res.TxID,
			"explorer_url": utils.ExplorerURL(c.opts.ExplorerURL, res.TxID, string(c.opts.Network)),
		}), moved)
		c.mu.Unlock()
		c.metrics.Order(string(models.Sell), "broadcast")
		c.publish(evs...)
		return
	}

	c.stopExpiryLocked()
	c.offramp.Status = models.OrderSignatureCancelled
	c.notice = MsgSignCancelled
	fields := logrus.Fields{"reference": c.offramp.Reference}
	if res.Err != nil && !res.Cancelled {
		c.notice = MsgSignFailed
		fields["error"] = res.Err.Error()
	}
	moved, err := c.transitionLocked(models.StateSellConfirm, "transfer cancelled")
	if err != nil {
		c.mu.Unlock()
		c.logger.WithError(err).Error("apply transfer result")
		return
	}
	evs = append(evs, c.eventLocked(events.SignCancelled, map[string]any{
		"reference": c.offramp.Reference,
		"message":   c.notice,
	}), moved)
	c.mu.Unlock()

	c.metrics.Order(string(models.Sell), "signature_cancelled")
	c.logger.WithFields(fields).Info("transfer not signed; order kept")
	c.publish(evs...)
}

// MarkSettled records that the payout for reference has been made. An
// empty reference settles the current order.
func (c *Controller) MarkSettled(reference string) error {
	c.mu.Lock()
	if err := c.requireStateLocked(models.StateSellOnChainPending); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.offramp == nil || (reference != "" && reference != c.offramp.Reference) {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", reference, ErrUnknownOrder)
	}
	c.stopExpiryLocked()
	c.offramp.Status = models.OrderSettled
	moved, err := c.transitionLocked(models.StateSuccess, "settled")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	settled := c.eventLocked(events.OrderSettled, c.offramp)
	c.mu.Unlock()

	c.metrics.Order(string(models.Sell), "settled")
	c.publish(moved, settled)
	return nil
}
