package flow

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Buy Details
// ════════════════════════════════════════════════════════════════════

// SetContact records the buyer's email and optional phone number.
func (c *Controller) SetContact(email, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStateLocked(models.StateBuyDetails); err != nil {
		return err
	}
	c.contact = models.Contact{Email: strings.TrimSpace(email), Phone: strings.TrimSpace(phone)}
	return nil
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// SubmitOnramp opens the buy order for the fiat amount on the entry step
// and opens the payment widget.
func (c *Controller) SubmitOnramp(ctx context.Context) error {
	asset := c.currentAsset()
	r := c.rate(asset)
	var session models.Session
	if c.wallet != nil {
		session = c.wallet.Session()
	}

	c.mu.Lock()
	if err := c.requireStateLocked(models.StateBuyDetails); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	if !session.Connected || session.Address == "" || !validEmail(c.contact.Email) {
		c.notice = MsgContactRequired
		c.mu.Unlock()
		return ErrContactRequired
	}
	if r == nil {
		c.notice = MsgRateUnavailable
		c.mu.Unlock()
		return ErrNoRate
	}
	q := c.editor.Quote(r)
	if !q.Fiat.IsPositive() {
		c.notice = MsgAmountRequired
		c.mu.Unlock()
		return ErrInvalidAmount
	}
	req := backend.OnrampRequest{
		Asset:      asset,
		FiatAmount: q.Fiat,
		Address:    session.Address,
		Contact:    c.contact,
	}
	c.submitGen++
	gen := c.submitGen
	c.submitting = true
	c.notice = ""
	c.mu.Unlock()

	order, err := c.orders.InitializeOnramp(ctx, req)

	c.mu.Lock()
	c.submitting = false
	if gen != c.submitGen || c.state != models.StateBuyDetails {
		c.mu.Unlock()
		c.metrics.Stale("onramp")
		c.logger.Debug("discarding stale onramp result")
		return ErrStale
	}
	if err != nil {
		c.notice = orderMessage(err, MsgOnrampFailed)
		ev := c.eventLocked(events.OrderRejected, map[string]any{"mode": models.Buy, "message": c.notice})
		c.mu.Unlock()
		c.metrics.Order(string(models.Buy), "rejected")
		c.logger.WithError(err).Warn("onramp order rejected")
		c.publish(ev)
		return fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	c.onramp = order
	created := c.eventLocked(events.OrderCreated, order)
	moved, err := c.transitionLocked(models.StateBuyPayment, "order created")
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.metrics.Order(string(models.Buy), "created")
	c.logger.WithFields(logrus.Fields{
		"reference": order.PaymentReference,
		"fiat":      q.Fiat.String(),
	}).Info("onramp order created")
	c.publish(created, moved)

	return c.OpenPayment()
}

// ════════════════════════════════════════════════════════════════════
// Payment
// ════════════════════════════════════════════════════════════════════

// OpenPayment opens the payment widget for the current buy order. Calling
// it again after a cancel reopens the same order.
func (c *Controller) OpenPayment() error {
	c.mu.Lock()
	if err := c.requireStateLocked(models.StateBuyPayment); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.onramp == nil {
		c.mu.Unlock()
		return ErrUnknownOrder
	}
	if c.payReq != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	req := PaymentRequest{Token: uuid.NewString(), Config: c.onramp.Payment}
	c.payReq = &req
	c.onramp.Status = models.OrderAwaitingPayment
	c.notice = ""
	ev := c.eventLocked(events.PaymentRequested, req)
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.payStop = cancel
	c.mu.Unlock()

	c.publish(ev)
	if c.pay != nil {
		c.pay.Open(ctx, req, c.handlePayment)
	}
	return nil
}

// dropPaymentLocked forgets the open widget request and withdraws it from
// the widget. Its late answer is then discarded as stale.
func (c *Controller) dropPaymentLocked() {
	if c.payStop != nil {
		c.payStop()
		c.payStop = nil
	}
	c.payReq = nil
}

// handlePayment applies the widget's answer for the request it was opened
// with. A closed widget keeps the order so the user can reopen it.
func (c *Controller) handlePayment(res PaymentResult) {
	c.mu.Lock()
	if c.payReq == nil || c.payReq.Token != res.Token || c.state != models.StateBuyPayment {
		c.mu.Unlock()
		c.metrics.Stale("payment")
		c.logger.WithField("token", res.Token).Debug("discarding stale payment result")
		return
	}
	c.dropPaymentLocked()
	ref := c.onramp.PaymentReference

	if !res.Completed {
		c.onramp.Status = models.OrderPaymentCancelled
		c.notice = MsgPaymentCancelled
		ev := c.eventLocked(events.PaymentCancelled, map[string]any{"reference": ref})
		c.mu.Unlock()
		c.metrics.Order(string(models.Buy), "payment_cancelled")
		c.logger.WithField("reference", ref).Info("payment widget closed")
		c.publish(ev)
		return
	}

	c.onramp.Status = models.OrderPaid
	moved, err := c.transitionLocked(models.StateSuccess, "payment completed")
	if err != nil {
		c.mu.Unlock()
		c.logger.WithError(err).Error("apply payment result")
		return
	}
	done := c.eventLocked(events.PaymentCompleted, c.onramp)
	c.mu.Unlock()

	c.metrics.Order(string(models.Buy), "paid")
	c.publish(moved, done)
}
